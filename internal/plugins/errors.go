package plugins

import "errors"

var (
	// ErrPluginNotFound means the named jar is not in the plugins
	// directory.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrDownloadIncomplete means the bytes written to disk do not
	// match the artifact's advertised size. The partial file has been
	// removed.
	ErrDownloadIncomplete = errors.New("plugin download incomplete")

	// ErrNoInstallableFile means the selected version carries no
	// downloadable artifact.
	ErrNoInstallableFile = errors.New("no installable file in version")
)
