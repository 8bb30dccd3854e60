package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PluginFile is one jar in the plugins directory.
type PluginFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Directory reads and mutates the server's plugins folder. Every
// operation hits the filesystem fresh; nothing is cached.
type Directory struct {
	path string
}

func NewDirectory(path string) *Directory {
	return &Directory{path: path}
}

func (d *Directory) Path() string { return d.path }

// List returns the jars currently on disk, sorted by the order the
// directory listing yields (lexicographic on most platforms).
// Non-jar entries and subdirectories are skipped.
func (d *Directory) List() ([]PluginFile, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []PluginFile{}, nil
		}
		return nil, fmt.Errorf("read plugins directory: %w", err)
	}

	files := []PluginFile{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".jar") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, PluginFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return files, nil
}

// Delete removes the named jar. The name is reduced to its base so a
// caller cannot reach outside the plugins directory.
func (d *Directory) Delete(name string) error {
	name = filepath.Base(name)
	path := filepath.Join(d.path, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrPluginNotFound
		}
		return err
	}
	return os.Remove(path)
}

// Write stores an artifact's bytes under the given file name and
// verifies the byte count against expectedSize before declaring the
// install good. A size mismatch removes the partial file.
func (d *Directory) Write(name string, data []byte, expectedSize int64) (string, error) {
	if err := os.MkdirAll(d.path, 0755); err != nil {
		return "", fmt.Errorf("create plugins directory: %w", err)
	}

	name = filepath.Base(name)
	path := filepath.Join(d.path, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write plugin file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("verify plugin file: %w", err)
	}
	if expectedSize > 0 && info.Size() != expectedSize {
		os.Remove(path)
		return "", fmt.Errorf("%w: wrote %d of %d bytes", ErrDownloadIncomplete, info.Size(), expectedSize)
	}

	return path, nil
}
