package modrinth

// PickVersion chooses the version to install for the given game
// version and loader. Preference order: exact game-version and loader
// match, then game-version match alone, then the newest release (the
// API returns versions newest first).
func PickVersion(versions []Version, gameVersion, loader string) (Version, bool) {
	if len(versions) == 0 {
		return Version{}, false
	}

	var gameMatch *Version
	for i := range versions {
		v := &versions[i]
		if !containsString(v.GameVersions, gameVersion) {
			continue
		}
		if containsString(v.Loaders, loader) {
			return *v, true
		}
		if gameMatch == nil {
			gameMatch = v
		}
	}
	if gameMatch != nil {
		return *gameMatch, true
	}

	return versions[0], true
}

// PrimaryFile returns the artifact flagged primary, falling back to
// the first file when none is flagged.
func PrimaryFile(v Version) (VersionFile, bool) {
	if len(v.Files) == 0 {
		return VersionFile{}, false
	}
	for _, f := range v.Files {
		if f.Primary {
			return f, true
		}
	}
	return v.Files[0], true
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
