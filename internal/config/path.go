package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the data directory used when none is configured.
// AUDITSTACK_DATA_DIR wins, then XDG_DATA_HOME, then an OS-specific location,
// then a dotdir in the user's home directory.
func DefaultDataDir() string {
	if dir := os.Getenv("AUDITSTACK_DATA_DIR"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "auditstack")
	}

	// macOS: ~/Library/Application Support/auditstack
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "auditstack")
	}

	// Windows: %USERPROFILE%/AppData/Local/auditstack
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "auditstack")
	}

	return filepath.Join(homeDir, ".auditstack")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
