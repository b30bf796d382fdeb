package config

import (
	"os"
	"path/filepath"
)

// GetArborHome returns ARBOR_HOME or the ~/.arbor default.
func GetArborHome() string {
	arborHome := os.Getenv("ARBOR_HOME")
	if arborHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".arbor"
		}
		return filepath.Join(homeDir, ".arbor")
	}
	return ExpandPath(arborHome)
}

// GetPortsPath returns $ARBOR_HOME/ports.json
func GetPortsPath() string {
	return filepath.Join(GetArborHome(), "ports.json")
}

// GetVisibilityPath returns $ARBOR_HOME/visibility.json
func GetVisibilityPath() string {
	return filepath.Join(GetArborHome(), "visibility.json")
}

// GetEventsPath returns $ARBOR_HOME/events.jsonl
func GetEventsPath() string {
	return filepath.Join(GetArborHome(), "events.jsonl")
}

// GetTrashPath returns $ARBOR_HOME/trash
func GetTrashPath() string {
	return filepath.Join(GetArborHome(), "trash")
}

// GetSettingsPath returns $ARBOR_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetArborHome(), "settings.json")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
