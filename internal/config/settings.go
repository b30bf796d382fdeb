package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arbor-sh/arbor/internal/domain"
)

// Settings represents the structure of $ARBOR_HOME/settings.json
type Settings struct {
	Debug              *bool                       `json:"debug,omitempty"`
	EventBufferSize    *int                        `json:"event_buffer_size,omitempty"`
	EventPruneDays     *int                        `json:"event_prune_days,omitempty"`
	MaxLogFiles        *int                        `json:"max_log_files,omitempty"`
	PortRanges         map[string]domain.PortRange `json:"port_ranges,omitempty"`
	ProbeTimeoutMs     *int                        `json:"probe_timeout_ms,omitempty"`
	TrashRetentionDays *int                        `json:"trash_retention_days,omitempty"`
	WorktreeRoot       string                      `json:"worktree_root,omitempty"`
}

// Defaults applied when settings.json leaves a field unset.
const (
	DefaultEventBufferSize    = 200
	DefaultEventPruneDays     = 90
	DefaultProbeTimeoutMs     = 500
	DefaultTrashRetentionDays = 30
)

// EventBufferSizeOrDefault returns the configured ring size or the default.
func (s *Settings) EventBufferSizeOrDefault() int {
	if s != nil && s.EventBufferSize != nil && *s.EventBufferSize > 0 {
		return *s.EventBufferSize
	}
	return DefaultEventBufferSize
}

// TrashRetentionOrDefault returns the configured purge age in days.
func (s *Settings) TrashRetentionOrDefault() int {
	if s != nil && s.TrashRetentionDays != nil && *s.TrashRetentionDays > 0 {
		return *s.TrashRetentionDays
	}
	return DefaultTrashRetentionDays
}

// ProbeTimeoutMsOrDefault returns the liveness probe timeout in millis.
func (s *Settings) ProbeTimeoutMsOrDefault() int {
	if s != nil && s.ProbeTimeoutMs != nil && *s.ProbeTimeoutMs > 0 {
		return *s.ProbeTimeoutMs
	}
	return DefaultProbeTimeoutMs
}

// LoadSettings loads settings from $ARBOR_HOME/settings.json.
// Returns empty Settings if the file doesn't exist (not an error).
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil // Not an error, use defaults
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}

	for service, r := range settings.PortRanges {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("settings.json port_ranges[%s]: %w", service, err)
		}
	}

	return &settings, nil
}
