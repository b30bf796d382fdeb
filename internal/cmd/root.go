package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Create  CreateCmd  `cmd:"" help:"Create a worktree for a branch and reserve its ports"`
	Delete  DeleteCmd  `cmd:"" help:"Soft-delete a worktree into the recoverable trash"`
	Recover RecoverCmd `cmd:"" help:"Recover a trashed worktree back to its original path"`
	Trash   TrashCmd   `cmd:"" help:"Inspect and purge the trash"`
	Ports   PortsCmd   `cmd:"" help:"Inspect and release port allocations"`
	Events  EventsCmd  `cmd:"" help:"Read and prune the event ledger"`
	Health  HealthCmd  `cmd:"" help:"Show the health summary"`
	Hide    HideCmd    `cmd:"" help:"Hide a branch from pickers"`
	Show    ShowCmd    `cmd:"" help:"Unhide a branch"`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct before parsing
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings.json > defaults
	if c.settings != nil {
		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("ARBOR_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}
		if !c.Debug {
			if _, hasEnv := os.LookupEnv("ARBOR_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}
	}

	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Let child processes inherit debug settings and append to the same
	// log file
	if c.Debug || c.DebugFile != "" {
		os.Setenv("ARBOR_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("ARBOR_DEBUG_FILE", logFilePath)
		}
	}

	container, err := NewContainer(c.settings)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}
