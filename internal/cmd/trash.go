package cmd

import (
	"context"
	"fmt"
	"time"
)

// TrashCmd groups trash inspection and removal
type TrashCmd struct {
	List  TrashListCmd  `cmd:"" help:"List recoverable entries"`
	Rm    TrashRmCmd    `cmd:"" help:"Permanently delete one entry"`
	Empty TrashEmptyCmd `cmd:"" help:"Permanently delete every entry"`
	Purge TrashPurgeCmd `cmd:"" help:"Delete entries older than the retention threshold"`
}

// TrashListCmd lists recoverable entries
type TrashListCmd struct{}

// Run executes the trash list command
func (c *TrashListCmd) Run(cli *CLI) error {
	entries, err := cli.Container.Trash.List(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("trash is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  branch=%s  deleted=%s  files=%d  size=%s\n",
			e.ID, e.Branch,
			time.Unix(e.DeletedAt, 0).Format(time.RFC3339),
			e.FilesCount, humanSize(e.DiskSize))
		if e.LastCommit != "" {
			fmt.Printf("    last commit: %s\n", e.LastCommit)
		}
	}
	return nil
}

// TrashRmCmd permanently deletes one entry
type TrashRmCmd struct {
	Entry string `arg:"" help:"Trash entry ID"`
}

// Run executes the trash rm command
func (c *TrashRmCmd) Run(cli *CLI) error {
	if err := cli.Container.Trash.PermanentDelete(context.Background(), c.Entry); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", c.Entry)
	return nil
}

// TrashEmptyCmd permanently deletes every entry
type TrashEmptyCmd struct{}

// Run executes the trash empty command
func (c *TrashEmptyCmd) Run(cli *CLI) error {
	removed, err := cli.Container.Trash.EmptyAll(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("removed %d entries\n", removed)
	return nil
}

// TrashPurgeCmd deletes entries past the age threshold
type TrashPurgeCmd struct {
	Days int `help:"Age threshold in days (defaults to trash_retention_days)" default:"-1"`
}

// Run executes the trash purge command
func (c *TrashPurgeCmd) Run(cli *CLI) error {
	days := c.Days
	if days < 0 {
		days = cli.Container.Settings.TrashRetentionOrDefault()
	}
	purged, err := cli.Container.Trash.AutoPurge(context.Background(), days)
	if err != nil {
		return err
	}
	if len(purged) == 0 {
		fmt.Printf("nothing older than %d days\n", days)
		return nil
	}
	for _, id := range purged {
		fmt.Printf("purged %s\n", id)
	}
	return nil
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
