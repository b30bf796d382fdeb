package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/domain"
)

// EventsCmd groups ledger reads and pruning
type EventsCmd struct {
	List  EventsListCmd  `cmd:"" help:"Show recent events, most recent first"`
	Prune EventsPruneCmd `cmd:"" help:"Drop events older than the retention threshold"`
}

// EventsListCmd shows recent events
type EventsListCmd struct {
	Count     int    `help:"Maximum number of events" default:"20"`
	Type      string `help:"Filter by event type"`
	Worktree  string `help:"Filter by worktree name"`
	SinceDays int    `help:"Only events from the last N days"`
}

// Run executes the events list command
func (c *EventsListCmd) Run(cli *CLI) error {
	filter := domain.EventFilter{
		Type:     domain.EventType(c.Type),
		Worktree: c.Worktree,
	}
	if c.Type != "" && !filter.Type.Valid() {
		return fmt.Errorf("unknown event type %q", c.Type)
	}
	if c.SinceDays > 0 {
		filter.Since = time.Now().AddDate(0, 0, -c.SinceDays).Unix()
	}

	events, err := cli.Container.Events.ReadRecent(context.Background(), c.Count, filter)
	if err != nil {
		return err
	}
	for _, e := range events {
		ts := time.Unix(e.Timestamp, 0).Format(time.RFC3339)
		if len(e.Data) == 0 {
			fmt.Printf("%s  %s\n", ts, e.Type)
			continue
		}
		data, _ := json.Marshal(e.Data)
		fmt.Printf("%s  %-20s %s\n", ts, e.Type, data)
	}
	return nil
}

// EventsPruneCmd drops events past the age threshold
type EventsPruneCmd struct {
	Days int `help:"Age threshold in days (defaults to event_prune_days)" default:"-1"`
}

// Run executes the events prune command
func (c *EventsPruneCmd) Run(cli *CLI) error {
	days := c.Days
	if days < 0 {
		days = config.DefaultEventPruneDays
		if cli.Container.Settings.EventPruneDays != nil && *cli.Container.Settings.EventPruneDays > 0 {
			days = *cli.Container.Settings.EventPruneDays
		}
	}
	removed, err := cli.Container.Events.Prune(context.Background(), days)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d events older than %d days\n", removed, days)
	return nil
}
