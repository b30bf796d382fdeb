package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/domain"
)

// HealthCmd shows the derived health summary
type HealthCmd struct {
	Repo       string `help:"Path to the bare repository, enables orphan detection" type:"existingdir"`
	WindowDays int    `help:"Event aggregation window in days" default:"7"`
}

// Run executes the health command
func (c *HealthCmd) Run(cli *CLI) error {
	repo := ""
	if c.Repo != "" {
		repo = config.ExpandPath(c.Repo)
	}

	report, err := cli.Container.Health.Report(context.Background(), c.WindowDays, repo)
	if err != nil {
		return err
	}

	fmt.Printf("allocations: %d\n", report.Allocations)
	fmt.Printf("trash entries: %d", report.TrashEntries)
	if report.OldestTrashed > 0 {
		fmt.Printf(" (oldest %s)", time.Unix(report.OldestTrashed, 0).Format("2006-01-02"))
	}
	fmt.Println()

	fmt.Printf("events (last %d days): %d total, %d errors\n",
		c.WindowDays, report.Events.Total, report.Events.Errors)

	types := make([]string, 0, len(report.Events.ByType))
	for t := range report.Events.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-20s %d\n", t, report.Events.ByType[domain.EventType(t)])
	}

	if len(report.Conflicts) == 0 {
		fmt.Println("ports: no conflicts")
		return nil
	}
	fmt.Printf("ports: %d conflicts\n", len(report.Conflicts))
	for _, cf := range report.Conflicts {
		fmt.Printf("  %s %s=%d %s %s\n", cf.Key, cf.Service, cf.Port, cf.Kind, cf.Process)
	}
	return nil
}
