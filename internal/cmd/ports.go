package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/arbor-sh/arbor/internal/config"
)

// PortsCmd groups allocation inspection and release
type PortsCmd struct {
	List      PortsListCmd      `cmd:"" help:"List all allocation records"`
	Release   PortsReleaseCmd   `cmd:"" help:"Release the allocation for a branch"`
	Conflicts PortsConflictsCmd `cmd:"" help:"Probe stored ports and report conflicts"`
}

// PortsListCmd lists all allocation records
type PortsListCmd struct{}

// Run executes the ports list command
func (c *PortsListCmd) Run(cli *CLI) error {
	records, err := cli.Container.Allocator.All(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no allocations")
		return nil
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rec := records[key]
		services := make([]string, 0, len(rec))
		for s := range rec {
			services = append(services, s)
		}
		sort.Strings(services)
		fmt.Printf("%s:", key)
		for _, s := range services {
			fmt.Printf(" %s=%d", s, rec[s])
		}
		fmt.Println()
	}
	return nil
}

// PortsReleaseCmd releases the allocation for a branch
type PortsReleaseCmd struct {
	RepoFlags
	Branch string `arg:"" help:"Branch whose ports should be released"`
}

// Run executes the ports release command
func (c *PortsReleaseCmd) Run(cli *CLI) error {
	released, err := cli.Container.Allocator.Release(context.Background(), c.ProjectName(), c.Branch)
	if err != nil {
		return err
	}
	if !released {
		fmt.Println("nothing allocated")
		return nil
	}
	fmt.Println("released")
	return nil
}

// PortsConflictsCmd probes stored ports and reports conflicts
type PortsConflictsCmd struct {
	Repo string `help:"Path to the bare repository, enables orphan detection" type:"existingdir"`
}

// Run executes the ports conflicts command
func (c *PortsConflictsCmd) Run(cli *CLI) error {
	repo := ""
	if c.Repo != "" {
		repo = config.ExpandPath(c.Repo)
	}
	conflicts, err := cli.Container.Allocator.Conflicts(context.Background(), repo)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println("no conflicts")
		return nil
	}
	for _, cf := range conflicts {
		if cf.Process != "" {
			fmt.Printf("%s  %s=%d  %s (%s)\n", cf.Key, cf.Service, cf.Port, cf.Kind, cf.Process)
			continue
		}
		fmt.Printf("%s  %s=%d  %s\n", cf.Key, cf.Service, cf.Port, cf.Kind)
	}
	return nil
}
