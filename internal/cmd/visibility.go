package cmd

import (
	"context"
	"fmt"
)

// HideCmd hides a branch from pickers
type HideCmd struct {
	Branch  string `arg:"" help:"Branch to hide"`
	Project string `help:"Project name, or '*' for the global default" default:"*"`
}

// Run executes the hide command
func (c *HideCmd) Run(cli *CLI) error {
	if err := cli.Container.Visibility.Hide(context.Background(), c.Project, c.Branch); err != nil {
		return err
	}
	fmt.Printf("hidden %s in %s\n", c.Branch, c.Project)
	return nil
}

// ShowCmd unhides a branch
type ShowCmd struct {
	Branch  string `arg:"" help:"Branch to unhide"`
	Project string `help:"Project name, or '*' for the global default" default:"*"`
}

// Run executes the show command
func (c *ShowCmd) Run(cli *CLI) error {
	if err := cli.Container.Visibility.Show(context.Background(), c.Project, c.Branch); err != nil {
		return err
	}
	fmt.Printf("visible %s in %s\n", c.Branch, c.Project)
	return nil
}
