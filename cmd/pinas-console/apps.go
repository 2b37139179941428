package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/pinas/console/internal/desktop"
)

type appRow struct {
	desktop.App
	Pinned bool `json:"pinned"`
}

func newAppsCmd(opts *globalOptions) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List built-in and installed apps",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show apps whose name or id contains this")

	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		apps := c.Registry().Search(search)
		rows := make([]appRow, 0, len(apps))
		for _, a := range apps {
			rows = append(rows, appRow{App: a, Pinned: c.Pinned().Contains(a.ID)})
		}

		if opts.json {
			return outputJSON(cmd, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), c.I18n().T("common.noApplicationsFound"))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderAppTable(rows))
		return nil
	})
	return cmd
}

func renderAppTable(rows []appRow) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "COMPONENT", "SOURCE", "PINNED")
	for _, r := range rows {
		source := "installed"
		if r.Builtin {
			source = "built-in"
		}
		pinned := ""
		if r.Pinned {
			pinned = "yes"
		}
		t.Row(r.ID, r.Name, desktop.ResolveComponent(r.Component), source, pinned)
	}
	return t.String()
}

func newPinCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin <app-id>",
		Short: "Add an app to the desktop",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.PinApp(args[0]); err != nil {
			return err
		}
		outputSuccess(cmd, opts.json, fmt.Sprintf("pinned %s", args[0]),
			map[string]any{"pinned": c.Pinned().IDs()})
		return nil
	})
	return cmd
}

func newUnpinCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpin <app-id>",
		Short: "Remove an app from the desktop",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.UnpinApp(args[0]); err != nil {
			return err
		}
		outputSuccess(cmd, opts.json, fmt.Sprintf("unpinned %s", args[0]),
			map[string]any{"pinned": c.Pinned().IDs()})
		return nil
	})
	return cmd
}
