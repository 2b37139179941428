package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pinas/console/internal/ui"
)

func newDesktopCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "desktop",
		Short: "Open the terminal desktop",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if !c.Auth().Current().Authenticated {
			return errNotSignedIn
		}
		if !term.IsTerminal(0) {
			opts.logger.Warn("stdin is not a terminal; the desktop may not render correctly")
		}
		if err := c.Start(cmd.Context()); err != nil {
			return err
		}
		return ui.Run(c)
	})
	return cmd
}
