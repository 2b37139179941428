package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pinas/console/internal/i18n"
	"github.com/pinas/console/internal/ui"
)

func newLocaleCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "locale [en|fr]",
		Short:     "Show or change the interface language",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(i18n.English), string(i18n.French)},
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		tr := c.I18n()
		if len(args) == 1 {
			locale, ok := i18n.ParseLocale(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", i18n.ErrUnsupportedLocale, args[0])
			}
			if err := tr.SetLocale(locale); err != nil {
				return err
			}
		}

		current := tr.Locale()
		if opts.json {
			return outputJSON(cmd, map[string]any{"locale": current, "available": i18n.Languages})
		}
		for _, l := range i18n.Languages {
			marker := " "
			if l.Code == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-3s %s\n", marker, l.Code, l.Name)
		}
		return nil
	})
	return cmd
}

func newThemeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "theme [dark|light|auto]",
		Short:     "Show or change the desktop theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{ui.ThemeDark, ui.ThemeLight, ui.ThemeAuto},
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if len(args) == 1 {
			pref := strings.ToLower(strings.TrimSpace(args[0]))
			switch pref {
			case ui.ThemeDark, ui.ThemeLight, ui.ThemeAuto:
			default:
				return fmt.Errorf("unknown theme %q (valid: dark, light, auto)", args[0])
			}
			if err := c.SetTheme(pref); err != nil {
				return err
			}
		}

		pref := c.Config().Theme
		resolved := ui.ResolveTheme(pref)
		if opts.json {
			return outputJSON(cmd, map[string]any{"theme": pref, "resolved": resolved})
		}
		if pref == ui.ThemeAuto {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", pref, resolved)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), pref)
		}
		return nil
	})
	return cmd
}
