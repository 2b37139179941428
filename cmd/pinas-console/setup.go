package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pinas/console/internal/onboarding"
	"github.com/pinas/console/internal/shell"
)

func newSetupCmd(opts *globalOptions) *cobra.Command {
	var machine, username string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run first-time setup: name the machine and create the administrator",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&machine, "machine-name", "", "Machine name (prompted when omitted)")
	cmd.Flags().StringVar(&username, "admin", "", "Administrator username (prompted when omitted)")

	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		wiz := c.Onboarding()
		done, err := wiz.CheckRemote(cmd.Context())
		if err != nil {
			return err
		}
		if done {
			outputSuccess(cmd, opts.json, "setup has already been completed", map[string]any{"setupComplete": true})
			return nil
		}

		if err := runWizard(cmd, c, machine, username); err != nil {
			return err
		}

		user := c.Auth().Current().User
		outputSuccess(cmd, opts.json,
			c.I18n().Tf("onboarding.done", map[string]any{"username": user.Username}),
			map[string]any{"setupComplete": true, "user": user})
		return nil
	})
	return cmd
}

// runWizard walks the wizard's steps on the terminal and submits.
func runWizard(cmd *cobra.Command, c *shell.Console, machine, username string) error {
	wiz := c.Onboarding()
	tr := c.I18n()
	p := newPrompter(cmd)
	out := cmd.ErrOrStderr()

	step := func() {
		fmt.Fprintln(out, tr.Tf("onboarding.stepOf", map[string]any{
			"step": wiz.State().Step, "total": onboarding.TotalSteps,
		}))
	}

	wiz.SetStep(1)
	fmt.Fprintln(out, tr.T("onboarding.title"))
	step()
	fmt.Fprintln(out, tr.T("onboarding.welcome"))

	wiz.Next()
	step()
	if machine == "" {
		v, err := p.Line(tr.T("onboarding.machineName"), "pinas")
		if err != nil {
			return err
		}
		machine = v
	}
	wiz.UpdateConfig(onboarding.Config{MachineName: machine})

	wiz.Next()
	step()
	if username == "" {
		v, err := p.Line(tr.T("onboarding.adminUsername"), "admin")
		if err != nil {
			return err
		}
		username = v
	}
	password, err := p.Password(tr.T("onboarding.adminPassword"))
	if err != nil {
		return err
	}
	wiz.UpdateConfig(onboarding.Config{AdminUsername: username, AdminPassword: password})
	if err := wiz.Validate(); err != nil {
		return localizeSetupError(c, err)
	}

	wiz.Next()
	step()
	cfg := wiz.State().Config
	fmt.Fprintln(out, tr.T("onboarding.summary"))
	fmt.Fprintf(out, "  %s: %s\n  %s: %s\n",
		tr.T("onboarding.machineName"), cfg.MachineName,
		tr.T("onboarding.adminUsername"), cfg.AdminUsername)

	return wiz.Submit(cmd.Context())
}

// localizedError shows a translated message while still matching the
// underlying sentinel.
type localizedError struct {
	msg string
	err error
}

func (e localizedError) Error() string { return e.msg }
func (e localizedError) Unwrap() error { return e.err }

func localizeSetupError(c *shell.Console, err error) error {
	tr := c.I18n()
	var msg string
	switch {
	case errors.Is(err, onboarding.ErrMachineNameRequired):
		msg = tr.T("onboarding.errors.machineNameRequired")
	case errors.Is(err, onboarding.ErrUsernameRequired):
		msg = tr.T("onboarding.errors.usernameRequired")
	case errors.Is(err, onboarding.ErrPasswordTooShort):
		msg = tr.Tf("onboarding.errors.passwordTooShort", map[string]any{"min": onboarding.MinPasswordLength})
	default:
		return err
	}
	return localizedError{msg: msg, err: err}
}
