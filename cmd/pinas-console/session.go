package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in; run 'pinas-console login'")

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the server",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")

	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		p := newPrompter(cmd)
		if username == "" {
			if username, err = p.Line("Username", ""); err != nil {
				return err
			}
		}
		password, err := p.Password("Password")
		if err != nil {
			return err
		}
		if username == "" || password == "" {
			return errors.New("username and password are required")
		}

		user, err := c.Login(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		outputSuccess(cmd, opts.json, fmt.Sprintf("signed in as %s (%s)", user.Username, user.Role),
			map[string]any{"user": user})
		return nil
	})
	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if !c.Auth().Current().Authenticated {
			outputSuccess(cmd, opts.json, "already signed out", nil)
			return nil
		}
		// The local session is cleared even when the server call fails.
		if err := c.Logout(cmd.Context()); err != nil {
			opts.logger.Warn("server logout failed", "error", err)
		}
		outputSuccess(cmd, opts.json, "signed out", nil)
		return nil
	})
	return cmd
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
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
		// Ask the server so an expired token is noticed; a 401 clears the
		// saved session.
		if _, err := c.API().Me(cmd.Context()); err != nil {
			if !c.Auth().Current().Authenticated {
				return errNotSignedIn
			}
			return err
		}

		user := c.Auth().Current().User
		if opts.json {
			return outputJSON(cmd, user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Username, user.Role)
		return nil
	})
	return cmd
}
