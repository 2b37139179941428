package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pinas/console/internal/api"
)

// Package-level hooks for testing.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// outputError prints err in the selected format.
func outputError(cmd *cobra.Command, jsonMode bool, err error) {
	message := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		message = api.PublicMessage(err)
	}

	if jsonMode {
		data := map[string]any{
			"success": false,
			"error":   message,
		}
		if apiErr != nil {
			data["kind"] = string(apiErr.Kind)
			if apiErr.Code != "" {
				data["code"] = apiErr.Code
			}
		}
		output, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", message)
}

// outputSuccess prints a one-line message, or data as JSON.
func outputSuccess(cmd *cobra.Command, jsonMode bool, message string, data map[string]any) {
	if jsonMode {
		if data == nil {
			data = map[string]any{}
		}
		data["success"] = true
		output, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", message)
}

// outputJSON prints v as indented JSON.
func outputJSON(cmd *cobra.Command, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}

// prompter reads answers from the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{
		in:  bufio.NewReader(cmd.InOrStdin()),
		out: cmd.ErrOrStderr(),
		fd:  -1,
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		p.fd = int(f.Fd())
		p.tty = isTerminal(p.fd)
	}
	return p
}

// Line asks for a value, returning def when the answer is blank.
func (p *prompter) Line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	if v := strings.TrimSpace(line); v != "" {
		return v, nil
	}
	return def, nil
}

// Password reads a secret without echo when the input is a terminal.
func (p *prompter) Password(label string) (string, error) {
	if !p.tty {
		return p.Line(label, "")
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
