package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinas/console/internal/telemetry"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Stream live system stats and notifications until interrupted",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = opts.runE(func(cmd *cobra.Command, args []string) error {
		c, err := opts.openConsole(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if c.Telemetry() == nil {
			return fmt.Errorf("telemetry is disabled in %s", opts.configManager().Path())
		}

		lines := make(chan string, 16)
		emit := func(s string) {
			select {
			case lines <- s:
			default:
				// Drop rather than block the telemetry goroutine.
			}
		}

		defer c.Stats().Subscribe(func(s telemetry.Stats) {
			emit(formatStats(opts.json, s))
		})()
		defer c.Notifications().Subscribe(func(list []telemetry.Notification) {
			if len(list) > 0 {
				emit(formatNotification(opts.json, list[0]))
			}
		})()

		if err := c.Start(cmd.Context()); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case line := <-lines:
				fmt.Fprintln(out, line)
			}
		}
	})
	return cmd
}

func formatStats(jsonMode bool, s telemetry.Stats) string {
	if jsonMode {
		b, _ := json.Marshal(map[string]any{"type": "stats", "stats": s})
		return string(b)
	}
	return fmt.Sprintf("%s  cpu %5.1f%%  mem %5.1f%%  %s",
		time.Now().Format(time.TimeOnly), s.CPUUsage, s.MemoryUsage, s.FormattedMemory())
}

func formatNotification(jsonMode bool, n telemetry.Notification) string {
	if jsonMode {
		b, _ := json.Marshal(map[string]any{"type": "notification", "notification": n})
		return string(b)
	}
	return fmt.Sprintf("%s  [%s] %s", n.ReceivedAt.Format(time.TimeOnly), n.Level, n.Message)
}
