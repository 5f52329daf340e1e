package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/henrikRod/jarvis-selftest/internal/monitor"
)

func monitorCmd() *cobra.Command {
	var (
		port        string
		duration    time.Duration
		requireWiFi bool
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Follow the self-test console and print a verdict",
		Long: `Follow the self-test firmware over USB serial for a while, then
report Wi-Fi, amplifier and microphone results.

Examples:
  # Use the port from jarvis.yaml
  jarvisctl monitor

  # Listen for a minute on a specific port and require Wi-Fi
  jarvisctl monitor --port /dev/ttyACM1 --duration 1m --require-wifi`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Serial.Port = port
			}
			if cmd.Flags().Changed("duration") {
				cfg.Monitor.Duration = duration
			}
			if cmd.Flags().Changed("require-wifi") {
				cfg.Monitor.RequireWiFi = requireWiFi
			}

			sp, err := monitor.Open(cfg.Serial.Port, cfg.Serial.BaudRate)
			if err != nil {
				return err
			}
			defer sp.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.Monitor.Duration)
			defer cancel()
			go func() {
				// Unblock the pending read.
				<-ctx.Done()
				sp.Close()
			}()

			m := monitor.New(newLogger())
			m.OnRecord = printRecord
			fmt.Printf("Listening on %s for %s\n", cfg.Serial.Port, cfg.Monitor.Duration)
			if err := m.Run(ctx, sp); err != nil && ctx.Err() == nil {
				return err
			}

			s := m.Summary()
			printSummary(&s)
			v := s.Evaluate(cfg.Monitor)
			fmt.Println(v)
			if !v.Pass {
				return errors.New("self-test failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial port (overrides config)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "How long to listen (overrides config)")
	cmd.Flags().BoolVar(&requireWiFi, "require-wifi", false, "Fail when the board does not join Wi-Fi")
	return cmd
}

func printRecord(r monitor.Record) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %s", r.Level, r.Msg)
	for _, k := range []string{"ip", "frames", "dbfs_l", "dbfs_r", "err", "hint"} {
		if v := r.Attr(k); v != "" {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}
	fmt.Println(b.String())
}

func printSummary(s *monitor.Summary) {
	fmt.Println("--- summary ---")
	fmt.Printf("boots:      %d\n", s.Boots)
	fmt.Printf("wifi:       %s %s\n", s.WiFi.Status, s.WiFi.Detail)
	fmt.Printf("amplifier:  %s %s\n", s.Amp.Status, s.Amp.Detail)
	fmt.Printf("microphone: %s %s\n", s.Mic.Status, s.Mic.Detail)
	fmt.Printf("reports:    %d (read failures %d)\n", s.Reports, s.ReadFailures)
	if s.Reports > 0 {
		for _, ch := range []struct {
			name  string
			stats monitor.ChannelStats
		}{{"L", s.Left}, {"R", s.Right}} {
			fmt.Printf("  %s: min %.1f  max %.1f  mean %.1f dBFS\n",
				ch.name, ch.stats.Min, ch.stats.Max, ch.stats.Mean())
		}
	}
}
