package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henrikRod/jarvis-selftest/internal/capture"
)

func analyzeCmd() *cobra.Command {
	var (
		bclk, lrclk, data string
		shift             uint
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Measure the microphone level in a Saleae I2S capture",
		Long: `Decode the left channel of a microphone I2S bus recorded with a
Saleae logic analyzer and exported as binary digital files.

Examples:
  jarvisctl analyze --bclk digital_0.bin --lrclk digital_1.bin --data digital_2.bin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c := cfg.Capture
			if cmd.Flags().Changed("bclk") {
				c.BCLK = bclk
			}
			if cmd.Flags().Changed("lrclk") {
				c.LRCLK = lrclk
			}
			if cmd.Flags().Changed("data") {
				c.Data = data
			}
			if cmd.Flags().Changed("shift") {
				c.Shift = shift
			}
			r, err := capture.Analyze(c)
			if err != nil {
				return err
			}
			fmt.Printf("slots:   %d (partial %d)\n", r.Slots, r.Partial)
			fmt.Printf("span:    %.6fs - %.6fs\n", r.Start, r.End)
			fmt.Printf("peak:    %d\n", r.Peak)
			fmt.Printf("L:       %s\n", r.Level)
			return nil
		},
	}
	cmd.Flags().StringVar(&bclk, "bclk", "", "BCLK export file")
	cmd.Flags().StringVar(&lrclk, "lrclk", "", "LRCLK export file")
	cmd.Flags().StringVar(&data, "data", "", "SD export file")
	cmd.Flags().UintVar(&shift, "shift", 0, "Right shift from 32-bit word to 16-bit sample")
	return cmd
}
