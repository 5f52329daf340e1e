package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henrikRod/jarvis-selftest/internal/monitor"
)

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := monitor.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("No serial ports found. Is the board plugged in?")
				return nil
			}
			for _, p := range ports {
				fmt.Println(p.Name)
			}
			return nil
		},
	}
}
