package main

import (
	"fmt"

	"github.com/spf13/cobra"

	flatpanel "github.com/sergio1990/sh-astro-flat-panel"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports visible to the system, with USB metadata where
the platform provides it.

With --probe every port is handshaked and the outcome is shown. Probing
takes at least the settle delay per port.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		probe, _ := cmd.Flags().GetBool("probe")

		ports, err := flatpanel.DetailedPorts()
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}

		var discovery *flatpanel.Discovery
		if probe {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			discovery = s.Discovery()
		}

		fmt.Printf("Found %d serial port(s):\n\n", len(ports))
		header := fmt.Sprintf("%-20s %-10s %-28s %s", "Port", "VID:PID", "Product", "Handshake")
		fmt.Println(headerStyle.Render(header))

		for _, p := range ports {
			usb := "-"
			if p.IsUSB {
				usb = p.VID + ":" + p.PID
			}
			outcome := "-"
			if discovery != nil {
				report := discovery.Handshake(cmd.Context(), p.Name)
				outcome = renderOutcome(report)
			}
			fmt.Printf("%-20s %-10s %-28s %s\n", p.Name, usb, p.Product, outcome)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().Bool("probe", false, "run the handshake on every port")
}

func renderOutcome(r flatpanel.ProbeReport) string {
	switch r.Outcome {
	case flatpanel.OutcomeMatched:
		return okStyle.Render(fmt.Sprintf("panel (attempt %d)", r.Attempts))
	case flatpanel.OutcomeTimeout, flatpanel.OutcomeMismatch:
		return warnStyle.Render(r.Outcome.String())
	default:
		return errorStyle.Render(r.Outcome.String())
	}
}
