package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	flatpanel "github.com/sergio1990/sh-astro-flat-panel"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Find the panel and report the port it is on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPanel(cmd, func(s *flatpanel.Session, _ *flatpanel.Config) error {
			fmt.Println(okStyle.Render("Connected"), "to", s.ActivePort())
			return nil
		})
	},
}

var brightnessCmd = &cobra.Command{
	Use:   "brightness [value]",
	Short: "Read or set the panel brightness",
	Long: `Without an argument, print the current brightness. With a value, switch
the panel on at that brightness; 0 switches it off.

The value is sent as given. The panel decides which values it accepts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return withPanel(cmd, func(s *flatpanel.Session, _ *flatpanel.Config) error {
				value, err := s.Brightness()
				if err != nil {
					return err
				}
				fmt.Println(value)
				return nil
			})
		}

		value, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("brightness must be an integer, got %q", args[0])
		}
		return withPanel(cmd, func(s *flatpanel.Session, _ *flatpanel.Config) error {
			return s.SetBrightness(value)
		})
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch the panel off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPanel(cmd, func(s *flatpanel.Session, _ *flatpanel.Config) error {
			return s.SetBrightness(0)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect, read the brightness and show link statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPanel(cmd, func(s *flatpanel.Session, cfg *flatpanel.Config) error {
			value, err := s.Brightness()
			m := s.Metrics()

			fmt.Println(headerStyle.Render("Flat panel"))
			printField("Port", m.ActivePort)
			printField("Connected", yesNo(m.IsConnected))
			if err != nil {
				printField("Brightness", errorStyle.Render(err.Error()))
			} else {
				printField("Brightness", value)
			}
			printField("Health", renderHealth(m.HealthStatus))
			fmt.Println()

			fmt.Println(headerStyle.Render("Discovery"))
			printField("Ports probed", m.PortsProbed)
			printField("Ports busy", m.PortsBusy)
			printField("Handshake attempts", m.HandshakeAttempts)
			printField("Handshake timeouts", m.HandshakeTimeouts)
			fmt.Println()

			fmt.Println(headerStyle.Render("Exchanges"))
			printField("Exchanges", m.Exchanges)
			printField("Failures", m.ExchangeFailures)
			printField("NOK replies", m.NOKResponses)
			printField("Average time", m.AverageExchangeTime)
			printField("Bytes out/in", fmt.Sprintf("%d/%d", m.BytesWritten, m.BytesRead))
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(connectCmd, brightnessCmd, offCmd, statusCmd)
}

func renderHealth(h flatpanel.HealthStatus) string {
	switch h {
	case flatpanel.HealthStatusHealthy:
		return okStyle.Render(string(h))
	case flatpanel.HealthStatusDegraded:
		return warnStyle.Render(string(h))
	default:
		return errorStyle.Render(string(h))
	}
}
