package main

import (
	"fmt"

	"github.com/spf13/cobra"

	flatpanel "github.com/sergio1990/sh-astro-flat-panel"
)

var probeCmd = &cobra.Command{
	Use:   "probe <port>",
	Short: "Run the identity handshake on one port",
	Long: `Open the port, wait for the panel to settle and send PING until the
panel answers with its identity or the attempts run out.

Examples:
  flatpanelctl probe /dev/ttyUSB0
  flatpanelctl probe COM5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		tracer, err := flatpanel.NewTracerFromConfig(cfg.Log)
		if err != nil {
			return err
		}
		defer tracer.Close()

		if listed, err := flatpanel.PortListed(args[0]); err == nil && !listed {
			fmt.Println(warnStyle.Render("Warning:"), args[0], "is not in the system port list")
		}

		d := flatpanel.NewDiscovery(flatpanel.SerialDialer{}, append(opts, flatpanel.WithTracer(tracer))...)
		report := d.Handshake(cmd.Context(), args[0])

		printField("Port", report.Port)
		printField("Outcome", renderOutcome(report))
		printField("Attempts", fmt.Sprintf("%d of %d", report.Attempts, cfg.Probe.Attempts))
		if report.Reply != "" {
			printField("Last reply", report.Reply)
		}
		if !report.Matched {
			return fmt.Errorf("no flat panel on %s", report.Port)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
