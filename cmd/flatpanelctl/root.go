package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	flatpanel "github.com/sergio1990/sh-astro-flat-panel"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "flatpanelctl",
	Short: "Control an SH astro flat panel over a serial port",
	Long: `flatpanelctl finds the flat panel on a serial port by its handshake and
sends it brightness commands.

Settings come from an optional YAML file (--config). Flags and FLATPANEL_*
environment variables override the file, for example:

  FLATPANEL_PORT=/dev/ttyUSB0 flatpanelctl brightness 120
  flatpanelctl --auto-detect=false --port COM5 status`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")
	flags.StringP("port", "p", "", "preferred serial port, probed before any scan")
	flags.Bool("auto-detect", true, "scan all ports when the preferred one does not answer")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	flags.String("log-file", "", "write logs to a rotated file instead of stderr")

	bind := map[string]string{
		"port":        "port",
		"auto_detect": "auto-detect",
		"log.level":   "log-level",
		"log.file":    "log-file",
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	v.SetEnvPrefix("FLATPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// loadConfig reads the config file, if any, and applies flag and
// environment overrides on top of it.
func loadConfig() (*flatpanel.Config, error) {
	cfg := flatpanel.DefaultConfig()
	if cfgFile != "" {
		loaded, err := flatpanel.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("auto_detect") {
		cfg.AutoDetect = v.GetBool("auto_detect")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.file") {
		cfg.Log.File = v.GetString("log.file")
	}
	if v.IsSet("device_guid") {
		cfg.DeviceGUID = v.GetString("device_guid")
	}

	if err := flatpanel.ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// newSession builds a session from cfg. The caller must Close it.
func newSession(cfg *flatpanel.Config) (*flatpanel.Session, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	tracer, err := flatpanel.NewTracerFromConfig(cfg.Log)
	if err != nil {
		return nil, err
	}
	opts = append(opts, flatpanel.WithTracer(tracer))
	return flatpanel.NewSession(flatpanel.SerialDialer{}, opts...), nil
}

// withPanel connects a session and runs fn against it.
func withPanel(cmd *cobra.Command, fn func(s *flatpanel.Session, cfg *flatpanel.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Connect(cmd.Context(), cfg.Port, cfg.AutoDetect)
	if !res.IsConnected {
		return errPanelNotFound(cfg)
	}
	return fn(s, cfg)
}

func errPanelNotFound(cfg *flatpanel.Config) error {
	switch {
	case cfg.Port != "" && !cfg.AutoDetect:
		return fmt.Errorf("flat panel not found on %s", cfg.Port)
	case !cfg.AutoDetect:
		return errors.New("no port given and auto-detect is off")
	default:
		return errors.New("flat panel not found on any serial port")
	}
}
