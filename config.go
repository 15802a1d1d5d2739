package flatpanel

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration of the panel client.
type Config struct {
	Port       string       `yaml:"port"`
	AutoDetect bool         `yaml:"auto_detect"`
	DeviceGUID string       `yaml:"device_guid" validate:"required,uuid"`
	Serial     SerialConfig `yaml:"serial"`
	Probe      ProbeConfig  `yaml:"probe"`
	Log        LogConfig    `yaml:"log"`
}

type SerialConfig struct {
	BaudRate    int           `yaml:"baud_rate" validate:"oneof=1200 2400 4800 9600 19200 38400 57600 115200 230400 460800 921600"`
	DataBits    int           `yaml:"data_bits" validate:"min=5,max=8"`
	Parity      string        `yaml:"parity" validate:"oneof=none odd even mark space"`
	StopBits    string        `yaml:"stop_bits" validate:"oneof=1 1.5 2"`
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`
}

type ProbeConfig struct {
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`
	SettleDelay time.Duration `yaml:"settle_delay" validate:"gte=0"`
	Attempts    int           `yaml:"attempts" validate:"min=1,max=20"`
}

type LogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format     string `yaml:"format" validate:"oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the panel's factory parameters with auto-detection on.
func DefaultConfig() Config {
	return Config{
		AutoDetect: true,
		DeviceGUID: DeviceGUID,
		Serial: SerialConfig{
			BaudRate:    Baud57600.Int(),
			DataBits:    DataBits8.Int(),
			Parity:      ParityNone.String(),
			StopBits:    "1",
			ReadTimeout: SessionReadTimeout,
		},
		Probe: ProbeConfig{
			ReadTimeout: ProbeReadTimeout,
			SettleDelay: DefaultSettleDelay,
			Attempts:    DefaultHandshakeAttempts,
		},
		Log: LogConfig{
			Enabled:    true,
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads a YAML file over DefaultConfig. Environment variables in the
// file are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data over DefaultConfig and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.DeviceGUID == "" {
		c.DeviceGUID = def.DeviceGUID
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.DataBits == 0 {
		c.Serial.DataBits = def.Serial.DataBits
	}
	if c.Serial.Parity == "" {
		c.Serial.Parity = def.Serial.Parity
	}
	if c.Serial.StopBits == "" {
		c.Serial.StopBits = def.Serial.StopBits
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if c.Probe.ReadTimeout == 0 {
		c.Probe.ReadTimeout = def.Probe.ReadTimeout
	}
	if c.Probe.Attempts == 0 {
		c.Probe.Attempts = def.Probe.Attempts
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Settings converts the serial section to line settings.
func (c *Config) Settings() (Settings, error) {
	parity, err := ParseParity(c.Serial.Parity)
	if err != nil {
		return Settings{}, err
	}
	stopBits, err := ParseStopBits(c.Serial.StopBits)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		BaudRate:    BaudRate(c.Serial.BaudRate),
		DataBits:    DataBits(c.Serial.DataBits),
		Parity:      parity,
		StopBits:    stopBits,
		ReadTimeout: c.Serial.ReadTimeout,
	}, nil
}

// Options translates the config into Session/Discovery options. The tracer
// is not included; build it with NewTracerFromConfig(c.Log).
func (c *Config) Options() ([]Option, error) {
	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}
	id, err := NewIdentity(c.DeviceGUID)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithSettings(settings),
		WithIdentity(id),
		WithProbeReadTimeout(c.Probe.ReadTimeout),
		WithSettleDelay(c.Probe.SettleDelay),
		WithHandshakeAttempts(c.Probe.Attempts),
	}, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
