package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/csim/core/metrics"
)

// StationEntry stamps Count stations out of one template file.
type StationEntry struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
}

// ConnectionConfig holds the outbound request settings of the config file.
// They are loaded and defaulted but not read by the service or the OCPP
// client.
type ConnectionConfig struct {
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
	RetryBackoffSeconds   int `json:"retry_backoff_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ConnectionConfig) SetDefaults() {
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 60
	}
	if c.RetryBackoffSeconds == 0 {
		c.RetryBackoffSeconds = 5
	}
}

// Config is the simulator configuration envelope.
type Config struct {
	SupervisionURL string           `json:"supervision_url"`
	StateDir       string           `json:"state_dir"`
	Stations       []StationEntry   `json:"stations"`
	Connection     ConnectionConfig `json:"connection"`
	Metrics        metrics.Config   `json:"metrics"`
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.SupervisionURL == "" {
		return fmt.Errorf("supervision_url is required")
	}
	if len(c.Stations) == 0 {
		return fmt.Errorf("at least one station entry is required")
	}
	for i, s := range c.Stations {
		if s.Template == "" {
			return fmt.Errorf("stations[%d]: template is required", i)
		}
		if s.Count < 1 {
			return fmt.Errorf("stations[%d]: count must be at least 1", i)
		}
	}
	return nil
}

// Load reads the configuration from a yaml or json file with optional
// CSIM_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("CSIM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "csim_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Connection.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}
