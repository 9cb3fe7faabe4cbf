package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/railopt/core/audit"
	"github.com/kilianp07/railopt/core/factory"
	"github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/optimizer"
	"github.com/kilianp07/railopt/core/solver"
	"github.com/kilianp07/railopt/infra/mqtt"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. RAILOPT_OPTIMIZER__SOLVER_BUDGET=400ms.
const EnvPrefix = "RAILOPT_"

type Config struct {
	Optimizer   optimizer.Options    `json:"optimizer"`
	Calibration solver.Calibration   `json:"calibration"`
	Policy      factory.ModuleConfig `json:"policy"`
	Audit       audit.Config         `json:"audit"`
	Execution   ExecutionConfig      `json:"execution"`
	MQTT        mqtt.Config          `json:"mqtt"`
	Metrics     metrics.Config       `json:"metrics"`
	Prometheus  PrometheusConfig     `json:"prometheus"`
	Sentry      SentryConfig         `json:"sentry"`
}

var validate = validator.New()

// Load reads the configuration file at path, applies environment overrides,
// fills defaults and validates every section. An empty path loads defaults
// and environment overrides only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	c.Calibration.SetDefaults()
	c.Audit.SetDefaults()
	c.Execution.SetDefaults()
	c.Prometheus.SetDefaults()
	if c.Execution.Mode == ExecutionMQTT {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	if err := c.Calibration.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c.Audit); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if err := validate.Struct(c.Execution); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if c.Execution.Mode == ExecutionMQTT {
		if err := validate.Struct(c.MQTT); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	return nil
}
