package config

// Execution modes.
const (
	ExecutionNop  = "nop"
	ExecutionMQTT = "mqtt"
)

// ExecutionConfig selects where auto-applied decisions are sent.
type ExecutionConfig struct {
	Mode string `json:"mode" validate:"oneof=nop mqtt"`
}

// SetDefaults applies sane defaults.
func (c *ExecutionConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ExecutionNop
	}
}

// PrometheusConfig controls the /metrics endpoint.
type PrometheusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *PrometheusConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9100"
	}
}
