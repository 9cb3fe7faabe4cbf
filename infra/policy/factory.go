package policy

import (
	"github.com/kilianp07/railopt/core/factory"
	"github.com/kilianp07/railopt/core/solver"
)

var registry = factory.NewRegistry[solver.PolicyBackend]()

func init() {
	_ = registry.Register("linear", func(conf map[string]any) (solver.PolicyBackend, error) {
		cfg := DefaultLinearConfig()
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewLinearPolicy(cfg)
	})
	_ = registry.Register("http", func(conf map[string]any) (solver.PolicyBackend, error) {
		var cfg HTTPConfig
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewHTTPPolicy(cfg)
	})
}

// Register adds a backend factory identified by name.
func Register(name string, f factory.Factory[solver.PolicyBackend]) error {
	return registry.Register(name, f)
}

// New builds the configured backend. An empty type or "none" yields nil,
// which leaves the learned strategy unavailable.
func New(cfg factory.ModuleConfig) (solver.PolicyBackend, error) {
	if cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}
	return registry.Create(cfg)
}
