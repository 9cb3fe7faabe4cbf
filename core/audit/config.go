package audit

import "fmt"

// Config selects and parameterises the audit backend.
type Config struct {
	// Backend is one of memory, jsonl or sqlite.
	Backend string `json:"backend" validate:"omitempty,oneof=memory jsonl sqlite"`
	Path    string `json:"path"`
	// Rotation applies to the jsonl backend; zero MaxSizeMB disables it.
	MaxSizeMB  int `json:"max_size_mb" validate:"gte=0"`
	MaxBackups int `json:"max_backups" validate:"gte=0"`
	MaxAgeDays int `json:"max_age_days" validate:"gte=0"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "jsonl" && c.Path == "" {
		c.Path = "audit/decisions.jsonl"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "audit/decisions.db"
	}
}

// Open creates the configured store.
func Open(c Config) (Store, error) {
	c.SetDefaults()
	switch c.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "jsonl":
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	case "sqlite":
		if err := ensureDir(c.Path); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	}
	return nil, fmt.Errorf("audit: unknown backend %q", c.Backend)
}
