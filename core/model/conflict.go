package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity classifies how disruptive a conflict is expected to be.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Conflict identifies a contested resource window: the trains competing for
// a set of track sections. A conflict is immutable once handed to the engine.
type Conflict struct {
	ID             string        `json:"id" validate:"required"`
	Trains         []string      `json:"trains" validate:"required,min=1,dive,required"`
	Sections       []string      `json:"sections" validate:"required,min=1,dive,required"`
	Severity       Severity      `json:"severity" validate:"gte=0,lte=3"`
	DetectedAt     time.Time     `json:"detected_at"`
	ImpactDuration time.Duration `json:"impact_duration"`
}

// HasTrain reports whether the train takes part in the conflict.
func (c Conflict) HasTrain(id string) bool {
	for _, t := range c.Trains {
		if t == id {
			return true
		}
	}
	return false
}

// HasSection reports whether the section is contested by the conflict.
func (c Conflict) HasSection(id string) bool {
	for _, s := range c.Sections {
		if s == id {
			return true
		}
	}
	return false
}
