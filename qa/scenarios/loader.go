package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/railopt/core/model"
)

// DefaultStart is the snapshot time used when a scenario does not set one.
var DefaultStart = time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC)

// RouteDef describes an alternative route.
type RouteDef struct {
	ID           string   `yaml:"id"`
	Sections     []string `yaml:"sections"`
	ExtraMinutes float64  `yaml:"extra_minutes"`
}

// TrainDef describes a train. Times are minutes after the scenario start.
type TrainDef struct {
	ID           string     `yaml:"id"`
	Priority     float64    `yaml:"priority"`
	Section      string     `yaml:"section,omitempty"`
	PositionKm   float64    `yaml:"position_km,omitempty"`
	SpeedKmh     float64    `yaml:"speed_kmh"`
	MaxSpeedKmh  float64    `yaml:"max_speed_kmh,omitempty"`
	EntryMin     *float64   `yaml:"entry_min,omitempty"`
	ExitMin      *float64   `yaml:"exit_min,omitempty"`
	Route        []string   `yaml:"route"`
	Alternatives []RouteDef `yaml:"alternatives,omitempty"`
}

func (t TrainDef) ToModel(start time.Time) model.Train {
	tr := model.Train{
		ID:          t.ID,
		Priority:    t.Priority,
		SectionID:   t.Section,
		PositionKm:  t.PositionKm,
		SpeedKmh:    t.SpeedKmh,
		MaxSpeedKmh: t.MaxSpeedKmh,
		Route:       append([]string(nil), t.Route...),
	}
	if t.EntryMin != nil {
		tr.ScheduledEntry = start.Add(minutes(*t.EntryMin))
	}
	if t.ExitMin != nil {
		tr.ScheduledExit = start.Add(minutes(*t.ExitMin))
	}
	for _, r := range t.Alternatives {
		tr.Alternatives = append(tr.Alternatives, model.Route{
			ID:           r.ID,
			Sections:     append([]string(nil), r.Sections...),
			ExtraMinutes: r.ExtraMinutes,
		})
	}
	return tr
}

// SectionDef describes a block of track.
type SectionDef struct {
	ID               string  `yaml:"id"`
	Capacity         int     `yaml:"capacity"`
	LengthKm         float64 `yaml:"length_km"`
	Occupancy        int     `yaml:"occupancy,omitempty"`
	OccupiedUntilMin float64 `yaml:"occupied_until_min,omitempty"`
	HeadwayMin       float64 `yaml:"headway_min,omitempty"`
}

func (s SectionDef) ToModel(start time.Time) model.Section {
	sec := model.Section{
		ID:         s.ID,
		Capacity:   s.Capacity,
		LengthKm:   s.LengthKm,
		Occupancy:  s.Occupancy,
		MinHeadway: minutes(s.HeadwayMin),
	}
	if s.OccupiedUntilMin > 0 {
		sec.OccupiedUntil = start.Add(minutes(s.OccupiedUntilMin))
	}
	return sec
}

// ConflictDef describes a detected conflict.
type ConflictDef struct {
	ID        string   `yaml:"id"`
	Trains    []string `yaml:"trains"`
	Sections  []string `yaml:"sections"`
	Severity  string   `yaml:"severity"`
	ImpactMin float64  `yaml:"impact_min,omitempty"`
}

func (c ConflictDef) ToModel(start time.Time) (model.Conflict, error) {
	sev, err := model.ParseSeverity(c.Severity)
	if err != nil {
		return model.Conflict{}, fmt.Errorf("conflict %s: %w", c.ID, err)
	}
	return model.Conflict{
		ID:             c.ID,
		Trains:         append([]string(nil), c.Trains...),
		Sections:       append([]string(nil), c.Sections...),
		Severity:       sev,
		DetectedAt:     start,
		ImpactDuration: minutes(c.ImpactMin),
	}, nil
}

// Expected is what a resolution of one conflict should look like.
type Expected struct {
	Method        string  `yaml:"method,omitempty"`
	Review        *bool   `yaml:"review,omitempty"`
	DelayedTrain  string  `yaml:"delayed_train,omitempty"`
	MinConfidence float64 `yaml:"min_confidence,omitempty"`
}

// Scenario is a network snapshot with the conflicts to resolve on it.
type Scenario struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description,omitempty"`
	Start       time.Time           `yaml:"start,omitempty"`
	Trains      []TrainDef          `yaml:"trains"`
	Sections    []SectionDef        `yaml:"sections"`
	Conflicts   []ConflictDef       `yaml:"conflicts"`
	Expected    map[string]Expected `yaml:"expected,omitempty"`
}

// Snapshot builds the network snapshot of the scenario.
func (s *Scenario) Snapshot() model.NetworkSnapshot {
	start := s.start()
	snap := model.NetworkSnapshot{
		Timestamp: start,
		Trains:    make(map[string]model.Train, len(s.Trains)),
		Sections:  make(map[string]model.Section, len(s.Sections)),
	}
	for _, t := range s.Trains {
		snap.Trains[t.ID] = t.ToModel(start)
	}
	for _, sec := range s.Sections {
		snap.Sections[sec.ID] = sec.ToModel(start)
	}
	return snap
}

// ConflictList converts the conflict definitions.
func (s *Scenario) ConflictList() ([]model.Conflict, error) {
	out := make([]model.Conflict, 0, len(s.Conflicts))
	for _, c := range s.Conflicts {
		mc, err := c.ToModel(s.start())
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, nil
}

func (s *Scenario) start() time.Time {
	if s.Start.IsZero() {
		return DefaultStart
	}
	return s.Start
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	return &sc, nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
