package solver

import (
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// Problem is the solver-facing view of a conflict. It is built fresh for each
// resolution and must be treated as read-only by solvers.
type Problem struct {
	ConflictID string
	Severity   model.Severity
	Now        time.Time
	Horizon    time.Duration
	Trains     []TrainState
	Sections   []SectionState
}

// TrainState holds the normalised attributes of one train.
type TrainState struct {
	ID          string
	Priority    float64
	SectionID   string
	PositionKm  float64
	SpeedKmh    float64
	MaxSpeedKmh float64
	// Start and End bound the scheduled occupation of the contested area.
	Start time.Time
	End   time.Time
	// Sections are indexes into Problem.Sections used by the planned route.
	Sections     []int
	Alternatives []RouteOption
}

// RouteOption is an alternative route. Sections lists the contested sections
// the route still goes through.
type RouteOption struct {
	ID           string
	ExtraMinutes float64
	Sections     []int
}

// SectionState holds the normalised attributes of one contested section.
type SectionState struct {
	ID            string
	Capacity      int
	LengthKm      float64
	Occupancy     int
	OccupiedUntil time.Time
	Headway       time.Duration
}

// Clone returns a deep copy of the problem.
func (p *Problem) Clone() *Problem {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Trains = make([]TrainState, len(p.Trains))
	for i, t := range p.Trains {
		t.Sections = append([]int(nil), t.Sections...)
		alts := make([]RouteOption, len(t.Alternatives))
		for j, a := range t.Alternatives {
			a.Sections = append([]int(nil), a.Sections...)
			alts[j] = a
		}
		t.Alternatives = alts
		cp.Trains[i] = t
	}
	cp.Sections = append([]SectionState(nil), p.Sections...)
	return &cp
}

// minutes converts t into minutes relative to p.Now.
func (p *Problem) minutes(t time.Time) float64 {
	return t.Sub(p.Now).Minutes()
}

// window returns the train occupation window in minutes relative to Now.
func (p *Problem) window(i int) (float64, float64) {
	t := p.Trains[i]
	start := p.minutes(t.Start)
	end := p.minutes(t.End)
	if end < start {
		end = start
	}
	return start, end
}

func (p *Problem) horizonMinutes() float64 {
	h := p.Horizon.Minutes()
	if h <= 0 {
		return 60
	}
	return h
}

func (p *Problem) maxPriority() float64 {
	var m float64
	for _, t := range p.Trains {
		if t.Priority > m {
			m = t.Priority
		}
	}
	return m
}
