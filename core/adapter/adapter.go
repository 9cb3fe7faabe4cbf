package adapter

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/solver"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize builds the solver-facing problem for a conflict. Every train and
// section of the conflict must be present in the snapshot; nothing is solved
// otherwise.
func Normalize(c model.Conflict, snap model.NetworkSnapshot) (*solver.Problem, error) {
	if err := validate.Struct(c); err != nil {
		return nil, &AdapterError{Kind: KindInvalidInput, Entity: "conflict", ID: c.ID, Err: err}
	}

	now := snap.Timestamp
	if now.IsZero() {
		now = c.DetectedAt
	}
	p := &solver.Problem{
		ConflictID: c.ID,
		Severity:   c.Severity,
		Now:        now,
		Horizon:    c.ImpactDuration,
		Sections:   make([]solver.SectionState, 0, len(c.Sections)),
		Trains:     make([]solver.TrainState, 0, len(c.Trains)),
	}

	index := make(map[string]int, len(c.Sections))
	for _, id := range c.Sections {
		if _, dup := index[id]; dup {
			continue
		}
		s, ok := snap.Section(id)
		if !ok {
			return nil, &AdapterError{Kind: KindMissingEntity, Entity: "section", ID: id}
		}
		index[id] = len(p.Sections)
		p.Sections = append(p.Sections, solver.SectionState{
			ID:            s.ID,
			Capacity:      s.Capacity,
			LengthKm:      s.LengthKm,
			Occupancy:     s.Occupancy,
			OccupiedUntil: s.OccupiedUntil,
			Headway:       s.MinHeadway,
		})
	}

	seen := make(map[string]bool, len(c.Trains))
	for _, id := range c.Trains {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, ok := snap.Train(id)
		if !ok {
			return nil, &AdapterError{Kind: KindMissingEntity, Entity: "train", ID: id}
		}
		p.Trains = append(p.Trains, normalizeTrain(t, c, p, index))
	}
	return p, nil
}

func normalizeTrain(t model.Train, c model.Conflict, p *solver.Problem, index map[string]int) solver.TrainState {
	secs := contested(t.Route, index)
	if len(secs) == 0 {
		secs = make([]int, len(p.Sections))
		for i := range secs {
			secs[i] = i
		}
	}

	var alts []solver.RouteOption
	for _, r := range t.Alternatives {
		rs := contested(r.Sections, index)
		if len(rs) >= len(secs) {
			continue
		}
		alts = append(alts, solver.RouteOption{ID: r.ID, ExtraMinutes: r.ExtraMinutes, Sections: rs})
	}

	start := t.ScheduledEntry
	if start.IsZero() {
		start = p.Now
	}
	end := t.ScheduledExit
	if end.IsZero() || end.Before(start) {
		end = start.Add(runTime(t, secs, p, c))
	}
	return solver.TrainState{
		ID:           t.ID,
		Priority:     t.Priority,
		SectionID:    t.SectionID,
		PositionKm:   t.PositionKm,
		SpeedKmh:     t.SpeedKmh,
		MaxSpeedKmh:  t.MaxSpeedKmh,
		Start:        start,
		End:          end,
		Sections:     secs,
		Alternatives: alts,
	}
}

// contested returns the indexes of the contested sections of a route.
func contested(route []string, index map[string]int) []int {
	var out []int
	used := make(map[int]bool)
	for _, s := range route {
		if i, ok := index[s]; ok && !used[i] {
			used[i] = true
			out = append(out, i)
		}
	}
	return out
}

// runTime estimates how long the train occupies its contested sections.
func runTime(t model.Train, secs []int, p *solver.Problem, c model.Conflict) time.Duration {
	var km float64
	for _, i := range secs {
		km += p.Sections[i].LengthKm
	}
	speed := t.SpeedKmh
	if speed <= 0 {
		speed = t.MaxSpeedKmh
	}
	if speed > 0 && km > 0 {
		return time.Duration(km * float64(time.Hour) / speed)
	}
	if c.ImpactDuration > 0 {
		return c.ImpactDuration
	}
	return 5 * time.Minute
}

// Denormalize maps a candidate back to domain actions. It has no side
// effects and rejects any action referencing an entity outside the conflict.
func Denormalize(s model.CandidateSolution, c model.Conflict) (model.DomainActionSet, error) {
	set := model.DomainActionSet{ConflictID: c.ID, Actions: make([]model.Action, 0, len(s.Actions))}
	for _, a := range s.Actions {
		for _, id := range a.Trains() {
			if !c.HasTrain(id) {
				return model.DomainActionSet{}, &AdapterError{Kind: KindInvalidAction, Entity: "train", ID: id}
			}
		}
		for _, id := range a.Sections() {
			if !c.HasSection(id) {
				return model.DomainActionSet{}, &AdapterError{Kind: KindInvalidAction, Entity: "section", ID: id}
			}
		}
		if a.TrainID == "" && a.Type != model.ActionReorder {
			return model.DomainActionSet{}, &AdapterError{Kind: KindInvalidAction, Entity: "train", ID: ""}
		}
		cp := a
		cp.Order = append([]string(nil), a.Order...)
		if len(cp.Order) == 0 {
			cp.Order = nil
		}
		set.Actions = append(set.Actions, cp)
	}
	return set, nil
}
