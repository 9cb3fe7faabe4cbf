// Package synthetic generates random conflicts for property checks and
// benchmarks.
package synthetic

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// Start is the time of the first generated snapshot.
var Start = time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC)

// Generator produces random but valid conflicts together with the snapshot
// they refer to. The same seed yields the same sequence.
type Generator struct {
	rng   *rand.Rand
	start time.Time
	n     int
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), start: Start}
}

// Next returns a new conflict with at least one train and one section.
func (g *Generator) Next() (model.Conflict, model.NetworkSnapshot) {
	g.n++
	r := g.rng
	now := g.start.Add(time.Duration(g.n) * time.Minute)

	nSec := 1 + r.Intn(3)
	nTrain := 1 + r.Intn(5)
	snap := model.NetworkSnapshot{
		Timestamp: now,
		Trains:    make(map[string]model.Train, nTrain),
		Sections:  make(map[string]model.Section, nSec+1),
	}
	c := model.Conflict{
		ID:             fmt.Sprintf("syn-%d", g.n),
		Severity:       model.Severity(r.Intn(4)),
		DetectedAt:     now,
		ImpactDuration: time.Duration(r.Intn(20)) * time.Minute,
	}

	for i := 0; i < nSec; i++ {
		s := model.Section{
			ID:         fmt.Sprintf("sec-%d", i),
			Capacity:   r.Intn(3),
			LengthKm:   0.5 + r.Float64()*12,
			MinHeadway: time.Duration(r.Intn(4)) * time.Minute,
		}
		if r.Intn(4) == 0 {
			s.Occupancy = 1
			s.OccupiedUntil = now.Add(time.Duration(1+r.Intn(6)) * time.Minute)
		}
		snap.Sections[s.ID] = s
		c.Sections = append(c.Sections, s.ID)
	}
	// a bypass that is never contested
	snap.Sections["bypass"] = model.Section{ID: "bypass", Capacity: 2, LengthKm: 4}

	for i := 0; i < nTrain; i++ {
		t := model.Train{
			ID:          fmt.Sprintf("t-%d", i),
			Priority:    float64(1 + r.Intn(10)),
			PositionKm:  r.Float64() * 50,
			SpeedKmh:    float64(r.Intn(160)),
			MaxSpeedKmh: 80 + float64(r.Intn(120)),
			Route:       g.route(c.Sections),
		}
		if r.Intn(3) > 0 {
			t.ScheduledEntry = now.Add(time.Duration(r.Intn(15)) * time.Minute)
			if r.Intn(2) == 0 {
				t.ScheduledExit = t.ScheduledEntry.Add(time.Duration(1+r.Intn(10)) * time.Minute)
			}
		}
		if r.Intn(3) == 0 {
			t.Alternatives = append(t.Alternatives, model.Route{
				ID:           fmt.Sprintf("alt-%d", i),
				Sections:     []string{"bypass"},
				ExtraMinutes: float64(1 + r.Intn(10)),
			})
		}
		snap.Trains[t.ID] = t
		c.Trains = append(c.Trains, t.ID)
	}
	return c, snap
}

// route picks a non-empty ordered subset of the sections.
func (g *Generator) route(sections []string) []string {
	var out []string
	for _, s := range sections {
		if g.rng.Intn(3) > 0 {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, sections[g.rng.Intn(len(sections))])
	}
	return out
}

// Batch returns n conflicts sharing one snapshot. Conflict and train ids are
// made unique across the batch.
func (g *Generator) Batch(n int) ([]model.Conflict, model.NetworkSnapshot) {
	merged := model.NetworkSnapshot{
		Timestamp: g.start,
		Trains:    make(map[string]model.Train),
		Sections:  make(map[string]model.Section),
	}
	conflicts := make([]model.Conflict, 0, n)
	for i := 0; i < n; i++ {
		c, snap := g.Next()
		prefix := c.ID + "/"
		rename := func(ids []string) []string {
			out := make([]string, len(ids))
			for k, id := range ids {
				out[k] = prefix + id
			}
			return out
		}
		for _, s := range snap.Sections {
			s.ID = prefix + s.ID
			merged.Sections[s.ID] = s
		}
		for _, t := range snap.Trains {
			t.ID = prefix + t.ID
			t.Route = rename(t.Route)
			for k := range t.Alternatives {
				t.Alternatives[k].Sections = rename(t.Alternatives[k].Sections)
			}
			merged.Trains[t.ID] = t
		}
		c.Trains = rename(c.Trains)
		c.Sections = rename(c.Sections)
		conflicts = append(conflicts, c)
	}
	return conflicts, merged
}
