package solver

import (
	"math"
	"sort"

	"github.com/kilianp07/railopt/core/model"
)

// minDelay is the smallest delay worth an action, in minutes.
const minDelay = 1e-6

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// planActions converts placements into reroute and delay actions.
func planActions(p *Problem, plan []placement) []model.Action {
	var acts []model.Action
	for _, pl := range plan {
		t := p.Trains[pl.train]
		if pl.route >= 0 {
			acts = append(acts, model.Action{Type: model.ActionReroute, TrainID: t.ID, RouteID: t.Alternatives[pl.route].ID})
		}
		if pl.delay > minDelay {
			acts = append(acts, model.Action{Type: model.ActionDelay, TrainID: t.ID, DelayMinutes: math.Max(round2(pl.delay), 0.01)})
		}
	}
	return acts
}

// reorderActions returns one reorder action per section whose occupation
// order in the plan differs from the scheduled order.
func reorderActions(p *Problem, plan []placement) []model.Action {
	uses := make(map[int][]placement)
	for _, pl := range plan {
		secs := p.Trains[pl.train].Sections
		if pl.route >= 0 {
			secs = p.Trains[pl.train].Alternatives[pl.route].Sections
		}
		for _, s := range secs {
			uses[s] = append(uses[s], pl)
		}
	}
	var acts []model.Action
	for s := range p.Sections {
		list := uses[s]
		if len(list) < 2 {
			continue
		}
		scheduled := append([]placement(nil), list...)
		sort.SliceStable(scheduled, func(a, b int) bool {
			ta, tb := p.Trains[scheduled[a].train], p.Trains[scheduled[b].train]
			if !ta.Start.Equal(tb.Start) {
				return ta.Start.Before(tb.Start)
			}
			return ta.ID < tb.ID
		})
		planned := append([]placement(nil), scheduled...)
		sort.SliceStable(planned, func(a, b int) bool {
			sa, _ := p.window(planned[a].train)
			sb, _ := p.window(planned[b].train)
			return sa+planned[a].delay < sb+planned[b].delay
		})
		changed := false
		order := make([]string, len(planned))
		for k := range planned {
			order[k] = p.Trains[planned[k].train].ID
			if planned[k].train != scheduled[k].train {
				changed = true
			}
		}
		if changed {
			acts = append(acts, model.Action{Type: model.ActionReorder, SectionID: p.Sections[s].ID, Order: order})
		}
	}
	return acts
}
