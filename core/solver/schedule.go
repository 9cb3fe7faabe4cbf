package solver

import (
	"math"
	"sort"
)

// blocked is the start used for intervals of trains already inside a section.
const blocked = -1e9

type interval struct {
	start float64
	end   float64 // includes the section headway
	train int     // -1 for current occupants
}

// placement is the position of one train in a plan.
type placement struct {
	train int
	route int // -1 for the planned route
	delay float64
}

// placer inserts trains one at a time at their earliest feasible start and
// keeps the per-section occupation timeline. Each resolution owns its placer.
type placer struct {
	p        *Problem
	occ      [][]interval
	minCap   int
	placed   []placement
	sections [][]int
}

func newPlacer(p *Problem, minCap int) *placer {
	pl := &placer{p: p, occ: make([][]interval, len(p.Sections)), minCap: minCap}
	for i, s := range p.Sections {
		if s.Occupancy <= 0 || !s.OccupiedUntil.After(p.Now) {
			continue
		}
		end := p.minutes(s.OccupiedUntil) + s.Headway.Minutes()
		for k := 0; k < s.Occupancy; k++ {
			pl.occ[i] = append(pl.occ[i], interval{start: blocked, end: end, train: -1})
		}
	}
	return pl
}

func (pl *placer) capacity(sec int) int {
	c := pl.p.Sections[sec].Capacity
	if c < pl.minCap {
		c = pl.minCap
	}
	return c
}

// routeSections returns the contested sections used by train i on route r.
func (pl *placer) routeSections(i, r int) []int {
	if r < 0 {
		return pl.p.Trains[i].Sections
	}
	return pl.p.Trains[i].Alternatives[r].Sections
}

// routeExtra returns the running time penalty of route r for train i.
func (pl *placer) routeExtra(i, r int) float64 {
	if r < 0 {
		return 0
	}
	return pl.p.Trains[i].Alternatives[r].ExtraMinutes
}

// earliestDelay returns the smallest delay allowing train i to use route r
// without exceeding any section capacity. It returns +Inf when a section can
// never admit the train.
func (pl *placer) earliestDelay(i, r int) float64 {
	secs := pl.routeSections(i, r)
	if len(secs) == 0 {
		return 0
	}
	for _, s := range secs {
		if pl.capacity(s) < 1 {
			return math.Inf(1)
		}
	}
	start, end := pl.p.window(i)
	cands := []float64{0}
	for _, s := range secs {
		for _, iv := range pl.occ[s] {
			if d := iv.end - start; d > 0 {
				cands = append(cands, d)
			}
		}
	}
	sort.Float64s(cands)
	for _, d := range cands {
		if pl.fits(secs, start+d, end+d) {
			return d
		}
	}
	return math.Inf(1)
}

func (pl *placer) fits(secs []int, start, end float64) bool {
	for _, s := range secs {
		hi := end + pl.p.Sections[s].Headway.Minutes()
		if hi <= start {
			hi = start + 1e-6
		}
		if maxDepth(pl.occ[s], start, hi) >= pl.capacity(s) {
			return false
		}
	}
	return true
}

// maxDepth returns the largest number of intervals overlapping any instant
// of [lo, hi).
func maxDepth(ivs []interval, lo, hi float64) int {
	type event struct {
		at    float64
		delta int
	}
	var evs []event
	for _, iv := range ivs {
		if iv.start >= hi || iv.end <= lo {
			continue
		}
		evs = append(evs, event{math.Max(iv.start, lo), 1}, event{math.Min(iv.end, hi), -1})
	}
	sort.Slice(evs, func(a, b int) bool {
		if evs[a].at == evs[b].at {
			return evs[a].delta < evs[b].delta
		}
		return evs[a].at < evs[b].at
	})
	depth, best := 0, 0
	for _, e := range evs {
		depth += e.delta
		if depth > best {
			best = depth
		}
	}
	return best
}

// push records train i on route r with the given delay.
func (pl *placer) push(i, r int, delay float64) {
	start, end := pl.p.window(i)
	secs := pl.routeSections(i, r)
	for _, s := range secs {
		pl.occ[s] = append(pl.occ[s], interval{
			start: start + delay,
			end:   end + delay + pl.p.Sections[s].Headway.Minutes(),
			train: i,
		})
	}
	pl.placed = append(pl.placed, placement{train: i, route: r, delay: delay})
	pl.sections = append(pl.sections, secs)
}

// pop removes the last pushed train.
func (pl *placer) pop() {
	n := len(pl.placed) - 1
	for _, s := range pl.sections[n] {
		pl.occ[s] = pl.occ[s][:len(pl.occ[s])-1]
	}
	pl.placed = pl.placed[:n]
	pl.sections = pl.sections[:n]
}

// snapshot returns a copy of the current placements.
func (pl *placer) snapshot() []placement {
	return append([]placement(nil), pl.placed...)
}

// bestRoute evaluates the planned route and every alternative of train i and
// returns the one with the lowest delay plus penalty. The planned route wins
// ties.
func (pl *placer) bestRoute(i int) (int, float64) {
	route, delay := -1, pl.earliestDelay(i, -1)
	cost := delay
	for r := range pl.p.Trains[i].Alternatives {
		d := pl.earliestDelay(i, r)
		if c := d + pl.routeExtra(i, r); c < cost {
			route, delay, cost = r, d, c
		}
	}
	return route, delay
}

// planCost is the weighted delay of a plan: priority times the delay plus
// any reroute penalty.
func planCost(p *Problem, plan []placement) float64 {
	var total float64
	for _, pl := range plan {
		extra := 0.0
		if pl.route >= 0 {
			extra = p.Trains[pl.train].Alternatives[pl.route].ExtraMinutes
		}
		total += weight(p.Trains[pl.train]) * (pl.delay + extra)
	}
	return total
}

func weight(t TrainState) float64 {
	if t.Priority <= 0 {
		return 1
	}
	return t.Priority
}

// priorityOrder sorts trains by priority desc, then scheduled start, then id.
func priorityOrder(p *Problem) []int {
	idx := make([]int, len(p.Trains))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := p.Trains[idx[a]], p.Trains[idx[b]]
		if ta.Priority != tb.Priority {
			return ta.Priority > tb.Priority
		}
		if !ta.Start.Equal(tb.Start) {
			return ta.Start.Before(tb.Start)
		}
		return ta.ID < tb.ID
	})
	return idx
}
