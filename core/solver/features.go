package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// FeatureNames lists the policy input columns in order.
var FeatureNames = []string{
	"priority",
	"lead_time",
	"occupation",
	"speed_ratio",
	"has_alternative",
	"overlap",
}

// Features builds the policy input matrix, one row per train. Every column
// is scaled to roughly [0,1] using the conflict horizon.
func Features(p *Problem) *mat.Dense {
	n := len(p.Trains)
	if n == 0 {
		return nil
	}
	x := mat.NewDense(n, len(FeatureNames), nil)
	h := p.horizonMinutes()
	maxPrio := p.maxPriority()
	for i, t := range p.Trains {
		start, end := p.window(i)
		prio := 0.0
		if maxPrio > 0 {
			prio = t.Priority / maxPrio
		}
		speed := 0.0
		if t.MaxSpeedKmh > 0 {
			speed = clamp01(t.SpeedKmh / t.MaxSpeedKmh)
		}
		alt := 0.0
		if len(t.Alternatives) > 0 {
			alt = 1
		}
		x.Set(i, 0, prio)
		x.Set(i, 1, clamp01(start/h))
		x.Set(i, 2, clamp01((end-start)/h))
		x.Set(i, 3, speed)
		x.Set(i, 4, alt)
		x.Set(i, 5, clamp01(overlapMinutes(p, i)/h))
	}
	return x
}

// overlapMinutes sums how long train i shares a contested section with any
// other train under the original schedule.
func overlapMinutes(p *Problem, i int) float64 {
	si, ei := p.window(i)
	var total float64
	for j := range p.Trains {
		if j == i || !shareSection(p.Trains[i].Sections, p.Trains[j].Sections) {
			continue
		}
		sj, ej := p.window(j)
		if o := math.Min(ei, ej) - math.Max(si, sj); o > 0 {
			total += o
		}
	}
	return total
}

func shareSection(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
