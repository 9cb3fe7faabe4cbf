package audit

import (
	"context"
	"time"

	"github.com/kilianp07/railopt/core/model"
)

// Record is the persisted trace of one engine decision.
type Record struct {
	DecisionID     string         `json:"decision_id"`
	ConflictID     string         `json:"conflict_id"`
	Timestamp      time.Time      `json:"timestamp"`
	GeneratedByAI  bool           `json:"generated_by_ai"`
	Method         string         `json:"method"`
	Score          float64        `json:"score"`
	Confidence     float64        `json:"confidence"`
	RequiresReview bool           `json:"requires_review"`
	AutoApply      bool           `json:"auto_apply"`
	Trains         []string       `json:"trains"`
	Recommendation Recommendation `json:"recommendation"`
}

// Recommendation is the payload shown to operators.
type Recommendation struct {
	Summary  string          `json:"summary"`
	Actions  []model.Action  `json:"actions"`
	Attempts []model.Attempt `json:"attempts"`
}

// NewRecord builds the audit record of d for conflict c.
func NewRecord(d model.Decision, c model.Conflict) Record {
	ts := d.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Record{
		DecisionID:     d.ID,
		ConflictID:     d.ConflictID,
		Timestamp:      ts,
		GeneratedByAI:  true,
		Method:         d.Method(),
		Score:          d.Score,
		Confidence:     d.Confidence,
		RequiresReview: d.RequiresHumanReview,
		AutoApply:      d.AutoApply,
		Trains:         append([]string(nil), c.Trains...),
		Recommendation: Recommendation{
			Summary:  d.Summary(),
			Actions:  append([]model.Action(nil), d.Actions.Actions...),
			Attempts: append([]model.Attempt(nil), d.Attempts...),
		},
	}
}

// Query defines filters for retrieving records. Zero values match
// everything.
type Query struct {
	Start      time.Time
	End        time.Time
	ConflictID string
	TrainID    string
	ReviewOnly bool
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.ConflictID != "" && r.ConflictID != q.ConflictID {
		return false
	}
	if q.ReviewOnly && !r.RequiresReview {
		return false
	}
	if q.TrainID != "" {
		return r.references(q.TrainID)
	}
	return true
}

func (r Record) references(train string) bool {
	for _, id := range r.Trains {
		if id == train {
			return true
		}
	}
	for _, a := range r.Recommendation.Actions {
		for _, id := range a.Trains() {
			if id == train {
				return true
			}
		}
	}
	return false
}

// Store persists Records and supports querying. Append is idempotent on
// DecisionID: storing the same decision twice keeps a single record.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
