package audit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/model"
)

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleRecords() []Record {
	c1 := model.Conflict{ID: "c1", Trains: []string{"t1", "t2"}, Sections: []string{"s1"}}
	c2 := model.Conflict{ID: "c2", Trains: []string{"t3", "t4"}, Sections: []string{"s2"}}
	sol := &model.CandidateSolution{Strategy: model.StrategyRuleBased, Confidence: 0.7,
		Actions: []model.Action{{Type: model.ActionDelay, TrainID: "t1", DelayMinutes: 4}}}
	d1 := model.Decision{
		ID: model.DecisionID("c1", sol), ConflictID: "c1", Solution: sol, Score: 60, Confidence: 0.7,
		Actions:   model.DomainActionSet{ConflictID: "c1", Actions: sol.Actions},
		Attempts:  []model.Attempt{{Strategy: model.StrategyRuleBased, Status: model.AttemptSucceeded, Candidates: 1}},
		CreatedAt: base,
	}
	d2 := model.Decision{
		ID: model.DecisionID("c2", nil), ConflictID: "c2", RequiresHumanReview: true,
		Actions:   model.DomainActionSet{ConflictID: "c2"},
		Attempts:  []model.Attempt{{Strategy: model.StrategyConstraint, Status: model.AttemptTimeout}},
		CreatedAt: base.Add(time.Hour),
	}
	return []Record{NewRecord(d1, c1), NewRecord(d2, c2)}
}

func stores(t *testing.T) map[string]Store {
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	rot, err := NewRotatingJSONLStore(filepath.Join(dir, "rot", "audit.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	sq, err := NewSQLiteStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	all := map[string]Store{"memory": NewMemoryStore(), "jsonl": jsonl, "rotating": rot, "sqlite": sq}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStores_AppendIsIdempotentAndQueryFilters(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			recs := sampleRecords()
			for _, r := range recs {
				require.NoError(t, s.Append(ctx, r))
				require.NoError(t, s.Append(ctx, r))
			}

			all, err := s.Query(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "c1", all[0].ConflictID)
			assert.True(t, all[0].GeneratedByAI)
			assert.Equal(t, "rule_based", all[0].Method)

			byTrain, err := s.Query(ctx, Query{TrainID: "t2"})
			require.NoError(t, err)
			require.Len(t, byTrain, 1)
			assert.Equal(t, "c1", byTrain[0].ConflictID)

			review, err := s.Query(ctx, Query{ReviewOnly: true})
			require.NoError(t, err)
			require.Len(t, review, 1)
			assert.Equal(t, model.NoSolutionMessage, review[0].Recommendation.Summary)
			assert.Empty(t, review[0].Recommendation.Actions)

			window, err := s.Query(ctx, Query{Start: base.Add(30 * time.Minute)})
			require.NoError(t, err)
			require.Len(t, window, 1)
			assert.Equal(t, "c2", window[0].ConflictID)

			none, err := s.Query(ctx, Query{ConflictID: "c1", End: base.Add(-time.Minute)})
			require.NoError(t, err)
			assert.Empty(t, none)

			assert.ErrorIs(t, s.Append(ctx, Record{}), ErrMissingID)
		})
	}
}

func TestJSONLStore_IdempotentAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	rec := sampleRecords()[0]
	require.NoError(t, s.Append(ctx, rec))
	require.NoError(t, s.Close())

	s, err = NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, rec))
	out, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRecord_JSON(t *testing.T) {
	data, err := json.Marshal(sampleRecords()[0])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"decision_id", "conflict_id", "timestamp", "generated_by_ai", "method", "score", "confidence", "requires_review", "auto_apply", "recommendation"} {
		assert.Contains(t, m, k)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)

	s, err = Open(Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "x", "a.jsonl")})
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = Open(Config{Backend: "bogus"})
	assert.Error(t, err)
}
