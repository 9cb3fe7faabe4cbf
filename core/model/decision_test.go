package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solved() Decision {
	sol := &CandidateSolution{
		Strategy:   StrategyRuleBased,
		Actions:    []Action{{Type: ActionDelay, TrainID: "t1", DelayMinutes: 3}},
		RawScore:   3,
		Confidence: 0.8,
	}
	return Decision{
		ConflictID: "c1",
		Solution:   sol,
		Actions:    DomainActionSet{ConflictID: "c1", Actions: sol.Actions},
		Attempts:   []Attempt{{Strategy: StrategyRuleBased, Status: AttemptSucceeded, Candidates: 1}},
		Score:      70,
		Confidence: 0.8,
	}
}

func TestDecision_Validate(t *testing.T) {
	require.NoError(t, solved().Validate())

	none := Decision{
		ConflictID:          "c1",
		Attempts:            []Attempt{{Strategy: StrategyConstraint, Status: AttemptTimeout}},
		RequiresHumanReview: true,
	}
	require.NoError(t, none.Validate())
	assert.True(t, none.NoSolution())
	assert.Equal(t, "none", none.Method())
	assert.Equal(t, NoSolutionMessage, none.Summary())

	cases := map[string]func(d *Decision){
		"no attempts":        func(d *Decision) { d.Attempts = nil },
		"confidence above 1": func(d *Decision) { d.Confidence = 1.01 },
		"confidence nan":     func(d *Decision) { d.Confidence = math.NaN() },
		"negative score":     func(d *Decision) { d.Score = -1 },
		"score above 100":    func(d *Decision) { d.Score = 100.5 },
		"sentinel with actions": func(d *Decision) {
			d.Solution = nil
			d.RequiresHumanReview = true
		},
		"sentinel without review": func(d *Decision) {
			d.Solution = nil
			d.Actions.Actions = nil
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := solved()
			mutate(&d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDecision))
		})
	}
}

func TestDecisionID(t *testing.T) {
	d := solved()
	id := DecisionID("c1", d.Solution)
	assert.Equal(t, id, DecisionID("c1", d.Solution))
	assert.NotEqual(t, id, DecisionID("c2", d.Solution))
	assert.NotEqual(t, id, DecisionID("c1", nil))

	other := *d.Solution
	other.Actions = []Action{{Type: ActionDelay, TrainID: "t1", DelayMinutes: 4}}
	assert.NotEqual(t, id, DecisionID("c1", &other))

	// timing and confidence do not change the identity of an answer
	same := *d.Solution
	same.Elapsed = 42
	same.Confidence = 0.1
	assert.Equal(t, id, DecisionID("c1", &same))
}

func TestSeverity(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		got, err := ParseSeverity(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseSeverity(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, got)

	_, err = ParseSeverity("extreme")
	assert.Error(t, err)
	assert.Equal(t, "severity(9)", Severity(9).String())

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("critical")))
	assert.Equal(t, SeverityCritical, s)
	assert.Error(t, s.UnmarshalText([]byte("?")))
}

func TestAction_References(t *testing.T) {
	a := Action{Type: ActionReorder, SectionID: "s1", Order: []string{"t2", "t1"}}
	assert.Equal(t, []string{"t2", "t1"}, a.Trains())
	assert.Equal(t, []string{"s1"}, a.Sections())
	assert.Nil(t, Action{Type: ActionDelay, TrainID: "t1"}.Sections())

	c := Conflict{ID: "c", Trains: []string{"t1"}, Sections: []string{"s1"}}
	assert.True(t, c.HasTrain("t1"))
	assert.False(t, c.HasTrain("t2"))
	assert.True(t, c.HasSection("s1"))
	assert.True(t, DomainActionSet{}.Empty())
}
