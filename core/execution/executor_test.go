package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/model"
)

func TestRecordingExecutor(t *testing.T) {
	r := &RecordingExecutor{}
	set := model.DomainActionSet{ConflictID: "c1", Actions: []model.Action{{Type: model.ActionDelay, TrainID: "t1", DelayMinutes: 2}}}
	require.NoError(t, r.Apply(context.Background(), set))
	assert.Equal(t, []model.DomainActionSet{set}, r.Applied())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Apply(ctx, set), context.Canceled)

	r.Fail = ErrRejected
	assert.ErrorIs(t, r.Apply(context.Background(), set), ErrRejected)
	assert.Len(t, r.Applied(), 1)
}

func TestActionError(t *testing.T) {
	err := &ActionError{Index: 1, Action: model.Action{Type: model.ActionReorder, SectionID: "s1"}, Err: ErrAckTimeout}
	assert.True(t, errors.Is(err, ErrAckTimeout))
	assert.Contains(t, err.Error(), "reorder s1")
	assert.NoError(t, NopExecutor{}.Apply(context.Background(), model.DomainActionSet{}))
}
