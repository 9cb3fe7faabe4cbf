package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureException_UsesCurrentMonitor(t *testing.T) {
	rec := &Recorder{}
	Init(rec)
	t.Cleanup(func() { Init(NopMonitor{}) })

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"conflict_id": "c1"})

	errs := rec.Errors()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0].Err, "boom")
	assert.Equal(t, "c1", errs[0].Tags["conflict_id"])
	assert.True(t, Flush(0))
}

func TestInit_IgnoresNil(t *testing.T) {
	rec := &Recorder{}
	Init(rec)
	t.Cleanup(func() { Init(NopMonitor{}) })
	Init(nil)
	CaptureException(errors.New("x"), nil)
	assert.Len(t, rec.Errors(), 1)
}

func TestRecover_ReportsAndRepanics(t *testing.T) {
	rec := &Recorder{}
	Init(rec)
	t.Cleanup(func() { Init(NopMonitor{}) })

	assert.PanicsWithValue(t, "kaboom", func() {
		defer Recover()
		panic("kaboom")
	})
	assert.Equal(t, []any{"kaboom"}, rec.Panics())
}
