package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/solver"
)

func TestBuiltinsRegistered(t *testing.T) {
	for _, n := range model.AllStrategies {
		assert.Contains(t, Solvers, n)
	}
	assert.Len(t, Names(), len(Solvers))
}

func TestBuildSolvers(t *testing.T) {
	ss, err := BuildSolvers(model.AllStrategies, solver.DefaultCalibration(), nil)
	require.NoError(t, err)
	require.Len(t, ss, 3)
	for i, s := range ss {
		assert.Equal(t, model.AllStrategies[i], s.Name())
	}

	// learned without backend is unavailable, not a construction error
	_, err = solver.Run(context.Background(), ss[1], &solver.Problem{Trains: []solver.TrainState{{ID: "a"}}}, 0)
	assert.ErrorIs(t, err, solver.ErrUnavailable)

	_, err = BuildSolvers([]model.StrategyName{"annealing"}, solver.DefaultCalibration(), nil)
	assert.Error(t, err)
}
