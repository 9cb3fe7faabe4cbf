package mqtt_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/infra/mqtt"
	"github.com/kilianp07/railopt/test/util"
)

func TestExecutor_MosquittoRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cfg, cleanup, err := util.StartBroker(ctx, mqtt.Config{ClientID: "railopt-it", AckTimeout: 5 * time.Second})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer cleanup()

	stop, err := util.StartAckResponder(cfg)
	require.NoError(t, err)
	defer stop()

	ex, err := mqtt.NewExecutor(cfg)
	require.NoError(t, err)
	defer ex.Disconnect()
	// give the ack subscription time to settle
	time.Sleep(200 * time.Millisecond)

	set := model.DomainActionSet{ConflictID: "c1", Actions: []model.Action{
		{Type: model.ActionDelay, TrainID: "ic101", DelayMinutes: 4},
		{Type: model.ActionReorder, SectionID: "s1", Order: []string{"ic101", "re202"}},
	}}
	require.NoError(t, ex.Apply(ctx, set))
}
