package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractmq "inboxtriage/contracts/mq"
	"inboxtriage/internal/control"
	"inboxtriage/internal/control/controltest"
	"inboxtriage/internal/model"
	"inboxtriage/pkg/mq"
)

func TestCoordinator_RunResetsStaleStatsOnStartup(t *testing.T) {
	env := controltest.New(t, control.Options{})
	ctx := context.Background()

	_, err := env.Plane.Init(ctx)
	require.NoError(t, err)
	_, err = env.Plane.IncrementStats(ctx, model.StatsDelta{Processed: 9, Categorized: 4})
	require.NoError(t, err)
	env.Clock.Advance(31 * 24 * time.Hour)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewCoordinator(env.Plane, nil).Run(runCtx) }()

	require.Eventually(t, func() bool {
		stats, err := env.Plane.GetStats(ctx)
		return err == nil && stats.Processed == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop")
	}
}

func TestCoordinator_RunChecksOnInterval(t *testing.T) {
	env := controltest.New(t, control.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCoordinator(env.Plane, nil).WithInterval(10 * time.Millisecond)
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, func() bool {
		stats, err := env.Plane.GetStats(context.Background())
		return err == nil && !stats.LastReset.IsZero()
	}, time.Second, 5*time.Millisecond)

	_, err := env.Plane.IncrementStats(context.Background(), model.StatsDelta{Processed: 2})
	require.NoError(t, err)
	env.Clock.Advance(30*24*time.Hour + time.Minute)

	require.Eventually(t, func() bool {
		stats, err := env.Plane.GetStats(context.Background())
		return err == nil && stats.Processed == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinator_CheckStatsLeavesFreshStats(t *testing.T) {
	env := controltest.New(t, control.Options{})
	ctx := context.Background()
	_, err := env.Plane.IncrementStats(ctx, model.StatsDelta{Processed: 3, Categorized: 1})
	require.NoError(t, err)

	env.Clock.Advance(29 * 24 * time.Hour)
	NewCoordinator(env.Plane, nil).CheckStats(ctx)

	stats, err := env.Plane.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(1), stats.Categorized)
}

func TestCoordinator_HandleMessageAppliesCommands(t *testing.T) {
	env := controltest.New(t, control.Options{})
	c := NewCoordinator(env.Plane, nil)
	env.Bus.Subscribe(mq.BroadcastBinding, c.HandleMessage)

	var mu sync.Mutex
	var changes []bool
	env.Bus.Subscribe(contractmq.RoutingEnabledChanged, func(_ context.Context, raw json.RawMessage) error {
		var msg contractmq.ControlMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		mu.Lock()
		changes = append(changes, *msg.Enabled)
		mu.Unlock()
		return nil
	})

	require.NoError(t, env.Bus.Publish(contractmq.RoutingDisable, contractmq.DisableCommand()))
	enabled, err := env.Plane.GetEnabled(context.Background())
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, env.Bus.Publish(contractmq.RoutingEnable, contractmq.EnableCommand()))
	enabled, err = env.Plane.GetEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, changes)
}
