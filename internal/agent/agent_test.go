package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/motor/internal/action"
	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
	"github.com/Versifine/motor/internal/nav"
	"github.com/Versifine/motor/internal/world"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Navigation.TickInterval = 5 * time.Millisecond
	cfg.Action.DefaultDuration = 20 * time.Millisecond
	cfg.Action.ReleaseDelay = 20 * time.Millisecond
	return cfg
}

func newTestAgent(t *testing.T) (*Agent, *world.WorldState) {
	t.Helper()
	ws := world.NewWorldState()
	ws.SpawnPlayer("player-1", world.Transform{})
	bus, err := event.NewBus(4)
	require.NoError(t, err)
	a := New(context.Background(), ws, bus, testConfig())
	t.Cleanup(func() {
		a.Close()
		bus.Close()
	})
	return a, ws
}

func mustParse(t *testing.T, in map[string]any) Intent {
	t.Helper()
	intent, err := ParseIntent(in)
	require.NoError(t, err)
	return intent
}

func TestAgentGotoAndStop(t *testing.T) {
	a, _ := newTestAgent(t)

	out, err := a.Do(mustParse(t, map[string]any{"action": "goto", "x": 20, "z": 0}))
	require.NoError(t, err)
	var ack map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &ack))
	assert.Equal(t, "ok", ack["status"])

	require.Eventually(t, func() bool { return a.Device().IsDown(input.KeyForward) }, time.Second, time.Millisecond)
	st := a.Status()
	assert.True(t, st.Navigating)
	require.NotNil(t, st.TargetX)
	assert.Equal(t, 20.0, *st.TargetX)
	assert.Contains(t, st.DownKeys, input.KeyForward)

	_, err = a.Do(Intent{Action: IntentStop})
	require.NoError(t, err)
	assert.False(t, a.Nav().IsNavigating())
	assert.False(t, a.Device().IsDown(input.KeyForward))
}

func TestAgentWanderAndClose(t *testing.T) {
	a, _ := newTestAgent(t)

	_, err := a.Do(mustParse(t, map[string]any{"action": "wander", "duration_ms": -1, "interval_ms": 1}))
	require.NoError(t, err)
	require.Eventually(t, a.Nav().IsWalkingRandomly, time.Second, time.Millisecond)

	a.Close()
	assert.False(t, a.Nav().IsWalkingRandomly())
	for _, k := range input.MovementKeys {
		assert.False(t, a.Device().IsDown(k))
	}

	_, err = a.Do(Intent{Action: IntentGoto})
	assert.Error(t, err)
}

func TestAgentGotoWithoutPlayer(t *testing.T) {
	a, ws := newTestAgent(t)
	ws.DespawnPlayer()
	_, err := a.Do(mustParse(t, map[string]any{"action": "goto", "x": 1, "z": 1}))
	assert.ErrorIs(t, err, nav.ErrNoPlayer)
}

func TestAgentPerformAndRelease(t *testing.T) {
	a, ws := newTestAgent(t)
	ws.AddEntity(world.Entity{ID: "door", Position: geom.V3(1, 0, 1)})
	a.Actions().Register(action.NewEntityNode(ws, "door", 0))

	assert.Len(t, a.NearbyNodes(0), 1)
	assert.Empty(t, a.NearbyNodes(0.5))

	out, err := a.Do(mustParse(t, map[string]any{"action": "perform", "entity_id": "door"}))
	require.NoError(t, err)
	assert.Contains(t, out, `"entity_id":"door"`)
	assert.True(t, a.Device().IsDown(input.KeyInteract))

	_, err = a.Do(Intent{Action: IntentPerform})
	assert.ErrorIs(t, err, action.ErrBusy)

	require.Eventually(t, func() bool { return a.Status().Action == "holding" }, time.Second, time.Millisecond)
	assert.False(t, a.Device().IsDown(input.KeyInteract))

	_, err = a.Do(Intent{Action: IntentRelease})
	require.NoError(t, err)
	assert.True(t, a.Device().IsDown(input.KeyCancel))

	require.Eventually(t, func() bool { return a.Status().Action == "idle" }, time.Second, time.Millisecond)
	assert.False(t, a.Device().IsDown(input.KeyCancel))

	_, err = a.Do(Intent{Action: IntentRelease})
	assert.ErrorIs(t, err, action.ErrNothingToRelease)
}

func TestAgentUnknownIntent(t *testing.T) {
	a, _ := newTestAgent(t)
	_, err := a.Do(Intent{Action: "dance"})
	assert.Error(t, err)

	var nilAgent *Agent
	_, err = nilAgent.Do(Intent{Action: IntentStop})
	assert.Error(t, err)
	nilAgent.Close()
}

func TestAgentsAreIndependent(t *testing.T) {
	a, _ := newTestAgent(t)
	b, _ := newTestAgent(t)
	assert.NotEqual(t, a.ID(), b.ID())

	a.Device().SetKey(input.KeyJump, true)
	assert.False(t, b.Device().IsDown(input.KeyJump))
}
