package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Versifine/motor/internal/action"
	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/input"
	"github.com/Versifine/motor/internal/nav"
	"github.com/Versifine/motor/internal/world"
)

// Agent is one embodied session: a fresh input device, navigation controller
// and action registry bound to one host world.
type Agent struct {
	id      string
	world   *world.WorldState
	device  *input.Device
	nav     *nav.Controller
	actions *action.Registry
	log     *slog.Logger

	wander       nav.WanderOptions
	nearbyRadius float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

var errClosed = errors.New("agent session closed")

// Status is a point-in-time view of the agent's control state.
type Status struct {
	SessionID  string   `json:"session_id"`
	Navigating bool     `json:"navigating"`
	Wandering  bool     `json:"wandering"`
	TargetX    *float64 `json:"target_x,omitempty"`
	TargetZ    *float64 `json:"target_z,omitempty"`
	Action     string   `json:"action"`
	ActionNode string   `json:"action_node,omitempty"`
	DownKeys   []string `json:"down_keys"`
}

func New(ctx context.Context, ws *world.WorldState, events event.Publisher, cfg *config.Config) *Agent {
	if cfg == nil {
		cfg = config.Default()
	}
	if ws == nil {
		ws = world.NewWorldState()
	}
	id := uuid.NewString()
	log := slog.Default().With("agent", id)
	device := input.NewDevice(input.DefaultKeys...)

	a := &Agent{
		id:     id,
		world:  ws,
		device: device,
		log:    log,
		wander: nav.WanderOptions{
			Interval:    cfg.Wander.Interval,
			MaxDistance: cfg.Wander.MaxDistance,
			Duration:    cfg.Wander.Duration,
		},
		nearbyRadius: cfg.Action.NearbyRadius,
	}
	a.nav = nav.New(ws, device, nav.Options{
		TickInterval: cfg.Navigation.TickInterval,
		StopDistance: cfg.Navigation.StopDistance,
		Logger:       log.With("component", "nav"),
		Events:       events,
	})
	a.actions = action.NewRegistry(ws, device, action.Options{
		DefaultDuration: cfg.Action.DefaultDuration,
		ReleaseDelay:    cfg.Action.ReleaseDelay,
		Logger:          log.With("component", "action"),
		Events:          events,
	})
	a.ctx, a.cancel = context.WithCancel(ctx)

	log.Info("Agent session started")
	return a
}

func (a *Agent) ID() string                { return a.id }
func (a *Agent) World() *world.WorldState  { return a.world }
func (a *Agent) Device() *input.Device     { return a.device }
func (a *Agent) Nav() *nav.Controller      { return a.nav }
func (a *Agent) Actions() *action.Registry { return a.actions }

// Do executes intent. Navigation intents run in the background and return as
// soon as they started; their outcome is logged and published on the bus.
func (a *Agent) Do(intent Intent) (string, error) {
	if a == nil {
		return "", fmt.Errorf("agent is nil")
	}
	if a.ctx.Err() != nil {
		return "", errClosed
	}

	switch intent.Action {
	case IntentGoto:
		if _, ok := a.world.PlayerTransform(); !ok {
			return "", nav.ErrNoPlayer
		}
		x, z := intent.Float("x"), intent.Float("z")
		err := a.spawn(func(ctx context.Context) {
			err := a.nav.Goto(ctx, x, z)
			switch {
			case err == nil:
				a.log.Info("Goto finished", "x", x, "z", z)
			case errors.Is(err, nav.ErrInterrupted), errors.Is(err, context.Canceled):
				a.log.Info("Goto ended early", "x", x, "z", z, "reason", err)
			default:
				a.log.Warn("Goto failed", "x", x, "z", z, "error", err)
			}
		})
		if err != nil {
			return "", err
		}
		return toJSONString(map[string]any{"status": "ok", "action": intent.Action, "x": x, "z": z}), nil

	case IntentWander:
		if _, ok := a.world.PlayerTransform(); !ok {
			return "", nav.ErrNoPlayer
		}
		opts := a.wander
		if d := intent.Duration("interval_ms"); d > 0 {
			opts.Interval = d
		}
		if d := intent.Duration("duration_ms"); d != 0 {
			opts.Duration = d
		}
		if f := intent.Float("max_distance"); f > 0 {
			opts.MaxDistance = f
		}
		err := a.spawn(func(ctx context.Context) {
			if err := a.nav.StartRandomWalk(ctx, opts); err != nil {
				a.log.Warn("Wander failed", "error", err)
			}
		})
		if err != nil {
			return "", err
		}
		return toJSONString(map[string]any{"status": "ok", "action": intent.Action}), nil

	case IntentStop:
		a.nav.StopRandomWalk()
		a.nav.StopNavigation("stop intent")
		return toJSONString(map[string]any{"status": "ok", "action": intent.Action}), nil

	case IntentPerform:
		if err := a.actions.PerformAction(intent.String("entity_id")); err != nil {
			return "", err
		}
		snap, _ := a.actions.Current()
		return toJSONString(map[string]any{"status": "ok", "action": intent.Action, "entity_id": snap.EntityID, "run_id": snap.RunID}), nil

	case IntentRelease:
		if err := a.actions.ReleaseAction(); err != nil {
			return "", err
		}
		return toJSONString(map[string]any{"status": "ok", "action": intent.Action}), nil
	}
	return "", fmt.Errorf("unknown intent action: %s", intent.Action)
}

// NearbyNodes lists the action nodes within radius of the rig; radius <= 0
// uses the configured nearby radius.
func (a *Agent) NearbyNodes(radius float64) []action.Node {
	if radius <= 0 {
		radius = a.nearbyRadius
	}
	return a.actions.Within(radius)
}

func (a *Agent) Status() Status {
	st := Status{
		SessionID:  a.id,
		Navigating: a.nav.IsNavigating(),
		Wandering:  a.nav.IsWalkingRandomly(),
		Action:     action.StateIdle.String(),
		DownKeys:   a.device.DownKeys(),
	}
	if target, ok := a.nav.Target(); ok {
		x, z := target.X, target.Z
		st.TargetX, st.TargetZ = &x, &z
	}
	if snap, ok := a.actions.Current(); ok {
		st.Action = snap.State.String()
		st.ActionNode = snap.EntityID
	}
	return st
}

// Close stops every loop, releases held keys and waits for background
// intents to return.
func (a *Agent) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.nav.StopRandomWalk()
	a.nav.StopNavigation("session closed")
	a.actions.Close()
	a.wg.Wait()
	a.log.Info("Agent session closed")
}

func (a *Agent) spawn(fn func(ctx context.Context)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
	return nil
}

func toJSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
