package action

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
	"github.com/Versifine/motor/internal/world"
)

const DefaultReleaseDelay = 500 * time.Millisecond

var (
	ErrBusy             = errors.New("action already in progress")
	ErrNoNodes          = errors.New("no nearby action nodes")
	ErrNodeNotFound     = errors.New("action node not found")
	ErrNoControls       = errors.New("controls are not available")
	ErrNothingToRelease = errors.New("nothing to release")
	ErrNotHolding       = errors.New("action has not triggered yet")
	ErrReleasing        = errors.New("action is already releasing")
	ErrCallback         = errors.New("action callback failed")
	ErrClosed           = errors.New("action registry closed")
)

type State int

const (
	StateIdle State = iota
	StateEngaged
	StateHolding
	StateReleasing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEngaged:
		return "engaged"
	case StateHolding:
		return "holding"
	case StateReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Controls is the key sink. When it also implements MarkPressed/MarkReleased
// the cancel key edges are mirrored explicitly.
type Controls interface {
	SetKey(name string, down bool)
}

type edgeMarker interface {
	MarkPressed(name string)
	MarkReleased(name string)
}

// Scene supplies the local player id and the rig position distances are
// measured from.
type Scene interface {
	PlayerID() (string, bool)
	RigTransform() (world.Transform, bool)
}

type Options struct {
	DefaultDuration time.Duration
	ReleaseDelay    time.Duration
	Logger          *slog.Logger
	Events          event.Publisher
}

// Snapshot describes the current action.
type Snapshot struct {
	RunID     string
	EntityID  string
	State     State
	StartedAt time.Time
}

type current struct {
	runID     string
	node      Node
	state     State
	timer     *time.Timer
	startedAt time.Time
}

// Registry tracks interactable nodes and runs at most one interaction at a
// time: Idle -> Engaged -> Holding -> Releasing -> Idle. Overlapping requests
// are rejected, never queued.
type Registry struct {
	scene        Scene
	controls     Controls
	duration     time.Duration
	releaseDelay time.Duration
	log          *slog.Logger
	events       event.Publisher

	mu      sync.Mutex
	nodes   []Node
	current *current
	closed  bool
	pending []pendingEvent
}

type pendingEvent struct {
	name string
	evt  event.ActionEvent
}

func NewRegistry(scene Scene, controls Controls, opts Options) *Registry {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDuration
	}
	if opts.ReleaseDelay <= 0 {
		opts.ReleaseDelay = DefaultReleaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		scene:        scene,
		controls:     controls,
		duration:     opts.DefaultDuration,
		releaseDelay: opts.ReleaseDelay,
		log:          opts.Logger,
		events:       opts.Events,
	}
}

// Register appends node. The same node may be registered more than once.
func (r *Registry) Register(node Node) {
	if r == nil || node == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, node)
}

// Unregister removes the first registration of node. Nodes of non-comparable
// types are matched by entity ID.
func (r *Registry) Unregister(node Node) {
	if r == nil || node == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.nodes {
		if sameNode(n, node) {
			r.nodes = append(r.nodes[:i], r.nodes[i+1:]...)
			return
		}
	}
}

// sameNode reports whether a and b are the same registration. Nodes of
// non-comparable types match on entity ID.
func sameNode(a, b Node) (same bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		return a.EntityID() == b.EntityID()
	}
	defer func() {
		// A comparable struct can still hold a non-comparable value in an
		// interface field.
		if recover() != nil {
			same = a.EntityID() == b.EntityID()
		}
	}()
	return a == b
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// Nearby returns every unfinished node in registration order.
func (r *Registry) Nearby() []Node {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	nodes := append([]Node(nil), r.nodes...)
	r.mu.Unlock()

	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if !n.Finished() {
			out = append(out, n)
		}
	}
	return out
}

// Within returns the unfinished nodes whose planar distance from the rig is at
// most radius. Nodes at non-finite positions never match.
func (r *Registry) Within(radius float64) []Node {
	if r == nil || r.scene == nil {
		return nil
	}
	rig, ok := r.scene.RigTransform()
	if !ok {
		return nil
	}
	var out []Node
	for _, n := range r.Nearby() {
		if geom.PlanarDistance(rig.Position, n.Position()) <= radius {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) Current() (Snapshot, bool) {
	if r == nil {
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Snapshot{State: StateIdle}, false
	}
	return Snapshot{
		RunID:     r.current.runID,
		EntityID:  r.current.node.EntityID(),
		State:     r.current.state,
		StartedAt: r.current.startedAt,
	}, true
}

// PerformAction engages the nearby node with entityID, or the first nearby
// node when entityID is empty. keyE is held until the node's duration
// elapses, then OnTrigger runs and the action is Holding.
func (r *Registry) PerformAction(entityID string) error {
	if r == nil {
		return ErrNoControls
	}
	r.mu.Lock()
	defer r.unlock()

	if r.closed {
		return ErrClosed
	}
	if c := r.current; c != nil {
		r.log.Warn("Action already in progress", "run", c.runID, "entity", c.node.EntityID(), "state", c.state.String(), "requested", entityID)
		return ErrBusy
	}
	if r.controls == nil {
		r.log.Error("Action requested without controls", "entity", entityID)
		return ErrNoControls
	}

	var node Node
	for _, n := range r.nodes {
		if n.Finished() {
			continue
		}
		if entityID == "" || n.EntityID() == entityID {
			node = n
			break
		}
	}
	if node == nil {
		if entityID != "" {
			r.log.Info("No nearby action node found with entity ID: " + entityID)
			return fmt.Errorf("%w: %s", ErrNodeNotFound, entityID)
		}
		r.log.Info("No nearby action nodes")
		return ErrNoNodes
	}

	c := &current{
		runID:     uuid.NewString(),
		node:      node,
		state:     StateEngaged,
		startedAt: time.Now(),
	}
	r.current = c
	r.controls.SetKey(input.KeyInteract, true)

	d := nodeDuration(node, r.duration)
	c.timer = time.AfterFunc(d, func() { r.trigger(c) })

	r.log.Info("Action engaged", "run", c.runID, "entity", node.EntityID(), "duration", d)
	r.emit(event.EventActionEngaged, c, "", "")
	return nil
}

func (r *Registry) trigger(c *current) {
	r.mu.Lock()
	if r.current != c || c.state != StateEngaged {
		r.unlock()
		return
	}
	var playerID string
	if r.scene != nil {
		playerID, _ = r.scene.PlayerID()
	}
	r.unlock()

	err := callTrigger(c.node, TriggerInfo{PlayerID: playerID})

	r.mu.Lock()
	defer r.unlock()
	if r.current != c {
		return
	}
	r.controls.SetKey(input.KeyInteract, false)
	if err != nil {
		r.log.Error("Action trigger failed, returning to idle", "run", c.runID, "entity", c.node.EntityID(), "error", err)
		r.current = nil
		r.emit(event.EventActionFailed, c, playerID, err.Error())
		return
	}
	c.state = StateHolding
	r.log.Info("Action triggered", "run", c.runID, "entity", c.node.EntityID(), "player", playerID)
	r.emit(event.EventActionTriggered, c, playerID, "")
}

// ReleaseAction cancels a Holding action: keyX is pressed, OnCancel runs
// immediately, and after the release delay keyX is released and the registry
// returns to Idle.
func (r *Registry) ReleaseAction() error {
	if r == nil {
		return ErrNothingToRelease
	}
	r.mu.Lock()
	c := r.current
	switch {
	case c == nil:
		r.unlock()
		r.log.Info("Nothing to release")
		return ErrNothingToRelease
	case c.state == StateEngaged:
		r.unlock()
		r.log.Warn("Action has not triggered yet", "run", c.runID, "entity", c.node.EntityID())
		return ErrNotHolding
	case c.state == StateReleasing:
		r.unlock()
		r.log.Info("Action already releasing", "run", c.runID)
		return ErrReleasing
	}

	c.state = StateReleasing
	r.controls.SetKey(input.KeyCancel, true)
	if m, ok := r.controls.(edgeMarker); ok {
		m.MarkPressed(input.KeyCancel)
	}
	r.unlock()

	err := callCancel(c.node)

	r.mu.Lock()
	defer r.unlock()
	if r.current != c {
		return err
	}
	if err != nil {
		r.log.Error("Action cancel failed, returning to idle", "run", c.runID, "entity", c.node.EntityID(), "error", err)
		r.releaseCancelKeyLocked()
		r.current = nil
		r.emit(event.EventActionFailed, c, "", err.Error())
		return err
	}

	r.log.Info("Action cancelled", "run", c.runID, "entity", c.node.EntityID())
	r.emit(event.EventActionCancelled, c, "", "")
	c.timer = time.AfterFunc(r.releaseDelay, func() { r.finishRelease(c) })
	return nil
}

func (r *Registry) finishRelease(c *current) {
	r.mu.Lock()
	defer r.unlock()
	if r.current != c || c.state != StateReleasing {
		return
	}
	r.releaseCancelKeyLocked()
	r.current = nil
	r.log.Info("Action released", "run", c.runID, "entity", c.node.EntityID())
	r.emit(event.EventActionReleased, c, "", "")
}

// Close stops pending timers, releases the interaction keys and forces Idle.
// Later PerformAction calls fail with ErrClosed.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.unlock()
	r.closed = true
	c := r.current
	if c == nil {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	r.current = nil
	if r.controls != nil {
		r.controls.SetKey(input.KeyInteract, false)
		if c.state == StateReleasing {
			r.releaseCancelKeyLocked()
		}
	}
	r.log.Info("Action aborted", "run", c.runID, "entity", c.node.EntityID(), "state", c.state.String())
	r.emit(event.EventActionFailed, c, "", ErrClosed.Error())
}

func (r *Registry) releaseCancelKeyLocked() {
	r.controls.SetKey(input.KeyCancel, false)
	if m, ok := r.controls.(edgeMarker); ok {
		m.MarkReleased(input.KeyCancel)
	}
}

func (r *Registry) emit(name string, c *current, playerID, errText string) {
	if r.events == nil {
		return
	}
	r.pending = append(r.pending, pendingEvent{name: name, evt: event.ActionEvent{
		RunID:    c.runID,
		EntityID: c.node.EntityID(),
		PlayerID: playerID,
		Error:    errText,
		At:       time.Now(),
	}})
}

// unlock releases mu and publishes events queued while it was held.
func (r *Registry) unlock() {
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, p := range pending {
		r.events.Publish(p.name, p.evt)
	}
}

func callTrigger(n Node, info TriggerInfo) (err error) {
	t, ok := n.(triggerer)
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCallback, rec)
		}
	}()
	if cbErr := t.OnTrigger(info); cbErr != nil {
		return fmt.Errorf("%w: %w", ErrCallback, cbErr)
	}
	return nil
}

func callCancel(n Node) (err error) {
	c, ok := n.(canceller)
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCallback, rec)
		}
	}()
	if cbErr := c.OnCancel(); cbErr != nil {
		return fmt.Errorf("%w: %w", ErrCallback, cbErr)
	}
	return nil
}
