package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
	"github.com/Versifine/motor/internal/validate"
	"github.com/Versifine/motor/internal/world"
)

const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultStopDistance = 1.0
)

const (
	ReasonArrived           = "arrived"
	ReasonSuperseded        = "superseded"
	ReasonCancelled         = "cancelled"
	ReasonPlayerUnavailable = "player unavailable"
	ReasonWanderStopped     = "wander stopped"
)

var (
	ErrNoPlayer    = errors.New("player is not available")
	ErrNoControls  = errors.New("controls are not available")
	ErrInterrupted = errors.New("navigation interrupted")

	errWanderEnded = errors.New("wander ended")
)

// Keys is the input sink navigation holds movement keys on.
type Keys interface {
	SetKey(name string, down bool)
}

type Options struct {
	TickInterval time.Duration
	StopDistance float64
	Logger       *slog.Logger
	Events       event.Publisher
	Rand         *rand.Rand
}

// Controller steers the local player toward ground-plane targets by holding
// virtual keys. At most one navigation session and one wander session exist
// at a time; starting either first tears down its predecessor.
type Controller struct {
	host         world.Host
	keys         Keys
	tickInterval time.Duration
	stopDistance float64
	log          *slog.Logger
	events       event.Publisher

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	nav     *session
	wander  *session
	pending []pendingEvent
}

// session is the cancellation token of one navigation or wander run.
type session struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	target   geom.Vec3
	wanderID string
	done     chan struct{}
	reason   string
}

type pendingEvent struct {
	name string
	evt  any
}

func New(host world.Host, keys Keys, opts Options) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.StopDistance <= 0 {
		opts.StopDistance = DefaultStopDistance
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		host:         host,
		keys:         keys,
		tickInterval: opts.TickInterval,
		stopDistance: opts.StopDistance,
		log:          opts.Logger,
		events:       opts.Events,
		rng:          opts.Rand,
	}
}

// Goto cancels any wander and any navigation, then walks to (x, 0, z).
// It blocks until the session ends: nil on arrival, ErrInterrupted when the
// session was stopped or superseded, ctx.Err() when ctx ends first (the
// session is stopped in that case).
func (c *Controller) Goto(ctx context.Context, x, z float64) error {
	if c == nil {
		return ErrNoControls
	}
	c.StopRandomWalk()

	s, err := c.startNavigation(ctx, geom.V3(x, 0, z), "")
	if err != nil {
		return err
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		c.endSession(s, ReasonCancelled)
		<-s.done
		return ctx.Err()
	}
	if s.reason == ReasonArrived {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrInterrupted, s.reason)
}

// StopNavigation releases movement keys and ends the current session. It is a
// no-op when nothing is navigating.
func (c *Controller) StopNavigation(reason string) {
	if c == nil {
		return
	}
	if reason == "" {
		reason = "stopped"
	}
	c.mu.Lock()
	c.stopNavigationLocked(reason)
	c.unlock()
}

func (c *Controller) IsNavigating() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav != nil
}

// Target returns the current navigation target.
func (c *Controller) Target() (geom.Vec3, bool) {
	if c == nil {
		return geom.Vec3{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nav == nil {
		return geom.Vec3{}, false
	}
	return c.nav.target, true
}

// CreateCamera builds a camera mirroring the host rig. Rotation and
// quaternion of the returned rig stay consistent through its setters.
func (c *Controller) CreateCamera() (*input.CameraRig, bool) {
	if c == nil || c.host == nil {
		return nil, false
	}
	rig, ok := c.host.RigTransform()
	if !ok {
		c.log.Warn("No camera rig available")
		return nil, false
	}
	cam := input.NewCameraRig()
	cam.SetPosition(rig.Position)
	if rig.Quaternion.IsFinite() && rig.Quaternion.Length() > 0 {
		cam.SetQuaternion(rig.Quaternion)
	}
	return cam, true
}

// startNavigation is the primitive shared by Goto and the wander loop. The
// session's token derives from parent, so cancelling parent cancels it.
func (c *Controller) startNavigation(parent context.Context, target geom.Vec3, wanderID string) (*session, error) {
	if c.host == nil {
		c.log.Error("Navigation requested without a world")
		return nil, ErrNoPlayer
	}
	if _, ok := c.host.PlayerTransform(); !ok {
		c.log.Error("Navigation requested without a player")
		return nil, ErrNoPlayer
	}
	if c.keys == nil {
		c.log.Error("Navigation requested without controls")
		return nil, ErrNoControls
	}

	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:       uuid.NewString(),
		ctx:      ctx,
		cancel:   cancel,
		target:   target,
		wanderID: wanderID,
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	if wanderID != "" && (c.wander == nil || c.wander.id != wanderID) {
		c.unlock()
		cancel()
		return nil, errWanderEnded
	}
	c.stopNavigationLocked(ReasonSuperseded)
	c.nav = s
	c.emit(event.EventNavigationStart, event.NavigationEvent{
		SessionID: s.id,
		TargetX:   target.X,
		TargetZ:   target.Z,
		Wander:    wanderID != "",
		At:        time.Now(),
	})
	c.unlock()

	c.log.Info("Navigation started", "session", s.id, "x", target.X, "z", target.Z, "wander", wanderID != "")
	go c.run(s)
	return s, nil
}

func (c *Controller) run(s *session) {
	timer := time.NewTimer(c.tickInterval)
	defer timer.Stop()

	for {
		if s.ctx.Err() != nil {
			c.endSession(s, ReasonCancelled)
			return
		}
		if finished := c.tick(s); finished {
			return
		}

		timer.Reset(c.tickInterval)
		select {
		case <-s.ctx.Done():
			c.endSession(s, ReasonCancelled)
			return
		case <-timer.C:
		}
	}
}

// tick runs one steering step. It holds the controller lock so a superseded
// session can never write keys after its successor started.
func (c *Controller) tick(s *session) bool {
	c.mu.Lock()
	defer c.unlock()

	if c.nav != s {
		return true
	}

	tr, ok := c.host.PlayerTransform()
	if !ok {
		c.log.Error("Player disappeared during navigation", "session", s.id)
		c.stopNavigationLocked(ReasonPlayerUnavailable)
		return true
	}

	res, err := validate.Check(tr.Position, tr.Quaternion)
	switch {
	case errors.Is(err, validate.ErrNonFinitePosition):
		c.log.Error("Invalid player position, skipping tick", "session", s.id, "error", err)
		c.releaseMovementLocked()
		return false
	case err != nil:
		// Orientation is rewritten below, which repairs it.
		c.log.Error("Invalid player orientation", "session", s.id, "error", err)
	case res.Normalized:
		c.log.Error("Player quaternion not unit length, normalized", "session", s.id, "length", res.Length)
		c.host.SetPlayerQuaternion(res.Quaternion)
	}

	dist := geom.PlanarDistance(tr.Position, s.target)
	if dist <= c.stopDistance {
		c.stopNavigationLocked(ReasonArrived)
		return true
	}

	dir := geom.PlanarDirection(tr.Position, s.target)
	q := geom.FaceDirection(dir)
	c.host.SetPlayerQuaternion(q)
	c.host.SetCameraYaw(geom.EulerFromQuat(q).Y)

	for _, k := range input.MovementKeys {
		c.keys.SetKey(k, k == input.KeyForward)
	}
	return false
}

// endSession stops s if it is still the active session.
func (c *Controller) endSession(s *session, reason string) {
	c.mu.Lock()
	if c.nav == s {
		c.stopNavigationLocked(reason)
	}
	c.unlock()
}

func (c *Controller) stopNavigationLocked(reason string) {
	s := c.nav
	if s == nil {
		return
	}
	c.nav = nil
	s.reason = reason
	s.cancel()
	close(s.done)
	c.releaseMovementLocked()

	c.log.Info("Navigation stopped", "session", s.id, "reason", reason)
	c.emit(event.EventNavigationStop, event.NavigationEvent{
		SessionID: s.id,
		TargetX:   s.target.X,
		TargetZ:   s.target.Z,
		Wander:    s.wanderID != "",
		Reason:    reason,
		At:        time.Now(),
	})
}

func (c *Controller) releaseMovementLocked() {
	if c.keys == nil {
		return
	}
	for _, k := range input.MovementKeys {
		c.keys.SetKey(k, false)
	}
}

func (c *Controller) emit(name string, evt any) {
	if c.events == nil {
		return
	}
	c.pending = append(c.pending, pendingEvent{name: name, evt: evt})
}

// unlock releases mu and publishes events queued while it was held.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, p := range pending {
		c.events.Publish(p.name, p.evt)
	}
}
