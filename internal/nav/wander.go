package nav

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/geom"
)

const (
	DefaultWanderInterval    = 5 * time.Second
	DefaultWanderMaxDistance = 7.0
	DefaultWanderDuration    = 30 * time.Second
)

// WanderOptions tunes StartRandomWalk. Zero fields take the defaults; a
// negative Duration wanders until stopped.
type WanderOptions struct {
	Interval    time.Duration
	MaxDistance float64
	Duration    time.Duration
}

func (o WanderOptions) withDefaults() WanderOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultWanderInterval
	}
	if o.MaxDistance <= 0 {
		o.MaxDistance = DefaultWanderMaxDistance
	}
	if o.Duration == 0 {
		o.Duration = DefaultWanderDuration
	}
	return o
}

// StartRandomWalk replaces any running wander and repeatedly navigates to a
// random point within MaxDistance of the player, pausing a random delay below
// Interval between legs. It blocks until the wander ends: Duration elapsed,
// StopRandomWalk, Goto, or ctx done.
func (c *Controller) StartRandomWalk(ctx context.Context, opts WanderOptions) error {
	if c == nil {
		return ErrNoControls
	}
	opts = opts.withDefaults()
	c.StopRandomWalk()

	if c.host == nil {
		c.log.Error("Wander requested without a world")
		return ErrNoPlayer
	}
	if _, ok := c.host.PlayerTransform(); !ok {
		c.log.Error("Wander requested without a player")
		return ErrNoPlayer
	}

	var (
		wctx   context.Context
		cancel context.CancelFunc
	)
	if opts.Duration > 0 {
		wctx, cancel = context.WithTimeout(ctx, opts.Duration)
	} else {
		wctx, cancel = context.WithCancel(ctx)
	}
	w := &session{
		id:     uuid.NewString(),
		ctx:    wctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if prev := c.wander; prev != nil {
		c.stopWanderLocked(prev, ReasonSuperseded)
	}
	c.wander = w
	c.emit(event.EventWanderStart, event.WanderEvent{
		SessionID:   w.id,
		Interval:    opts.Interval,
		MaxDistance: opts.MaxDistance,
		Duration:    opts.Duration,
		At:          time.Now(),
	})
	c.unlock()
	c.log.Info("Wander started", "session", w.id, "interval", opts.Interval, "max_distance", opts.MaxDistance, "duration", opts.Duration)

	reason := c.wanderLoop(w, opts)
	c.stopWander(w, reason)
	return nil
}

func (c *Controller) wanderLoop(w *session, opts WanderOptions) string {
	for {
		if reason, stop := c.wanderShouldStop(w); stop {
			return reason
		}

		tr, ok := c.host.PlayerTransform()
		if !ok {
			return ReasonPlayerUnavailable
		}
		angle := c.randFloat() * 2 * math.Pi
		radius := c.randFloat() * opts.MaxDistance
		target := geom.V3(
			tr.Position.X+math.Cos(angle)*radius,
			0,
			tr.Position.Z+math.Sin(angle)*radius,
		)

		s, err := c.startNavigation(w.ctx, target, w.id)
		if errors.Is(err, errWanderEnded) {
			return ReasonSuperseded
		}
		if err != nil {
			return err.Error()
		}
		<-s.done

		if reason, stop := c.wanderShouldStop(w); stop {
			return reason
		}
		delay := time.Duration(c.randFloat() * float64(opts.Interval))
		timer := time.NewTimer(delay)
		select {
		case <-w.ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (c *Controller) wanderShouldStop(w *session) (string, bool) {
	c.mu.Lock()
	current := c.wander == w
	c.mu.Unlock()
	if !current {
		return ReasonSuperseded, true
	}
	switch err := w.ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return "duration reached", true
	case err != nil:
		return ReasonCancelled, true
	}
	return "", false
}

// StopRandomWalk aborts the current wander and any navigation it is running.
// It is a no-op when not wandering.
func (c *Controller) StopRandomWalk() {
	if c == nil {
		return
	}
	c.mu.Lock()
	w := c.wander
	c.unlock()
	if w != nil {
		c.stopWander(w, "stopped")
	}
}

func (c *Controller) IsWalkingRandomly() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wander != nil
}

func (c *Controller) stopWander(w *session, reason string) {
	c.mu.Lock()
	defer c.unlock()
	if c.wander != w {
		w.cancel()
		return
	}
	c.stopWanderLocked(w, reason)
}

func (c *Controller) stopWanderLocked(w *session, reason string) {
	c.wander = nil
	w.reason = reason
	w.cancel()
	close(w.done)
	if c.nav != nil && c.nav.wanderID == w.id {
		c.stopNavigationLocked(ReasonWanderStopped)
	}

	c.log.Info("Wander stopped", "session", w.id, "reason", reason)
	c.emit(event.EventWanderStop, event.WanderEvent{
		SessionID: w.id,
		Reason:    reason,
		At:        time.Now(),
	})
}

func (c *Controller) randFloat() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}
