package physics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Versifine/motor/internal/world"
)

const DefaultFrameInterval = 50 * time.Millisecond

// Device is what the simulator consumes each frame.
type Device interface {
	Buttons
	ResetEdges()
}

// Simulator stands in for the host engine when none is connected: every
// frame it reads the device, moves the local player, then clears edges.
type Simulator struct {
	world  *world.WorldState
	device Device
	frame  time.Duration
	tuning Tuning

	mu       sync.Mutex
	velocity map[string]BodyState
	frames   uint64
}

func NewSimulator(ws *world.WorldState, device Device, frame time.Duration, tuning Tuning) *Simulator {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &Simulator{
		world:    ws,
		device:   device,
		frame:    frame,
		tuning:   tuning,
		velocity: make(map[string]BodyState),
	}
}

func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()

	slog.Info("Local simulator started", "frame", s.frame)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Step(s.frame)
		}
	}
}

// Step runs one host frame of length dt.
func (s *Simulator) Step(dt time.Duration) {
	if s == nil || s.world == nil || s.device == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.world.PlayerID()
	if ok {
		tr, _ := s.world.PlayerTransform()
		prev := s.velocity[id]
		state := BodyState{
			Position:   tr.Position,
			Velocity:   prev.Velocity,
			Quaternion: tr.Quaternion,
		}
		if state.Position.IsFinite() {
			Tick(&state, s.device, dt, s.tuning)
			s.world.UpdatePosition(state.Position)
			s.world.UpdateRig(world.Transform{Position: state.Position, Quaternion: tr.Quaternion})
		}
		s.velocity[id] = state
	}

	s.frames++
	s.device.ResetEdges()
}

func (s *Simulator) Frames() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
