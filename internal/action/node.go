package action

import (
	"sync"
	"time"

	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/world"
)

const DefaultDuration = 3000 * time.Millisecond

// Node is an interactable entity owned by the host. The registry only keeps a
// reference to it.
type Node interface {
	EntityID() string
	Position() geom.Vec3
	Finished() bool
}

// Optional node capabilities, detected by type assertion.
type (
	durationer interface {
		Duration() time.Duration
	}
	triggerer interface {
		OnTrigger(info TriggerInfo) error
	}
	canceller interface {
		OnCancel() error
	}
)

type TriggerInfo struct {
	PlayerID string
}

func nodeDuration(n Node, fallback time.Duration) time.Duration {
	if d, ok := n.(durationer); ok {
		if v := d.Duration(); v > 0 {
			return v
		}
	}
	return fallback
}

// SimpleNode is a self-contained Node with optional callbacks.
type SimpleNode struct {
	ID          string
	Hold        time.Duration
	TriggerFunc func(info TriggerInfo) error
	CancelFunc  func() error

	mu       sync.RWMutex
	position geom.Vec3
	finished bool
}

func NewSimpleNode(id string, pos geom.Vec3) *SimpleNode {
	return &SimpleNode{ID: id, position: pos}
}

func (n *SimpleNode) EntityID() string { return n.ID }

func (n *SimpleNode) Position() geom.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.position
}

func (n *SimpleNode) SetPosition(pos geom.Vec3) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.position = pos
}

func (n *SimpleNode) Finished() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.finished
}

func (n *SimpleNode) SetFinished(finished bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = finished
}

func (n *SimpleNode) Duration() time.Duration { return n.Hold }

func (n *SimpleNode) OnTrigger(info TriggerInfo) error {
	if n.TriggerFunc == nil {
		return nil
	}
	return n.TriggerFunc(info)
}

func (n *SimpleNode) OnCancel() error {
	if n.CancelFunc == nil {
		return nil
	}
	return n.CancelFunc()
}

// EntityNode exposes a world entity as a Node. Position and finished state are
// read live from the world; a despawned entity counts as finished.
type EntityNode struct {
	world *world.WorldState
	id    string
	hold  time.Duration
}

func NewEntityNode(ws *world.WorldState, id string, hold time.Duration) *EntityNode {
	return &EntityNode{world: ws, id: id, hold: hold}
}

func (n *EntityNode) EntityID() string { return n.id }

func (n *EntityNode) Position() geom.Vec3 {
	e, ok := n.world.Entity(n.id)
	if !ok {
		return geom.Vec3{}
	}
	return e.Position
}

func (n *EntityNode) Finished() bool {
	e, ok := n.world.Entity(n.id)
	return !ok || e.Finished
}

func (n *EntityNode) Duration() time.Duration { return n.hold }
