package world

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Versifine/motor/internal/geom"
)

// Host is the slice of the host engine the motor layer reads and writes.
// Every accessor reports false when the underlying object does not exist
// (player not spawned, no camera rig).
type Host interface {
	PlayerID() (string, bool)
	PlayerTransform() (Transform, bool)
	SetPlayerQuaternion(q geom.Quat) bool
	SetCameraYaw(yaw float64) bool
	RigTransform() (Transform, bool)
}

type Transform struct {
	Position   geom.Vec3
	Quaternion geom.Quat
}

type Entity struct {
	ID       string
	Position geom.Vec3
	Finished bool
}

type Snapshot struct {
	PlayerID  string
	HasPlayer bool
	Player    Transform
	CameraYaw float64
	HasRig    bool
	Rig       Transform
	Entities  []Entity
}

func (s Snapshot) String() string {
	var entityInfos []string
	for _, e := range s.Entities {
		dist := geom.PlanarDistance(s.Rig.Position, e.Position)
		state := ""
		if e.Finished {
			state = " finished"
		}
		entityInfos = append(entityInfos, fmt.Sprintf("%s (%.1f, %.1f, %.1f) dist:%.1f%s", e.ID, e.Position.X, e.Position.Y, e.Position.Z, dist, state))
	}
	entitiesStr := fmt.Sprintf("[%s]", strings.Join(entityInfos, ", "))

	player := "none"
	if s.HasPlayer {
		p := s.Player.Position
		player = fmt.Sprintf("%s (X: %.2f, Y: %.2f, Z: %.2f, Yaw: %.1f)", s.PlayerID, p.X, p.Y, p.Z, s.CameraYaw*180/math.Pi)
	}

	return fmt.Sprintf("Snapshot | [Player: %s] | [Entities(%d): %s]", player, len(s.Entities), entitiesStr)
}

// WorldState is an in-memory mirror of the host scene. The host engine (via
// the bridge or the local simulator) is authoritative for positions; the motor
// layer writes orientation back.
type WorldState struct {
	mu        sync.RWMutex
	playerID  string
	hasPlayer bool
	player    Transform
	cameraYaw float64
	hasRig    bool
	rig       Transform
	entities  map[string]*Entity
}

func NewWorldState() *WorldState {
	return &WorldState{
		entities: make(map[string]*Entity),
	}
}

func (ws *WorldState) GetState() Snapshot {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	entities := make([]Entity, 0, len(ws.entities))
	for _, e := range ws.entities {
		entities = append(entities, *e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return Snapshot{
		PlayerID:  ws.playerID,
		HasPlayer: ws.hasPlayer,
		Player:    ws.player,
		CameraYaw: ws.cameraYaw,
		HasRig:    ws.hasRig,
		Rig:       ws.rig,
		Entities:  entities,
	}
}

func (ws *WorldState) SpawnPlayer(id string, t Transform) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.playerID = id
	ws.hasPlayer = true
	ws.player = t
	if ws.player.Quaternion == (geom.Quat{}) {
		ws.player.Quaternion = geom.Identity()
	}
	// The rig follows the player until the host reports its own rig.
	if !ws.hasRig {
		ws.hasRig = true
		ws.rig = ws.player
	}
}

func (ws *WorldState) DespawnPlayer() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.playerID = ""
	ws.hasPlayer = false
	ws.player = Transform{}
}

func (ws *WorldState) PlayerID() (string, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.playerID, ws.hasPlayer
}

func (ws *WorldState) PlayerTransform() (Transform, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.player, ws.hasPlayer
}

func (ws *WorldState) UpdatePlayer(t Transform) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.hasPlayer {
		return
	}
	ws.player = t
}

func (ws *WorldState) UpdatePosition(pos geom.Vec3) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.hasPlayer {
		return
	}
	ws.player.Position = pos
}

func (ws *WorldState) SetPlayerQuaternion(q geom.Quat) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.hasPlayer {
		return false
	}
	ws.player.Quaternion = q
	return true
}

func (ws *WorldState) CameraYaw() float64 {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.cameraYaw
}

func (ws *WorldState) SetCameraYaw(yaw float64) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.hasPlayer {
		return false
	}
	ws.cameraYaw = yaw
	return true
}

func (ws *WorldState) RigTransform() (Transform, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.rig, ws.hasRig
}

func (ws *WorldState) UpdateRig(t Transform) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.hasRig = true
	ws.rig = t
}

func (ws *WorldState) AddEntity(e Entity) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.entities == nil {
		ws.entities = make(map[string]*Entity)
	}
	ws.entities[e.ID] = &e
}

func (ws *WorldState) RemoveEntity(id string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.entities, id)
}

func (ws *WorldState) Entity(id string) (Entity, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	e, ok := ws.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

func (ws *WorldState) UpdateEntityPosition(id string, pos geom.Vec3) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if e, ok := ws.entities[id]; ok {
		e.Position = pos
	}
}

func (ws *WorldState) SetEntityFinished(id string, finished bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if e, ok := ws.entities[id]; ok {
		e.Finished = finished
	}
}
