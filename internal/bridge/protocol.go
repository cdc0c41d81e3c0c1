package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
)

const (
	TypeWelcome = "welcome"
	TypeFrame   = "frame"
	TypeInput   = "input"
	TypeNode    = "node"
	TypeIntent  = "intent"
	TypeAck     = "ack"
	TypeEvent   = "event"
)

const (
	NodeRegister   = "register"
	NodeUnregister = "unregister"
	NodeFinish     = "finish"
)

var (
	errMissingEntity = errors.New("node message missing entity_id")
	errUnknownNodeOp = errors.New("unknown node op")
)

type BaseMsg struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

func DecodeBase(b []byte) (BaseMsg, error) {
	var base BaseMsg
	if err := json.Unmarshal(b, &base); err != nil {
		return BaseMsg{}, fmt.Errorf("decode message: %w", err)
	}
	if base.Type == "" {
		return BaseMsg{}, fmt.Errorf("message missing type")
	}
	return base, nil
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Geom() geom.Vec3 { return geom.V3(v.X, v.Y, v.Z) }

func FromGeom(v geom.Vec3) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (q Quat) Geom() geom.Quat { return geom.Quat{X: q.X, Y: q.Y, Z: q.Z, W: q.W} }

func FromQuat(q geom.Quat) Quat { return Quat{X: q.X, Y: q.Y, Z: q.Z, W: q.W} }

type WelcomeMsg struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Keys      []string `json:"keys"`
}

type PlayerMsg struct {
	ID         string `json:"id"`
	Position   Vec3   `json:"position"`
	Quaternion Quat   `json:"quaternion"`
}

type RigMsg struct {
	Position   Vec3 `json:"position"`
	Quaternion Quat `json:"quaternion"`
}

type EntityMsg struct {
	ID       string `json:"id"`
	Position Vec3   `json:"position"`
	Finished bool   `json:"finished,omitempty"`
}

// FrameMsg is sent by the host once per rendered frame. A nil Player means the
// local player is not spawned.
type FrameMsg struct {
	Type     string      `json:"type"`
	Frame    uint64      `json:"frame"`
	Player   *PlayerMsg  `json:"player,omitempty"`
	Rig      *RigMsg     `json:"rig,omitempty"`
	Entities []EntityMsg `json:"entities,omitempty"`
	// PointerLocked reports the host's pointer capture; nil leaves it unchanged.
	PointerLocked *bool `json:"pointer_locked,omitempty"`
}

type ButtonMsg struct {
	Down     bool `json:"down"`
	Pressed  bool `json:"pressed,omitempty"`
	Released bool `json:"released,omitempty"`
}

// InputMsg answers a frame with the device state the host should apply.
type InputMsg struct {
	Type       string               `json:"type"`
	Frame      uint64               `json:"frame"`
	Buttons    map[string]ButtonMsg `json:"buttons"`
	Quaternion *Quat                `json:"quaternion,omitempty"`
	CameraYaw  float64              `json:"camera_yaw"`
	Pointer    input.Pointer        `json:"pointer"`
	// Target is the navigation target while navigating.
	Target *Vec3 `json:"target,omitempty"`
}

type NodeMsg struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Op         string `json:"op"`
	EntityID   string `json:"entity_id"`
	Position   Vec3   `json:"position"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

type AckMsg struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type EventMsg struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}
