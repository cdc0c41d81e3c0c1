package bridge

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/input"
)

type hostConn struct {
	t       *testing.T
	conn    *websocket.Conn
	backlog [][]byte
}

func dialHost(t *testing.T) (*hostConn, *Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Navigation.TickInterval = 5 * time.Millisecond
	cfg.Action.ReleaseDelay = 20 * time.Millisecond

	bus, err := event.NewBus(4)
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	s := NewServer(cfg, bus)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &hostConn{t: t, conn: conn}, s
}

func (h *hostConn) send(v any) {
	h.t.Helper()
	require.NoError(h.t, h.conn.WriteJSON(v))
}

// readType returns the next message of type typ. Messages of other types are
// kept for later calls.
func (h *hostConn) readType(typ string) []byte {
	h.t.Helper()
	for i, msg := range h.backlog {
		base, _ := DecodeBase(msg)
		if base.Type == typ {
			h.backlog = append(h.backlog[:i], h.backlog[i+1:]...)
			return msg
		}
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(h.t, h.conn.SetReadDeadline(deadline))
		_, msg, err := h.conn.ReadMessage()
		require.NoError(h.t, err)
		base, err := DecodeBase(msg)
		require.NoError(h.t, err)
		if base.Type == typ {
			return msg
		}
		h.backlog = append(h.backlog, msg)
	}
}

func (h *hostConn) frame(n uint64) InputMsg {
	h.t.Helper()
	h.send(FrameMsg{
		Type:   TypeFrame,
		Frame:  n,
		Player: &PlayerMsg{ID: "host-player", Quaternion: Quat{W: 1}},
	})
	var in InputMsg
	require.NoError(h.t, json.Unmarshal(h.readType(TypeInput), &in))
	require.Equal(h.t, n, in.Frame)
	return in
}

func (h *hostConn) intent(id string, fields map[string]any) AckMsg {
	h.t.Helper()
	msg := map[string]any{"type": TypeIntent, "id": id}
	for k, v := range fields {
		msg[k] = v
	}
	h.send(msg)
	var ack AckMsg
	require.NoError(h.t, json.Unmarshal(h.readType(TypeAck), &ack))
	require.Equal(h.t, id, ack.ID)
	return ack
}

func TestWelcome(t *testing.T) {
	h, s := dialHost(t)

	var w WelcomeMsg
	require.NoError(t, json.Unmarshal(h.readType(TypeWelcome), &w))
	assert.NotEmpty(t, w.SessionID)
	assert.Contains(t, w.Keys, input.KeyForward)

	require.Eventually(t, func() bool { return s.SessionCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, w.SessionID, s.Latest().ID())
}

func TestFrameReplyAndEdgeReset(t *testing.T) {
	h, _ := dialHost(t)
	h.readType(TypeWelcome)

	in := h.frame(1)
	assert.False(t, in.Buttons[input.KeyForward].Down)
	require.NotNil(t, in.Quaternion)

	ack := h.intent("g1", map[string]any{"action": "goto", "x": 0, "z": -50})
	require.True(t, ack.OK, ack.Error)

	var pressedFrames, downFrames int
	for n := uint64(2); n < 200 && downFrames < 3; n++ {
		in := h.frame(n)
		b := in.Buttons[input.KeyForward]
		if b.Pressed {
			pressedFrames++
		}
		if b.Down {
			downFrames++
		}
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, 3, downFrames)
	assert.Equal(t, 1, pressedFrames, "press edge must be delivered exactly once")

	ack = h.intent("s1", map[string]any{"action": "stop"})
	require.True(t, ack.OK)

	in = h.frame(500)
	assert.False(t, in.Buttons[input.KeyForward].Down)
	assert.True(t, in.Buttons[input.KeyForward].Released)
	in = h.frame(501)
	assert.False(t, in.Buttons[input.KeyForward].Released)
}

func TestFramePointerLockAndTarget(t *testing.T) {
	h, _ := dialHost(t)
	h.readType(TypeWelcome)

	locked := true
	h.send(FrameMsg{
		Type:          TypeFrame,
		Frame:         1,
		Player:        &PlayerMsg{ID: "host-player", Quaternion: Quat{W: 1}},
		PointerLocked: &locked,
	})
	var in InputMsg
	require.NoError(t, json.Unmarshal(h.readType(TypeInput), &in))
	assert.True(t, in.Pointer.Locked)
	assert.Nil(t, in.Target)

	// Omitted field keeps the lock.
	in = h.frame(2)
	assert.True(t, in.Pointer.Locked)

	ack := h.intent("g1", map[string]any{"action": "goto", "x": 3, "z": -40})
	require.True(t, ack.OK, ack.Error)

	var target *Vec3
	for n := uint64(3); n < 200 && target == nil; n++ {
		target = h.frame(n).Target
		time.Sleep(2 * time.Millisecond)
	}
	require.NotNil(t, target)
	assert.Equal(t, Vec3{X: 3, Z: -40}, *target)

	h.intent("s1", map[string]any{"action": "stop"})
	assert.Nil(t, h.frame(500).Target)
}

func TestIntentErrors(t *testing.T) {
	h, _ := dialHost(t)
	h.readType(TypeWelcome)

	ack := h.intent("bad", map[string]any{"action": "dance"})
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "unknown intent action")

	// No frame yet, so no player.
	ack = h.intent("g", map[string]any{"action": "goto", "x": 1, "z": 1})
	assert.False(t, ack.OK)

	ack = h.intent("r", map[string]any{"action": "release"})
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "nothing to release")
}

func TestNodeLifecycleAndEvents(t *testing.T) {
	h, s := dialHost(t)
	h.readType(TypeWelcome)
	h.frame(1)

	h.send(NodeMsg{Type: TypeNode, ID: "n1", Op: NodeRegister, EntityID: "lever", Position: Vec3{X: 1}, DurationMs: 20})
	var ack AckMsg
	require.NoError(t, json.Unmarshal(h.readType(TypeAck), &ack))
	require.True(t, ack.OK, ack.Error)
	assert.Len(t, s.Latest().NearbyNodes(0), 1)

	ack = h.intent("p1", map[string]any{"action": "perform", "entity_id": "lever"})
	require.True(t, ack.OK, ack.Error)

	var evt struct {
		Event string            `json:"event"`
		Data  event.ActionEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(h.readType(TypeEvent), &evt))
	assert.Equal(t, event.EventActionTriggered, evt.Event)
	assert.Equal(t, "lever", evt.Data.EntityID)
	assert.Equal(t, "host-player", evt.Data.PlayerID)

	ack = h.intent("r1", map[string]any{"action": "release"})
	require.True(t, ack.OK, ack.Error)
	require.NoError(t, json.Unmarshal(h.readType(TypeEvent), &evt))
	assert.Equal(t, event.EventActionCancelled, evt.Event)

	h.send(NodeMsg{Type: TypeNode, ID: "n2", Op: NodeFinish, EntityID: "lever"})
	require.NoError(t, json.Unmarshal(h.readType(TypeAck), &ack))
	require.True(t, ack.OK)
	assert.Empty(t, s.Latest().NearbyNodes(0))

	h.send(NodeMsg{Type: TypeNode, ID: "n3", Op: NodeUnregister, EntityID: "lever"})
	require.NoError(t, json.Unmarshal(h.readType(TypeAck), &ack))
	require.True(t, ack.OK)
	assert.Equal(t, 0, s.Latest().Actions().Len())

	h.send(NodeMsg{Type: TypeNode, ID: "n4", Op: "explode", EntityID: "lever"})
	require.NoError(t, json.Unmarshal(h.readType(TypeAck), &ack))
	assert.False(t, ack.OK)
}

func TestDisconnectClosesSession(t *testing.T) {
	h, s := dialHost(t)
	h.readType(TypeWelcome)
	require.Eventually(t, func() bool { return s.SessionCount() == 1 }, time.Second, time.Millisecond)

	_ = h.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = h.conn.Close()

	require.Eventually(t, func() bool { return s.SessionCount() == 0 }, 2*time.Second, time.Millisecond)
	assert.Nil(t, s.Latest())
}

func TestDecodeBase(t *testing.T) {
	_, err := DecodeBase([]byte(`{"id":"x"}`))
	assert.Error(t, err)
	_, err = DecodeBase([]byte(`not json`))
	assert.Error(t, err)
	base, err := DecodeBase([]byte(`{"type":"frame","id":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeFrame, base.Type)
	assert.Equal(t, "7", base.ID)
}
