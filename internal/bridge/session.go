package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Versifine/motor/internal/action"
	"github.com/Versifine/motor/internal/agent"
	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/world"
)

// forwarded are the events the host needs to run node effects.
var forwarded = map[string]bool{
	event.EventActionTriggered: true,
	event.EventActionCancelled: true,
}

type session struct {
	conn  *websocket.Conn
	agent *agent.Agent
	world *world.WorldState
	log   *slog.Logger
	out   chan []byte

	// nodes is only touched by the reader loop.
	nodes map[string][]*action.EntityNode
}

// sessionPublisher republishes onto the process bus and forwards host-facing
// events to this session's connection.
type sessionPublisher struct {
	bus  event.Publisher
	sess *session
}

func (p sessionPublisher) Publish(name string, evt any) {
	if p.bus != nil {
		p.bus.Publish(name, evt)
	}
	if forwarded[name] {
		p.sess.sendAsync(EventMsg{Type: TypeEvent, Event: name, Data: evt})
	}
}

func newSession(ctx context.Context, conn *websocket.Conn, cfg *config.Config, bus *event.Bus) *session {
	sess := &session{
		conn:  conn,
		world: world.NewWorldState(),
		out:   make(chan []byte, outQueueSize),
		nodes: make(map[string][]*action.EntityNode),
	}
	var pub event.Publisher
	if bus != nil {
		pub = bus
	}
	sess.agent = agent.New(ctx, sess.world, sessionPublisher{bus: pub, sess: sess}, cfg)
	sess.log = slog.Default().With("component", "bridge", "session", sess.agent.ID())
	return sess
}

func (s *session) run(ctx context.Context, cancel context.CancelFunc) {
	defer s.agent.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, cancel)
	}()
	defer func() { <-writerDone }()
	defer cancel()

	s.send(ctx, WelcomeMsg{Type: TypeWelcome, SessionID: s.agent.ID(), Keys: s.agent.Device().Keys()})

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Read failed", "error", err)
			}
			return
		}
		s.handle(ctx, msg)
	}
}

func (s *session) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.log.Warn("Write failed", "error", err)
				cancel()
				return
			}
		}
	}
}

func (s *session) handle(ctx context.Context, msg []byte) {
	base, err := DecodeBase(msg)
	if err != nil {
		s.log.Warn("Dropping malformed message", "error", err)
		return
	}

	switch base.Type {
	case TypeFrame:
		var frame FrameMsg
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.log.Warn("Dropping malformed frame", "error", err)
			return
		}
		s.applyFrame(frame)
		s.send(ctx, s.inputReply(frame.Frame))
		// Edges were delivered with this reply.
		s.agent.Device().ResetEdges()

	case TypeNode:
		var node NodeMsg
		if err := json.Unmarshal(msg, &node); err != nil {
			s.ack(ctx, base.ID, "", err)
			return
		}
		s.ack(ctx, base.ID, "", s.applyNode(node))

	case TypeIntent:
		var raw map[string]any
		if err := json.Unmarshal(msg, &raw); err != nil {
			s.ack(ctx, base.ID, "", err)
			return
		}
		intent, err := agent.ParseIntent(raw)
		if err != nil {
			s.ack(ctx, base.ID, "", err)
			return
		}
		result, err := s.agent.Do(intent)
		s.ack(ctx, base.ID, result, err)

	default:
		s.log.Info("Ignoring message", "type", base.Type)
	}
}

func (s *session) applyFrame(frame FrameMsg) {
	if p := frame.Player; p != nil {
		t := world.Transform{Position: p.Position.Geom(), Quaternion: p.Quaternion.Geom()}
		if id, ok := s.world.PlayerID(); !ok || id != p.ID {
			s.world.SpawnPlayer(p.ID, t)
			s.log.Info("Player attached", "player", p.ID)
		} else {
			s.world.UpdatePlayer(t)
		}
	} else if _, ok := s.world.PlayerID(); ok {
		s.world.DespawnPlayer()
		s.log.Info("Player detached")
	}

	if frame.PointerLocked != nil {
		s.agent.Device().SetPointerLocked(*frame.PointerLocked)
	}
	if frame.Rig != nil {
		s.world.UpdateRig(world.Transform{Position: frame.Rig.Position.Geom(), Quaternion: frame.Rig.Quaternion.Geom()})
	}
	for _, e := range frame.Entities {
		if _, ok := s.world.Entity(e.ID); !ok {
			s.world.AddEntity(world.Entity{ID: e.ID, Position: e.Position.Geom(), Finished: e.Finished})
			continue
		}
		s.world.UpdateEntityPosition(e.ID, e.Position.Geom())
		s.world.SetEntityFinished(e.ID, e.Finished)
	}
}

func (s *session) applyNode(msg NodeMsg) error {
	if msg.EntityID == "" {
		return errMissingEntity
	}
	switch msg.Op {
	case NodeRegister:
		if _, ok := s.world.Entity(msg.EntityID); !ok {
			s.world.AddEntity(world.Entity{ID: msg.EntityID, Position: msg.Position.Geom()})
		} else {
			s.world.UpdateEntityPosition(msg.EntityID, msg.Position.Geom())
		}
		node := action.NewEntityNode(s.world, msg.EntityID, time.Duration(msg.DurationMs)*time.Millisecond)
		s.nodes[msg.EntityID] = append(s.nodes[msg.EntityID], node)
		s.agent.Actions().Register(node)
		s.log.Info("Action node registered", "entity", msg.EntityID)
	case NodeUnregister:
		list := s.nodes[msg.EntityID]
		if len(list) == 0 {
			return nil
		}
		s.agent.Actions().Unregister(list[0])
		if len(list) == 1 {
			delete(s.nodes, msg.EntityID)
			s.world.RemoveEntity(msg.EntityID)
		} else {
			s.nodes[msg.EntityID] = list[1:]
		}
		s.log.Info("Action node unregistered", "entity", msg.EntityID)
	case NodeFinish:
		s.world.SetEntityFinished(msg.EntityID, true)
	default:
		return errUnknownNodeOp
	}
	return nil
}

func (s *session) inputReply(frame uint64) InputMsg {
	dev := s.agent.Device()
	snap := dev.Snapshot()
	buttons := make(map[string]ButtonMsg, len(snap))
	for name, b := range snap {
		buttons[name] = ButtonMsg{Down: b.Down, Pressed: b.Pressed, Released: b.Released}
	}
	reply := InputMsg{
		Type:      TypeInput,
		Frame:     frame,
		Buttons:   buttons,
		CameraYaw: s.world.CameraYaw(),
		Pointer:   dev.Pointer(),
	}
	if tr, ok := s.world.PlayerTransform(); ok {
		q := FromQuat(tr.Quaternion)
		reply.Quaternion = &q
	}
	if target, ok := s.agent.Nav().Target(); ok {
		v := FromGeom(target)
		reply.Target = &v
	}
	return reply
}

func (s *session) ack(ctx context.Context, id, result string, err error) {
	msg := AckMsg{Type: TypeAck, ID: id, OK: err == nil}
	if err != nil {
		msg.Error = err.Error()
	}
	if result != "" {
		msg.Result = json.RawMessage(result)
	}
	s.send(ctx, msg)
}

// send queues v, blocking until there is room or ctx ends.
func (s *session) send(ctx context.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("Encode failed", "error", err)
		return
	}
	select {
	case s.out <- b:
	case <-ctx.Done():
	}
}

// sendAsync queues v without blocking; it is used from bus callbacks.
func (s *session) sendAsync(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("Encode failed", "error", err)
		return
	}
	select {
	case s.out <- b:
	default:
		s.log.Warn("Outbound queue full, dropping event")
	}
}
