package debug

import (
	"bufio"
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Versifine/motor/internal/action"
	"github.com/Versifine/motor/internal/agent"
	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
	"github.com/Versifine/motor/internal/world"
)

func newTestConsole(t *testing.T) (*Console, *agent.Agent, *bytes.Buffer) {
	t.Helper()
	ws := world.NewWorldState()
	ws.SpawnPlayer("p1", world.Transform{})
	cfg := config.Default()
	cfg.Navigation.TickInterval = 5 * time.Millisecond
	a := agent.New(context.Background(), ws, nil, cfg)
	t.Cleanup(a.Close)

	var out bytes.Buffer
	c := NewConsole(func() *agent.Agent { return a }, &out)
	return c, a, &out
}

func typeCommand(c *Console, cmd string) {
	c.handleKey(nil, ':')
	for i := 0; i < len(cmd); i++ {
		c.handleKey(nil, cmd[i])
	}
	c.handleKey(nil, '\r')
}

func TestConsoleGotoAndStop(t *testing.T) {
	c, a, out := newTestConsole(t)

	typeCommand(c, "goto 10 -3")
	if !strings.Contains(out.String(), `"action":"goto"`) {
		t.Fatalf("output = %q, want goto ack", out.String())
	}

	deadline := time.Now().Add(time.Second)
	for !a.Nav().IsNavigating() {
		if time.Now().After(deadline) {
			t.Fatal("navigation never started")
		}
		time.Sleep(time.Millisecond)
	}
	target, ok := a.Nav().Target()
	if !ok || target != geom.V3(10, 0, -3) {
		t.Fatalf("target = %+v ok=%t, want (10,0,-3)", target, ok)
	}

	typeCommand(c, "stop")
	if a.Nav().IsNavigating() {
		t.Fatal("navigation should stop")
	}
}

func TestConsoleBadArgs(t *testing.T) {
	c, _, out := newTestConsole(t)

	c.executeCommand("goto 1")
	c.executeCommand("goto a b")
	c.executeCommand("nearby far")
	c.executeCommand("teleport")

	s := out.String()
	for _, want := range []string{"usage: :goto", "invalid goto args", "invalid radius", "unknown command: teleport"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q: %q", want, s)
		}
	}
}

func TestConsoleActAndNearby(t *testing.T) {
	c, a, out := newTestConsole(t)
	node := action.NewSimpleNode("chest", geom.V3(2, 0, 0))
	node.Hold = time.Hour
	a.Actions().Register(node)

	c.executeCommand("nearby 1")
	if !strings.Contains(out.String(), "no action nodes nearby") {
		t.Fatalf("output = %q", out.String())
	}
	c.executeCommand("nearby 3")
	if !strings.Contains(out.String(), "node chest at (2.00, 0.00, 0.00)") {
		t.Fatalf("output = %q", out.String())
	}

	c.executeCommand("act chest")
	if !a.Device().IsDown(input.KeyInteract) {
		t.Fatal("keyE should be held after :act")
	}
	c.executeCommand("release")
	if !strings.Contains(out.String(), "release failed") {
		t.Fatalf("release while engaged should fail: %q", out.String())
	}

	c.executeCommand("keys")
	if !strings.Contains(out.String(), "down: keyE") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestConsoleNoAgent(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(func() *agent.Agent { return nil }, &out)
	c.executeCommand("stop")
	if !strings.Contains(out.String(), "no agent session") {
		t.Fatalf("output = %q", out.String())
	}
	c.handleKey(nil, 'w')
	c.renderStatusLine()
}

func TestConsoleMovementPulse(t *testing.T) {
	c, a, _ := newTestConsole(t)
	c.movePulse = time.Minute

	c.handleKey(nil, 'w')
	if !a.Device().IsDown(input.KeyForward) {
		t.Fatal("W should hold keyW")
	}
	c.handleKey(nil, 's')
	if a.Device().IsDown(input.KeyForward) || !a.Device().IsDown(input.KeyBackward) {
		t.Fatal("S should replace keyW with keyS")
	}

	c.expirePulses(time.Now())
	if !a.Device().IsDown(input.KeyBackward) {
		t.Fatal("pulse expired too early")
	}
	c.expirePulses(time.Now().Add(2 * time.Minute))
	if a.Device().IsDown(input.KeyBackward) {
		t.Fatal("pulse should have expired")
	}
}

func TestConsoleToggleAndClear(t *testing.T) {
	c, a, _ := newTestConsole(t)

	c.handleKey(nil, ' ')
	c.handleKey(nil, ']')
	if !a.Device().IsDown(input.KeyJump) || !a.Device().IsDown(input.KeySprint) {
		t.Fatal("space and ] should toggle jump and sprint on")
	}
	c.handleKey(nil, ']')
	if a.Device().IsDown(input.KeySprint) {
		t.Fatal("] should toggle sprint off")
	}
	c.handleKey(nil, 'x')
	if len(a.Device().DownKeys()) != 0 {
		t.Fatalf("X should clear input, still down: %v", a.Device().DownKeys())
	}
}

func TestConsoleArrowTurns(t *testing.T) {
	c, a, _ := newTestConsole(t)

	r := bufio.NewReader(strings.NewReader("[D"))
	c.handleKey(r, 27)

	tr, _ := a.World().PlayerTransform()
	yaw := geom.EulerFromQuat(tr.Quaternion).Y
	if math.Abs(yaw-yawStep) > 1e-9 {
		t.Fatalf("yaw = %v, want %v", yaw, yawStep)
	}
	if math.Abs(a.World().CameraYaw()-yawStep) > 1e-9 {
		t.Fatalf("camera yaw = %v, want %v", a.World().CameraYaw(), yawStep)
	}
}

func TestConsoleCommandEditing(t *testing.T) {
	c, _, out := newTestConsole(t)

	c.handleKey(nil, ':')
	c.handleKey(nil, 'h')
	c.handleKey(nil, 'x')
	c.handleKey(nil, 127)
	for _, b := range []byte("elp") {
		c.handleKey(nil, b)
	}
	c.handleKey(nil, '\n')
	if !strings.Contains(out.String(), ":goto <x> <z>") {
		t.Fatalf("help not printed: %q", out.String())
	}

	c.handleKey(nil, ':')
	c.handleKey(nil, 27)
	if c.isCommandMode() {
		t.Fatal("ESC should leave command mode")
	}
	if !strings.Contains(out.String(), "command cancelled") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestNormalizeYaw(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		if got := normalizeYaw(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("normalizeYaw(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
