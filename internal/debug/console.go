package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/Versifine/motor/internal/agent"
	"github.com/Versifine/motor/internal/geom"
	"github.com/Versifine/motor/internal/input"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	defaultMovePulse    = 180 * time.Millisecond
	yawStep             = 5.0 * math.Pi / 180
)

// AgentSource returns the agent commands apply to, or nil when no session is
// live.
type AgentSource func() *agent.Agent

// Console drives an agent from a raw terminal: WASD pulse the movement keys,
// ':' enters command mode for intents.
type Console struct {
	source       AgentSource
	out          io.Writer
	tickInterval time.Duration
	movePulse    time.Duration

	mu          sync.Mutex
	pulses      map[string]time.Time
	commandMode bool
	commandBuf  []rune
	statusWidth int
}

func NewConsole(source AgentSource, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		source:       source,
		out:          out,
		tickInterval: defaultTickInterval,
		movePulse:    defaultMovePulse,
		pulses:       make(map[string]time.Time),
	}
}

func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	if c.source == nil {
		return fmt.Errorf("console agent source is nil")
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		c.printf("\r\n")
	}()

	c.printf("[debug] console started (W/A/S/D pulse, Space jump, ] sprint, arrows turn, X clear, : command)\r\n")
	c.renderStatusLine()

	go c.tickLoop(ctx)

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		}
		c.handleKey(reader, b)
	}
}

func (c *Console) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.expirePulses(now)
			c.renderStatusLine()
		}
	}
}

func (c *Console) handleKey(reader *bufio.Reader, b byte) {
	if c.isCommandMode() {
		c.handleCommandByte(b)
		return
	}

	switch b {
	case ':':
		c.enterCommandMode()
		return
	case 'w', 'W':
		c.pulse(input.KeyForward, input.KeyBackward)
	case 's', 'S':
		c.pulse(input.KeyBackward, input.KeyForward)
	case 'a', 'A':
		c.pulse(input.KeyLeft, input.KeyRight)
	case 'd', 'D':
		c.pulse(input.KeyRight, input.KeyLeft)
	case ' ':
		c.toggleKey(input.KeyJump)
	case ']':
		c.toggleKey(input.KeySprint)
	case 'x', 'X':
		c.clearInput()
	case 27: // ESC + arrow sequence
		next, err := reader.ReadByte()
		if err != nil || next != '[' {
			return
		}
		arrow, err := reader.ReadByte()
		if err != nil {
			return
		}
		switch arrow {
		case 'D': // left
			c.turn(yawStep)
		case 'C': // right
			c.turn(-yawStep)
		}
	}
	c.renderStatusLine()
}

func (c *Console) enterCommandMode() {
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	c.printf("\r\n:")
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		c.printf("\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
		return
	case 27: // ESC cancel command mode
		c.mu.Lock()
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()
		c.printf("\r\n[debug] command cancelled\r\n")
		c.renderStatusLine()
		return
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s ", buf)
		c.printf("\r:%s", buf)
		return
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}
	if parts[0] == "help" {
		c.printHelp()
		return
	}

	a := c.source()
	if a == nil {
		c.printf("[debug] no agent session\r\n")
		return
	}

	switch parts[0] {
	case "goto":
		if len(parts) != 3 {
			c.printf("[debug] usage: :goto <x> <z>\r\n")
			return
		}
		x, err1 := strconv.ParseFloat(parts[1], 64)
		z, err2 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil {
			c.printf("[debug] invalid goto args\r\n")
			return
		}
		c.do(a, agent.Intent{Action: agent.IntentGoto, Params: map[string]any{"x": x, "z": z}})
	case "wander":
		params := map[string]any{}
		if len(parts) == 2 {
			secs, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				c.printf("[debug] invalid wander duration\r\n")
				return
			}
			params["duration_ms"] = int(secs * 1000)
		}
		c.do(a, agent.Intent{Action: agent.IntentWander, Params: params})
	case "stop":
		c.do(a, agent.Intent{Action: agent.IntentStop})
	case "act":
		params := map[string]any{}
		if len(parts) == 2 {
			params["entity_id"] = parts[1]
		}
		c.do(a, agent.Intent{Action: agent.IntentPerform, Params: params})
	case "release":
		c.do(a, agent.Intent{Action: agent.IntentRelease})
	case "nearby":
		radius := 0.0
		if len(parts) == 2 {
			r, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				c.printf("[debug] invalid radius\r\n")
				return
			}
			radius = r
		}
		nodes := a.NearbyNodes(radius)
		if len(nodes) == 0 {
			c.printf("[debug] no action nodes nearby\r\n")
			return
		}
		for _, n := range nodes {
			p := n.Position()
			c.printf("[debug] node %s at (%.2f, %.2f, %.2f)\r\n", n.EntityID(), p.X, p.Y, p.Z)
		}
	case "keys":
		c.printf("[debug] down: %s\r\n", strings.Join(a.Device().DownKeys(), " "))
	case "state":
		c.printf("[debug] %s\r\n", a.World().GetState().String())
	default:
		c.printf("[debug] unknown command: %s\r\n", parts[0])
	}
}

func (c *Console) do(a *agent.Agent, intent agent.Intent) {
	result, err := a.Do(intent)
	if err != nil {
		c.printf("[debug] %s failed: %v\r\n", intent.Action, err)
		return
	}
	c.printf("[debug] %s\r\n", result)
}

func (c *Console) printHelp() {
	c.printf("[debug] keys:\r\n")
	c.printf("  W/S/A/D: pulse movement (~180ms)\r\n")
	c.printf("  Space: toggle jump\r\n")
	c.printf("  ]: toggle sprint\r\n")
	c.printf("  Arrow Left/Right: turn +/-5 deg\r\n")
	c.printf("  X: clear all input\r\n")
	c.printf("  : enter command mode\r\n")
	c.printf("[debug] commands:\r\n")
	c.printf("  :goto <x> <z>\r\n")
	c.printf("  :wander [seconds]\r\n")
	c.printf("  :stop\r\n")
	c.printf("  :act [entity_id]\r\n")
	c.printf("  :release\r\n")
	c.printf("  :nearby [radius]\r\n")
	c.printf("  :keys\r\n")
	c.printf("  :state\r\n")
	c.printf("  :help\r\n")
}

func (c *Console) renderStatusLine() {
	c.mu.Lock()
	if c.commandMode {
		c.mu.Unlock()
		return
	}
	width := c.statusWidth
	c.mu.Unlock()

	a := c.source()
	if a == nil {
		return
	}
	st := a.Status()
	var pos geom.Vec3
	if tr, ok := a.World().PlayerTransform(); ok {
		pos = tr.Position
	}
	target := "-"
	if st.TargetX != nil {
		target = fmt.Sprintf("%.1f,%.1f", *st.TargetX, *st.TargetZ)
	}

	line := fmt.Sprintf(
		"[NAV:%s WANDER:%s TGT:%s | ACT:%s %s | X:%.2f Z:%.2f | keys:%s]",
		boolLabel(st.Navigating),
		boolLabel(st.Wandering),
		target,
		st.Action,
		st.ActionNode,
		pos.X,
		pos.Z,
		strings.Join(st.DownKeys, ","),
	)

	padding := ""
	if width > len(line) {
		padding = strings.Repeat(" ", width-len(line))
	}
	c.printf("\r%s%s", line, padding)

	c.mu.Lock()
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
	c.mu.Unlock()
}

// pulse holds key for one move pulse and drops its opposite.
func (c *Console) pulse(key, opposite string) {
	a := c.source()
	if a == nil {
		return
	}
	c.mu.Lock()
	c.pulses[key] = time.Now().Add(c.movePulse)
	delete(c.pulses, opposite)
	c.mu.Unlock()

	a.Device().SetKey(opposite, false)
	a.Device().SetKey(key, true)
}

func (c *Console) expirePulses(now time.Time) {
	c.mu.Lock()
	var expired []string
	for key, until := range c.pulses {
		if !now.Before(until) {
			expired = append(expired, key)
			delete(c.pulses, key)
		}
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	a := c.source()
	if a == nil {
		return
	}
	for _, key := range expired {
		a.Device().SetKey(key, false)
	}
}

func (c *Console) toggleKey(key string) {
	a := c.source()
	if a == nil {
		return
	}
	down := !a.Device().IsDown(key)
	a.Device().SetKey(key, down)
	slog.Debug("debug key toggled", "key", key, "down", down)
}

// turn rotates the player about the vertical axis by delta radians.
func (c *Console) turn(delta float64) {
	a := c.source()
	if a == nil {
		return
	}
	ws := a.World()
	tr, ok := ws.PlayerTransform()
	if !ok {
		return
	}
	e := geom.EulerFromQuat(tr.Quaternion)
	e.Y = normalizeYaw(e.Y + delta)
	ws.SetPlayerQuaternion(geom.QuatFromEuler(e))
	ws.SetCameraYaw(e.Y)
}

func (c *Console) clearInput() {
	c.mu.Lock()
	c.pulses = make(map[string]time.Time)
	c.mu.Unlock()

	a := c.source()
	if a == nil {
		return
	}
	for _, key := range a.Device().DownKeys() {
		a.Device().SetKey(key, false)
	}
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func boolLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func normalizeYaw(yaw float64) float64 {
	for yaw <= -math.Pi {
		yaw += 2 * math.Pi
	}
	for yaw > math.Pi {
		yaw -= 2 * math.Pi
	}
	return yaw
}
