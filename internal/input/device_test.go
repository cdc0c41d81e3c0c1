package input

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/motor/internal/geom"
)

func TestNewDeviceCreatesDefaultKeys(t *testing.T) {
	d := NewDevice()
	for _, k := range DefaultKeys {
		b, ok := d.Button(k)
		require.True(t, ok, "key %s", k)
		assert.Equal(t, ButtonState{}, b)
	}
}

func TestSetKeyEdgesFireOncePerTransition(t *testing.T) {
	d := NewDevice()

	d.SetKey(KeyForward, true)
	b, _ := d.Button(KeyForward)
	assert.Equal(t, ButtonState{Down: true, Pressed: true}, b)

	d.ResetEdges()
	d.SetKey(KeyForward, true)
	b, _ = d.Button(KeyForward)
	assert.Equal(t, ButtonState{Down: true}, b, "holding must not re-raise pressed")

	d.SetKey(KeyForward, false)
	b, _ = d.Button(KeyForward)
	assert.Equal(t, ButtonState{Released: true}, b)

	d.ResetEdges()
	d.SetKey(KeyForward, false)
	b, _ = d.Button(KeyForward)
	assert.Equal(t, ButtonState{}, b)
}

func TestSetKeyPressAndReleaseInOneFrame(t *testing.T) {
	d := NewDevice()
	d.SetKey(KeyInteract, true)
	d.SetKey(KeyInteract, false)

	b, _ := d.Button(KeyInteract)
	assert.False(t, b.Down)
	assert.True(t, b.Pressed)
	assert.True(t, b.Released)
}

func TestSetKeyCreatesUnknownKey(t *testing.T) {
	d := NewDevice(KeyForward)
	_, ok := d.Button("keyP")
	require.False(t, ok)

	d.SetKey("keyP", true)
	b, ok := d.Button("keyP")
	require.True(t, ok)
	assert.True(t, b.Down)
	assert.Contains(t, d.Keys(), "keyP")
}

func TestResetEdgesKeepsDown(t *testing.T) {
	d := NewDevice()
	d.SetKey(KeySprint, true)
	d.MarkReleased(KeyCancel)
	d.ResetEdges()

	b, _ := d.Button(KeySprint)
	assert.Equal(t, ButtonState{Down: true}, b)
	b, _ = d.Button(KeyCancel)
	assert.Equal(t, ButtonState{}, b)
	assert.Equal(t, []string{KeySprint}, d.DownKeys())
}

func TestMarkEdgesDoNotChangeLevel(t *testing.T) {
	d := NewDevice()
	d.MarkPressed(KeyCancel)
	b, _ := d.Button(KeyCancel)
	assert.Equal(t, ButtonState{Pressed: true}, b)
}

func TestNilDeviceIsInert(t *testing.T) {
	var d *Device
	assert.NotPanics(t, func() {
		d.SetKey(KeyForward, true)
		d.ResetEdges()
		d.MarkPressed(KeyForward)
		d.MovePointer(1, 1)
	})
	assert.False(t, d.IsDown(KeyForward))
	assert.Nil(t, d.Snapshot())
}

func TestPointerDeltaClearedPerFrame(t *testing.T) {
	d := NewDevice()
	d.MovePointer(10, 5)
	d.MovePointer(12, 9)
	p := d.Pointer()
	assert.Equal(t, 12.0, p.X)
	assert.Equal(t, 12.0, p.DeltaX)
	assert.Equal(t, 9.0, p.DeltaY)

	d.ResetEdges()
	p = d.Pointer()
	assert.Zero(t, p.DeltaX)
	assert.Equal(t, 12.0, p.X)
}

func TestSetStickClamps(t *testing.T) {
	d := NewDevice()
	d.SetStick("left", 3, -0.5)
	s, ok := d.Stick("left")
	require.True(t, ok)
	assert.Equal(t, Stick{X: 1, Y: -0.5}, s)
}

func TestSetStickNonFiniteReadsZero(t *testing.T) {
	d := NewDevice()
	d.SetStick("right", math.NaN(), math.Inf(-1))
	s, ok := d.Stick("right")
	require.True(t, ok)
	assert.Equal(t, Stick{}, s)
}

func TestSetPointerLocked(t *testing.T) {
	d := NewDevice()
	d.SetPointerLocked(true)
	assert.True(t, d.Pointer().Locked)
	d.ResetEdges()
	assert.True(t, d.Pointer().Locked)
	d.SetPointerLocked(false)
	assert.False(t, d.Pointer().Locked)
}

func TestConcurrentSetKey(t *testing.T) {
	d := NewDevice()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.SetKey(KeyForward, (i+j)%2 == 0)
				d.ResetEdges()
			}
		}(i)
	}
	wg.Wait()
	_, ok := d.Button(KeyForward)
	assert.True(t, ok)
}

func TestCameraRigRotationAndQuaternionStayInSync(t *testing.T) {
	c := NewCameraRig()
	c.SetRotation(geom.Euler{X: 0.2, Y: 1.1})
	e := geom.EulerFromQuat(c.Quaternion())
	assert.InDelta(t, 0.2, e.X, 1e-9)
	assert.InDelta(t, 1.1, e.Y, 1e-9)

	c.SetQuaternion(geom.FaceDirection(geom.V3(-1, 0, 0)))
	assert.InDelta(t, math.Pi/2, c.Rotation().Y, 1e-9)

	c.SetYaw(0)
	assert.InDelta(t, 0, geom.EulerFromQuat(c.Quaternion()).Y, 1e-9)
}
