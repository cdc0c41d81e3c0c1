package input

import (
	"sync"

	"github.com/Versifine/motor/internal/geom"
)

// CameraRig is a virtual camera whose Euler rotation and quaternion always
// describe the same orientation. Each setter converts explicitly; there are
// no change listeners.
type CameraRig struct {
	mu         sync.RWMutex
	position   geom.Vec3
	quaternion geom.Quat
	rotation   geom.Euler
}

func NewCameraRig() *CameraRig {
	return &CameraRig{quaternion: geom.Identity()}
}

func (c *CameraRig) Position() geom.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *CameraRig) SetPosition(p geom.Vec3) {
	c.mu.Lock()
	c.position = p
	c.mu.Unlock()
}

func (c *CameraRig) Quaternion() geom.Quat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quaternion
}

func (c *CameraRig) SetQuaternion(q geom.Quat) {
	q = q.Normalize()
	c.mu.Lock()
	c.quaternion = q
	c.rotation = geom.EulerFromQuat(q)
	c.mu.Unlock()
}

func (c *CameraRig) Rotation() geom.Euler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rotation
}

func (c *CameraRig) SetRotation(e geom.Euler) {
	c.mu.Lock()
	c.rotation = e
	c.quaternion = geom.QuatFromEuler(e)
	c.mu.Unlock()
}

// SetYaw replaces the Y rotation, keeping pitch and roll.
func (c *CameraRig) SetYaw(yaw float64) {
	c.mu.Lock()
	c.rotation.Y = yaw
	c.quaternion = geom.QuatFromEuler(c.rotation)
	c.mu.Unlock()
}
