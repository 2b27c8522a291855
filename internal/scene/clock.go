package scene

import (
	"sync"
	"time"
)

// Clock is the scene's simulated clock. While enabled it advances at
// multiplier times wall-clock speed; while paused Now stays frozen.
type Clock struct {
	mu         sync.RWMutex
	wall       func() time.Time
	anchorWall time.Time
	anchorSim  time.Time
	enabled    bool
	multiplier float64
}

// NewClock starts an enabled clock at real time with multiplier 1.
func NewClock(wall func() time.Time) *Clock {
	if wall == nil {
		wall = time.Now
	}
	now := wall()
	return &Clock{
		wall:       wall,
		anchorWall: now,
		anchorSim:  now,
		enabled:    true,
		multiplier: 1,
	}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowLocked(c.wall())
}

func (c *Clock) nowLocked(wall time.Time) time.Time {
	if !c.enabled {
		return c.anchorSim
	}
	elapsed := float64(wall.Sub(c.anchorWall)) * c.multiplier
	return c.anchorSim.Add(time.Duration(elapsed))
}

// Set changes the enable flag and rate. Simulated time is continuous across
// the change. A non-positive multiplier keeps the current rate.
func (c *Clock) Set(enabled bool, multiplier float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.wall()
	c.anchorSim = c.nowLocked(wall)
	c.anchorWall = wall
	c.enabled = enabled
	if multiplier > 0 {
		c.multiplier = multiplier
	}
}

// State returns the enable flag and multiplier.
func (c *Clock) State() (bool, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled, c.multiplier
}
