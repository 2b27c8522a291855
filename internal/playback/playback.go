// Package playback holds the play/pause flag and speed multiplier of the
// scene clock.
package playback

import (
	"log/slog"
	"strconv"
	"sync"
)

// DefaultSpeeds are the clock multipliers cycled by the speed control.
var DefaultSpeeds = []float64{1, 10, 50, 100}

// Clock is the simulated clock the controller drives.
type Clock interface {
	SetClock(enabled bool, multiplier float64)
}

// State is what the playback controls display.
type State struct {
	Playing    bool    `json:"playing"`
	Speed      float64 `json:"speed"`
	SpeedLabel string  `json:"speed_label"` // e.g. "10x"
	Icon       string  `json:"icon"`        // "pause" while playing, "play" while paused
}

// Controller is safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	clock      Clock
	speeds     []float64
	speedIndex int
	playing    bool
	logger     *slog.Logger
}

// New creates a playing controller at the first speed and applies that state
// to clock. An empty speeds list means DefaultSpeeds.
func New(clock Clock, speeds []float64, logger *slog.Logger) *Controller {
	if len(speeds) == 0 {
		speeds = DefaultSpeeds
	}
	c := &Controller{
		clock:   clock,
		speeds:  append([]float64(nil), speeds...),
		playing: true,
		logger:  logger,
	}
	c.clock.SetClock(c.playing, c.speeds[0])
	return c
}

// TogglePlay flips play/pause. The multiplier is unchanged.
func (c *Controller) TogglePlay() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playing = !c.playing
	c.clock.SetClock(c.playing, c.speeds[c.speedIndex])
	c.logger.Debug("playback toggled", "playing", c.playing)
	return c.stateLocked()
}

// CycleSpeed advances to the next multiplier, wrapping after the last. The
// play/pause flag is unchanged.
func (c *Controller) CycleSpeed() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.speedIndex = (c.speedIndex + 1) % len(c.speeds)
	c.clock.SetClock(c.playing, c.speeds[c.speedIndex])
	c.logger.Debug("playback speed changed", "multiplier", c.speeds[c.speedIndex])
	return c.stateLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	speed := c.speeds[c.speedIndex]
	icon := "play"
	if c.playing {
		icon = "pause"
	}
	return State{
		Playing:    c.playing,
		Speed:      speed,
		SpeedLabel: strconv.FormatFloat(speed, 'f', -1, 64) + "x",
		Icon:       icon,
	}
}
