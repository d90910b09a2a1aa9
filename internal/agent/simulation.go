package agent

import (
	"fmt"
	"math"
	"math/rand"

	"seekers/internal/model"
)

type SpawnMode string

const (
	SpawnFixed  SpawnMode = "fixed"
	SpawnRandom SpawnMode = "random"
)

// SpawnPolicy decides where a freshly created agent starts. Point is only
// read in fixed mode.
type SpawnPolicy struct {
	Mode  SpawnMode  `json:"mode" yaml:"mode"`
	Point model.Vec2 `json:"point" yaml:"point"`
}

// SimulationConfig carries everything an agent needs to know about the world
// it moves in.
type SimulationConfig struct {
	Bounds model.Size  `json:"bounds" yaml:"bounds"`
	Body   model.Size  `json:"body" yaml:"body"`
	Target model.Vec2  `json:"target" yaml:"target"`
	Speed  float64     `json:"speed" yaml:"speed"`
	Spawn  SpawnPolicy `json:"spawn" yaml:"spawn"`
}

func (c SimulationConfig) Validate() error {
	if !finite(c.Bounds.Width, c.Bounds.Height, c.Body.Width, c.Body.Height) {
		return fmt.Errorf("bounds and body must be finite: %gx%g, %gx%g", c.Bounds.Width, c.Bounds.Height, c.Body.Width, c.Body.Height)
	}
	if !finite(c.Target.X, c.Target.Y) {
		return fmt.Errorf("target must be finite: (%g,%g)", c.Target.X, c.Target.Y)
	}
	if !finite(c.Speed) {
		return fmt.Errorf("speed must be finite: %g", c.Speed)
	}
	if c.Bounds.Width <= 0 || c.Bounds.Height <= 0 {
		return fmt.Errorf("bounds must be > 0: %gx%g", c.Bounds.Width, c.Bounds.Height)
	}
	if c.Body.Width < 0 || c.Body.Height < 0 {
		return fmt.Errorf("body size must be >= 0: %gx%g", c.Body.Width, c.Body.Height)
	}
	if c.Body.Width > c.Bounds.Width || c.Body.Height > c.Bounds.Height {
		return fmt.Errorf("body %gx%g does not fit bounds %gx%g", c.Body.Width, c.Body.Height, c.Bounds.Width, c.Bounds.Height)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be > 0: %g", c.Speed)
	}
	switch c.Spawn.Mode {
	case SpawnFixed:
		maxX, maxY := c.maxPosition()
		p := c.Spawn.Point
		if !finite(p.X, p.Y) || p.X < 0 || p.X > maxX || p.Y < 0 || p.Y > maxY {
			return fmt.Errorf("fixed spawn point (%g,%g) outside [0,%g]x[0,%g]", p.X, p.Y, maxX, maxY)
		}
	case SpawnRandom:
	default:
		return fmt.Errorf("unsupported spawn mode: %q", c.Spawn.Mode)
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (c SimulationConfig) maxPosition() (float64, float64) {
	return c.Bounds.Width - c.Body.Width, c.Bounds.Height - c.Body.Height
}

// Clamp truncates p to the area an agent body can occupy.
func (c SimulationConfig) Clamp(p model.Vec2) model.Vec2 {
	maxX, maxY := c.maxPosition()
	if p.X < 0 {
		p.X = 0
	} else if p.X > maxX {
		p.X = maxX
	}
	if p.Y < 0 {
		p.Y = 0
	} else if p.Y > maxY {
		p.Y = maxY
	}
	return p
}

func (c SimulationConfig) spawnPosition(rng *rand.Rand) model.Vec2 {
	if c.Spawn.Mode == SpawnRandom {
		maxX, maxY := c.maxPosition()
		return model.Vec2{X: rng.Float64() * maxX, Y: rng.Float64() * maxY}
	}
	return c.Spawn.Point
}
