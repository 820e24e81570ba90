package drone

import (
	"fmt"
	"math"
	"time"
)

// Config holds the per-instance tuning of a drone. It is immutable once the
// drone has spawned.
type Config struct {
	// HoverOffset is the vertical distance kept above the owner's body.
	HoverOffset float64
	// MaxRange bounds target detection.
	MaxRange float64
	// EffectDuration is how long the attack beam stays visible; the
	// destructive resolution fires when it elapses.
	EffectDuration time.Duration
	// EffectSegments is the number of segments in the attack beam.
	EffectSegments int
	// JitterMagnitude bounds the random offset applied to each interior beam
	// point.
	JitterMagnitude float64
	// FireInterval is the minimum time between engagement starts.
	FireInterval time.Duration
	// MaxTiltRadians clamps the banking pitch and roll.
	MaxTiltRadians float64
}

// DefaultConfig returns the documented default tuning used when a spawn
// request carries no configuration.
func DefaultConfig() Config {
	return Config{
		HoverOffset:     6,
		MaxRange:        30,
		EffectDuration:  300 * time.Millisecond,
		EffectSegments:  20,
		JitterMagnitude: 2,
		FireInterval:    time.Second,
		MaxTiltRadians:  20 * math.Pi / 180,
	}
}

// Validate rejects configurations with negative fields or a tilt limit at or
// beyond a quarter turn.
func (c Config) Validate() error {
	if c.HoverOffset < 0 {
		return fmt.Errorf("drone: hover offset %v is negative", c.HoverOffset)
	}
	if c.MaxRange < 0 {
		return fmt.Errorf("drone: max range %v is negative", c.MaxRange)
	}
	if c.EffectDuration < 0 {
		return fmt.Errorf("drone: effect duration %v is negative", c.EffectDuration)
	}
	if c.EffectSegments < 0 {
		return fmt.Errorf("drone: effect segments %d is negative", c.EffectSegments)
	}
	if c.JitterMagnitude < 0 {
		return fmt.Errorf("drone: jitter magnitude %v is negative", c.JitterMagnitude)
	}
	if c.FireInterval < 0 {
		return fmt.Errorf("drone: fire interval %v is negative", c.FireInterval)
	}
	if c.MaxTiltRadians < 0 {
		return fmt.Errorf("drone: max tilt %v is negative", c.MaxTiltRadians)
	}
	if c.MaxTiltRadians >= math.Pi/2 {
		return fmt.Errorf("drone: max tilt %v must stay below a quarter turn", c.MaxTiltRadians)
	}
	return nil
}
