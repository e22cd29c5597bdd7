package sched

import (
	"time"

	"github.com/HerbHall/naspulse/internal/source"
)

// Policy holds the adaptive interval knobs. All values come from config;
// DefaultPolicy documents the shipped defaults.
type Policy struct {
	// BackoffMultiplier grows the interval after each failed poll.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	// AccelFactor (< 1) shrinks the interval after a successful poll.
	AccelFactor float64 `mapstructure:"accel_factor"`
	// IdleFactor scales every interval while nobody observes the display.
	IdleFactor float64 `mapstructure:"idle_factor"`
}

// DefaultPolicy returns the shipped interval policy.
func DefaultPolicy() Policy {
	return Policy{
		BackoffMultiplier: 2.0,
		AccelFactor:       0.75,
		IdleFactor:        4.0,
	}
}

// next computes the interval after one poll outcome.
//
// Success decays the interval toward the definition's min when the source is
// the active one, and settles it back toward base otherwise. Failure grows it
// multiplicatively, capped at max. The idle scaling is applied separately at
// scheduling time so that it reverses the moment observation resumes.
func (p Policy) next(cur time.Duration, def source.Definition, success, active bool) time.Duration {
	if cur <= 0 {
		cur = def.BaseInterval
	}

	if !success {
		grown := time.Duration(float64(cur) * p.BackoffMultiplier)
		if grown > def.MaxInterval {
			grown = def.MaxInterval
		}
		return grown
	}

	if active {
		shrunk := time.Duration(float64(cur) * p.AccelFactor)
		if shrunk < def.MinInterval {
			shrunk = def.MinInterval
		}
		return shrunk
	}

	// Inactive: move toward base from either direction.
	if cur > def.BaseInterval {
		decayed := time.Duration(float64(cur) * p.AccelFactor)
		if decayed < def.BaseInterval {
			decayed = def.BaseInterval
		}
		return decayed
	}
	if cur < def.BaseInterval {
		relaxed := time.Duration(float64(cur) / p.AccelFactor)
		if relaxed > def.BaseInterval {
			relaxed = def.BaseInterval
		}
		return relaxed
	}
	return cur
}

// effective applies the idle scaling to an interval, bounded by the
// definition's max.
func (p Policy) effective(interval time.Duration, def source.Definition, observed bool) time.Duration {
	if observed {
		return interval
	}
	scaled := time.Duration(float64(interval) * p.IdleFactor)
	if scaled > def.MaxInterval {
		scaled = def.MaxInterval
	}
	return scaled
}
