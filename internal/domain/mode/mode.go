// Package mode defines the gameplay mode enumeration, covering the four
// vanilla modes plus their modifier-shifted variants.
package mode

import (
	"strconv"

	"github.com/aisuru/score-server/internal/domain/mods"
)

// Mode identifies a ranking mode. Variants above Mania rank separately
// from their vanilla counterparts but share scoring formulas.
type Mode int

const (
	Standard Mode = iota
	Taiko
	Catch
	Mania

	StandardRelax
	TaikoRelax
	CatchRelax
	StandardAutopilot
)

var names = [...]string{
	"osu!std",
	"osu!taiko",
	"osu!catch",
	"osu!mania",
	"std!rx",
	"taiko!rx",
	"catch!rx",
	"std!ap",
}

func (m Mode) String() string {
	if m < Standard || int(m) >= len(names) {
		return "unknown"
	}
	return names[m]
}

// Vanilla collapses a variant mode back to its base gameplay mode.
func (m Mode) Vanilla() Mode {
	switch m {
	case StandardRelax, StandardAutopilot:
		return Standard
	case TaikoRelax:
		return Taiko
	case CatchRelax:
		return Catch
	default:
		return m
	}
}

// RewardsPerformance reports whether the mode ranks scores by performance
// rating rather than raw score value.
func (m Mode) RewardsPerformance() bool { return m > Mania }

// IndexName is the mode component of rank index board keys.
func (m Mode) IndexName() string { return strconv.Itoa(int(m)) }

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m >= Standard && m <= StandardAutopilot }

// FromSubmission derives the ranking mode from the client's raw mode value
// and the score's modifier bitmask. Relax shifts std/taiko/catch into their
// relax variants; mania has no relax variant. Autopilot exists only for std,
// any other mode falls back to plain std.
func FromSubmission(raw int, m mods.Mods) Mode {
	if m.Has(mods.Relax) {
		if raw == int(Mania) {
			return Mania
		}
		return Mode(raw) + 4
	}
	if m.Has(mods.Autopilot) {
		if raw != int(Standard) {
			return Standard
		}
		return StandardAutopilot
	}
	return Mode(raw)
}
