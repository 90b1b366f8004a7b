// Package mods defines the gameplay modifier bitmask.
package mods

import "strings"

// Mods is the client-side modifier bitmask attached to a score.
type Mods int32

const (
	NoMod       Mods = 0
	NoFail      Mods = 1 << 0
	Easy        Mods = 1 << 1
	TouchDevice Mods = 1 << 2
	Hidden      Mods = 1 << 3
	HardRock    Mods = 1 << 4
	SuddenDeath Mods = 1 << 5
	DoubleTime  Mods = 1 << 6
	Relax       Mods = 1 << 7
	HalfTime    Mods = 1 << 8
	Nightcore   Mods = 1 << 9
	Flashlight  Mods = 1 << 10
	Autoplay    Mods = 1 << 11
	SpunOut     Mods = 1 << 12
	Autopilot   Mods = 1 << 13
	Perfect     Mods = 1 << 14
	Key4        Mods = 1 << 15
	Key5        Mods = 1 << 16
	Key6        Mods = 1 << 17
	Key7        Mods = 1 << 18
	Key8        Mods = 1 << 19
	FadeIn      Mods = 1 << 20
	Random      Mods = 1 << 21
	Cinema      Mods = 1 << 22
	Target      Mods = 1 << 23
	Key9        Mods = 1 << 24
	KeyCoop     Mods = 1 << 25
	Key1        Mods = 1 << 26
	Key3        Mods = 1 << 27
	Key2        Mods = 1 << 28
	ScoreV2     Mods = 1 << 29
	Mirror      Mods = 1 << 30
)

// Has reports whether all bits of m2 are set.
func (m Mods) Has(m2 Mods) bool { return m&m2 == m2 }

var shortNames = []struct {
	mod  Mods
	name string
}{
	{NoFail, "NF"},
	{Easy, "EZ"},
	{TouchDevice, "TD"},
	{Hidden, "HD"},
	{HardRock, "HR"},
	{SuddenDeath, "SD"},
	{Nightcore, "NC"},
	{DoubleTime, "DT"},
	{Relax, "RX"},
	{HalfTime, "HT"},
	{Flashlight, "FL"},
	{Autoplay, "AU"},
	{SpunOut, "SO"},
	{Autopilot, "AP"},
	{Perfect, "PF"},
	{FadeIn, "FI"},
	{Random, "RN"},
	{Cinema, "CN"},
	{Target, "TP"},
	{ScoreV2, "V2"},
	{Mirror, "MR"},
}

// String renders the short mod acronyms, e.g. "HDDT". NoMod renders as "NM".
func (m Mods) String() string {
	if m == NoMod {
		return "NM"
	}

	var sb strings.Builder
	for _, entry := range shortNames {
		if !m.Has(entry.mod) {
			continue
		}
		// NC implies DT on the wire; show only NC.
		if entry.mod == DoubleTime && m.Has(Nightcore) {
			continue
		}
		sb.WriteString(entry.name)
	}
	return sb.String()
}
