// Package user holds the authenticated user snapshot consumed by the
// submission pipeline and leaderboard joins.
package user

import (
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/mods"
)

// Privileges is the account privilege bitmask.
type Privileges int32

const (
	Banned      Privileges = 1 << 0
	Restricted  Privileges = 1 << 1
	Verified    Privileges = 1 << 2
	Supporter   Privileges = 1 << 3
	Moderator   Privileges = 1 << 4
	Admin       Privileges = 1 << 5
	Developer   Privileges = 1 << 6
	Whitelisted Privileges = 1 << 7

	// Disallowed members never appear on public leaderboards.
	Disallowed = Banned | Restricted
)

// Has reports whether all bits of p2 are set.
func (p Privileges) Has(p2 Privileges) bool { return p&p2 == p2 }

// Status is the user's live client presence.
type Status struct {
	Action   int       `json:"action"`
	InfoText string    `json:"info_text"`
	MapMD5   string    `json:"map_md5"`
	Mods     mods.Mods `json:"mods"`
	Mode     mode.Mode `json:"mode"`
	MapID    int64     `json:"map_id"`
}

// User is the identity snapshot returned by the auth service. Fields are
// denormalized onto scores at insert time.
type User struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Privileges Privileges `json:"privileges"`
	Country    string     `json:"country"`
	Status     Status     `json:"status"`
}
