// Package beatmap defines the beatmap entity and its ranked status
// enumeration with the external status-code conversion tables.
package beatmap

import (
	"fmt"
	"time"

	"github.com/aisuru/score-server/internal/domain/mode"
)

// RankedStatus is the canonical ranked state of a beatmap.
type RankedStatus int

const (
	NotSubmitted    RankedStatus = -1
	Pending         RankedStatus = 0
	UpdateAvailable RankedStatus = 1
	Ranked          RankedStatus = 2
	Approved        RankedStatus = 3
	Qualified       RankedStatus = 4
	Loved           RankedStatus = 5
)

// StatusFromOsuAPI translates the metadata API's "approved" code. Unknown
// codes map to UpdateAvailable so stale clients re-fetch the map.
func StatusFromOsuAPI(code int) RankedStatus {
	switch code {
	case -2, -1, 0: // graveyard, wip, pending
		return Pending
	case 1:
		return Ranked
	case 2:
		return Approved
	case 3:
		return Qualified
	case 4:
		return Loved
	default:
		return UpdateAvailable
	}
}

// StatusFromDirect translates the mirror/direct search status code.
func StatusFromDirect(code int) RankedStatus {
	switch code {
	case 0, 7: // ranked, played before
		return Ranked
	case 2, 5: // pending, graveyard
		return Pending
	case 3:
		return Qualified
	case 8:
		return Loved
	default:
		return UpdateAvailable
	}
}

// Frozen reports whether maps with this status must never be replaced by a
// lower-confidence re-fetch.
func (s RankedStatus) Frozen() bool {
	return s == Ranked || s == Approved || s == Loved
}

// Beatmap is a single playable difficulty, identified by its content hash.
type Beatmap struct {
	MD5   string
	ID    int64
	SetID int64

	Artist  string
	Title   string
	Version string
	Creator string

	TotalLength int

	Status RankedStatus

	Plays  int64
	Passes int64
	Mode   mode.Mode

	CS   float64
	OD   float64
	AR   float64
	HP   float64
	Diff float64

	LastUpdate time.Time

	MaxCombo int
	BPM      float64
	Filename string
	Frozen   bool

	// Rating caches the average player rating; nil until first computed.
	Rating *float64
}

// FullName renders the conventional "Artist - Title [Version]" form.
func (b *Beatmap) FullName() string {
	return fmt.Sprintf("%s - %s [%s]", b.Artist, b.Title, b.Version)
}

// URL returns the public beatmap page for the given server domain.
func (b *Beatmap) URL(domain string) string {
	return fmt.Sprintf("https://osu.%s/beatmaps/%d", domain, b.ID)
}

// SetURL returns the public beatmap set page for the given server domain.
func (b *Beatmap) SetURL(domain string) string {
	return fmt.Sprintf("https://osu.%s/beatmapsets/%d", domain, b.SetID)
}

// Embed renders a chat-embed link for announcements.
func (b *Beatmap) Embed(domain string) string {
	return fmt.Sprintf("[%s %s]", b.URL(domain), b.FullName())
}

// GivesPerformance reports whether scores on this map award performance
// rating toward player stats.
func (b *Beatmap) GivesPerformance() bool {
	return b.Status == Ranked || b.Status == Approved
}

// HasLeaderboard reports whether the map carries a public leaderboard.
func (b *Beatmap) HasLeaderboard() bool {
	return b.Status >= Ranked
}

// ToDoc serializes the beatmap for the maps collection. The cached rating
// is transient and deliberately not persisted.
func (b *Beatmap) ToDoc() map[string]any {
	return map[string]any{
		"md5":          b.MD5,
		"id":           b.ID,
		"set_id":       b.SetID,
		"artist":       b.Artist,
		"title":        b.Title,
		"version":      b.Version,
		"creator":      b.Creator,
		"total_length": int64(b.TotalLength),
		"status":       int64(b.Status),
		"plays":        b.Plays,
		"passes":       b.Passes,
		"mode":         int64(b.Mode),
		"cs":           b.CS,
		"od":           b.OD,
		"ar":           b.AR,
		"hp":           b.HP,
		"diff":         b.Diff,
		"last_update":  b.LastUpdate.UTC().Format(time.RFC3339),
		"max_combo":    int64(b.MaxCombo),
		"bpm":          b.BPM,
		"filename":     b.Filename,
		"frozen":       b.Frozen,
	}
}

// FromDoc rebuilds a beatmap from a maps collection document.
func FromDoc(doc map[string]any) (*Beatmap, error) {
	md5, ok := doc["md5"].(string)
	if !ok || md5 == "" {
		return nil, fmt.Errorf("beatmap document missing md5")
	}

	lastUpdate, _ := time.Parse(time.RFC3339, asString(doc["last_update"]))

	return &Beatmap{
		MD5:         md5,
		ID:          asInt64(doc["id"]),
		SetID:       asInt64(doc["set_id"]),
		Artist:      asString(doc["artist"]),
		Title:       asString(doc["title"]),
		Version:     asString(doc["version"]),
		Creator:     asString(doc["creator"]),
		TotalLength: int(asInt64(doc["total_length"])),
		Status:      RankedStatus(asInt64(doc["status"])),
		Plays:       asInt64(doc["plays"]),
		Passes:      asInt64(doc["passes"]),
		Mode:        mode.Mode(asInt64(doc["mode"])),
		CS:          asFloat(doc["cs"]),
		OD:          asFloat(doc["od"]),
		AR:          asFloat(doc["ar"]),
		HP:          asFloat(doc["hp"]),
		Diff:        asFloat(doc["diff"]),
		LastUpdate:  lastUpdate,
		MaxCombo:    int(asInt64(doc["max_combo"])),
		BPM:         asFloat(doc["bpm"]),
		Filename:    asString(doc["filename"]),
		Frozen:      asBool(doc["frozen"]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
