// Package score defines the score entity, its status and grade
// enumerations, and the per-mode accuracy formulas.
package score

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/mods"
	"github.com/aisuru/score-server/internal/domain/user"
)

// Grade is the letter grade awarded to a score.
type Grade int

const (
	GradeN Grade = iota // no grade
	GradeF
	GradeD
	GradeC
	GradeB
	GradeA
	GradeS
	GradeSH // hidden S
	GradeX  // SS
	GradeXH // hidden SS
)

// GradeFromString parses the client's grade letter, case-insensitively.
func GradeFromString(s string) (Grade, error) {
	switch strings.ToLower(s) {
	case "xh":
		return GradeXH, nil
	case "x":
		return GradeX, nil
	case "sh":
		return GradeSH, nil
	case "s":
		return GradeS, nil
	case "a":
		return GradeA, nil
	case "b":
		return GradeB, nil
	case "c":
		return GradeC, nil
	case "d":
		return GradeD, nil
	case "f":
		return GradeF, nil
	case "n":
		return GradeN, nil
	default:
		return GradeN, fmt.Errorf("unknown grade %q", s)
	}
}

// Status reflects whether a score is the user's current top entry, a
// superseded entry, or not eligible for ranking.
type Status int

const (
	StatusNotSubmitted Status = 0
	StatusSubmitted    Status = 1
	StatusBest         Status = 2
)

// ClientFlags is the anti-cheat flag bitmask reported by the client.
type ClientFlags int32

// submissionFieldCount is the minimum decoded vector length after the
// beatmap hash and username have been stripped.
const submissionFieldCount = 16

// Score is a single gameplay submission. The user identity fields are
// denormalized at insert time and patched by privilege events afterwards.
type Score struct {
	ID     int64
	MapMD5 string

	UserID      int64
	Username    string
	UserPrivs   user.Privileges
	UserCountry string

	Mode mode.Mode
	Mods mods.Mods

	PP       float64
	Stars    float64
	Value    int64
	MaxCombo int
	Accuracy float64

	N300  int
	N100  int
	N50   int
	NMiss int
	NGeki int
	NKatu int

	Grade Grade

	Passed  bool
	Perfect bool
	Status  Status

	Time        time.Time
	TimeElapsed int

	ClientFlags    ClientFlags
	ClientChecksum string

	ReplayViews int

	// Rank is the leaderboard position computed after insertion.
	Rank int

	// OldBest is the user's previous best at submission time. Transient:
	// used only while building the submission response, never persisted.
	OldBest *Score
}

// FromSubmission builds a candidate score from the decoded field vector
// (beatmap hash and username already stripped) and the submitting user.
func FromSubmission(fields []string, mapMD5 string, u *user.User) (*Score, error) {
	if len(fields) < submissionFieldCount {
		return nil, fmt.Errorf("%w: got %d fields, want at least %d",
			ErrMalformedVector, len(fields), submissionFieldCount)
	}

	ints := make([]int64, 9)
	for i, idx := range []int{1, 2, 3, 4, 5, 6, 7, 8, 13} {
		n, err := strconv.ParseInt(fields[idx], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %w", ErrMalformedVector, idx, err)
		}
		ints[i] = n
	}
	n300, n100, n50, ngeki, nkatu, nmiss, value, combo, rawMode :=
		ints[0], ints[1], ints[2], ints[3], ints[4], ints[5], ints[6], ints[7], ints[8]

	modBits, err := strconv.ParseInt(fields[11], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: mods: %w", ErrMalformedVector, err)
	}
	m := mods.Mods(modBits)

	grade, err := GradeFromString(fields[10])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedVector, err)
	}

	sc := &Score{
		MapMD5:         mapMD5,
		UserID:         u.ID,
		Username:       u.Name,
		UserPrivs:      u.Privileges,
		UserCountry:    u.Country,
		Mode:           mode.FromSubmission(int(rawMode), m),
		Mods:           m,
		Value:          value,
		MaxCombo:       int(combo),
		N300:           int(n300),
		N100:           int(n100),
		N50:            int(n50),
		NMiss:          int(nmiss),
		NGeki:          int(ngeki),
		NKatu:          int(nkatu),
		Grade:          grade,
		Passed:         fields[12] == "True",
		Perfect:        fields[9] == "True",
		Status:         StatusNotSubmitted,
		Time:           time.Now(),
		ClientFlags:    ClientFlags(int32(strings.Count(fields[15], " ")) &^ 4),
		ClientChecksum: fields[0],
	}
	sc.Accuracy = sc.ComputeAccuracy()
	return sc, nil
}

// ComputeAccuracy evaluates the vanilla-mode accuracy percentage from the
// hit counts. Pure: repeated calls on fixed counts return identical values,
// and an all-zero denominator yields exactly 0.
func (s *Score) ComputeAccuracy() float64 {
	n300 := float64(s.N300)
	n100 := float64(s.N100)
	n50 := float64(s.N50)
	ngeki := float64(s.NGeki)
	nkatu := float64(s.NKatu)
	nmiss := float64(s.NMiss)

	switch s.Mode.Vanilla() {
	case mode.Standard:
		total := n300 + n100 + n50 + nmiss
		if total == 0 {
			return 0
		}
		return 100.0 * (n300*300.0 + n100*100.0 + n50*50.0) / (total * 300.0)

	case mode.Taiko:
		total := n300 + n100 + nmiss
		if total == 0 {
			return 0
		}
		return 100.0 * (n300 + n100*0.5) / total

	case mode.Catch:
		total := n300 + n100 + n50 + nkatu + nmiss
		if total == 0 {
			return 0
		}
		return 100.0 * (n300 + n100 + n50) / total

	case mode.Mania:
		total := n300 + n100 + n50 + ngeki + nkatu + nmiss
		if total == 0 {
			return 0
		}
		return 100.0 * ((n300+ngeki)*300.0 + nkatu*200.0 + n100*100.0 + n50*50.0) / (total * 300.0)

	default:
		return 0
	}
}

// ChartLine renders the score row for the in-game leaderboard listing.
// Rating-bearing modes display rounded pp in the score column.
func (s *Score) ChartLine(username string, rank int) string {
	value := s.Value
	if s.Mode.RewardsPerformance() {
		value = int64(s.PP)
	}

	return fmt.Sprintf("%d|%s|%d|%d|%d|%d|%d|%d|%d|%d|%s|%d|%d|%d|%d|1",
		s.ID, username, value, s.MaxCombo,
		s.N50, s.N100, s.N300, s.NMiss, s.NKatu, s.NGeki,
		pyBool(s.Perfect), int32(s.Mods), s.UserID, rank, s.Time.Unix())
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ToDoc serializes the score for the scores collection. OldBest and Rank
// are transient computation artifacts and are not persisted.
func (s *Score) ToDoc() map[string]any {
	return map[string]any{
		"id":              s.ID,
		"map_md5":         s.MapMD5,
		"user_id":         s.UserID,
		"mode":            int64(s.Mode),
		"mods":            int64(s.Mods),
		"pp":              s.PP,
		"score":           s.Value,
		"max_combo":       int64(s.MaxCombo),
		"acc":             s.Accuracy,
		"n300":            int64(s.N300),
		"n100":            int64(s.N100),
		"n50":             int64(s.N50),
		"nmiss":           int64(s.NMiss),
		"ngeki":           int64(s.NGeki),
		"nkatu":           int64(s.NKatu),
		"grade":           int64(s.Grade),
		"passed":          s.Passed,
		"perfect":         s.Perfect,
		"status":          int64(s.Status),
		"time":            s.Time.UTC().Format(time.RFC3339),
		"time_elapsed":    int64(s.TimeElapsed),
		"client_flags":    int64(s.ClientFlags),
		"client_checksum": s.ClientChecksum,
		"replay_views":    int64(s.ReplayViews),
	}
}

// FromDoc rebuilds a score from a scores collection document. The user
// identity fields must be joined from the users collection by the caller.
func FromDoc(doc map[string]any) (*Score, error) {
	md5, ok := doc["map_md5"].(string)
	if !ok || md5 == "" {
		return nil, fmt.Errorf("score document missing map_md5")
	}

	t, _ := time.Parse(time.RFC3339, asString(doc["time"]))

	return &Score{
		ID:             asInt64(doc["id"]),
		MapMD5:         md5,
		UserID:         asInt64(doc["user_id"]),
		Mode:           mode.Mode(asInt64(doc["mode"])),
		Mods:           mods.Mods(asInt64(doc["mods"])),
		PP:             asFloat(doc["pp"]),
		Value:          asInt64(doc["score"]),
		MaxCombo:       int(asInt64(doc["max_combo"])),
		Accuracy:       asFloat(doc["acc"]),
		N300:           int(asInt64(doc["n300"])),
		N100:           int(asInt64(doc["n100"])),
		N50:            int(asInt64(doc["n50"])),
		NMiss:          int(asInt64(doc["nmiss"])),
		NGeki:          int(asInt64(doc["ngeki"])),
		NKatu:          int(asInt64(doc["nkatu"])),
		Grade:          Grade(asInt64(doc["grade"])),
		Passed:         asBool(doc["passed"]),
		Perfect:        asBool(doc["perfect"]),
		Status:         Status(asInt64(doc["status"])),
		Time:           t,
		TimeElapsed:    int(asInt64(doc["time_elapsed"])),
		ClientFlags:    ClientFlags(asInt64(doc["client_flags"])),
		ClientChecksum: asString(doc["client_checksum"]),
		ReplayViews:    int(asInt64(doc["replay_views"])),
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
