package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
)

// leaderboardLimit caps the score rows returned to the client.
const leaderboardLimit = 50

// ScoresHandler serves the in-game leaderboard listing.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new leaderboard handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleGetScores handles GET /web/osu-osz2-getscores.php. Malformed
// query parameters surface as a structured 400; an unknown map answers
// with the client's not-submitted sentinel.
func (h *ScoresHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mapMD5 := q.Get("c")
	if len(mapMD5) != 32 {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: invalid map hash", ErrBadRequest))
		return
	}

	modeVal, err := strconv.Atoi(q.Get("m"))
	if err != nil || !mode.Mode(modeVal).Valid() {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: invalid mode", ErrBadRequest))
		return
	}
	m := mode.Mode(modeVal)

	u, err := h.deps.Authenticate(r.Context(), q.Get("us"), q.Get("ha"))
	if err != nil {
		writePlain(w, "error: pass")
		return
	}

	bm, lb, err := h.deps.Leaderboard(r.Context(), mapMD5, m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if bm == nil {
		writePlain(w, fmt.Sprintf("%d|false", int(beatmap.NotSubmitted)))
		return
	}
	if !bm.HasLeaderboard() {
		writePlain(w, fmt.Sprintf("%d|false", int(bm.Status)))
		return
	}

	rating, _, err := h.deps.MapRating(r.Context(), u.ID, mapMD5, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	visible := lb.Visible(leaderboardLimit)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|false|%d|%d|%d\n", int(bm.Status), bm.ID, bm.SetID, len(visible))
	fmt.Fprintf(&sb, "0\n%s\n%.1f\n", bm.FullName(), rating)

	if personal, rank, ok := lb.FindUserScore(u.ID); ok {
		sb.WriteString(personal.ChartLine(u.Name, rank))
	}
	sb.WriteString("\n")

	for i, sc := range visible {
		sb.WriteString(sc.ChartLine(sc.Username, i+1))
		sb.WriteString("\n")
	}

	writePlain(w, sb.String())
}
