package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aisuru/score-server/internal/submission"
)

// ReplayHandler serves stored replay files.
type ReplayHandler struct {
	deps Dependencies
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(deps Dependencies) *ReplayHandler {
	return &ReplayHandler{deps: deps}
}

// HandleGetReplay handles GET /web/osu-getreplay.php. The response is the
// raw replay payload; watching another player's replay counts as a view.
func (h *ReplayHandler) HandleGetReplay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scoreID, err := strconv.ParseInt(q.Get("c"), 10, 64)
	if err != nil || scoreID <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: invalid score id", ErrBadRequest))
		return
	}

	u, err := h.deps.Authenticate(r.Context(), q.Get("u"), q.Get("h"))
	if err != nil {
		writePlain(w, "error: pass")
		return
	}

	data, err := h.deps.Replay(r.Context(), u.ID, scoreID)
	if err != nil {
		if errors.Is(err, submission.ErrUnknownScore) {
			writePlain(w, "error: no")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
