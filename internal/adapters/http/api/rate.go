package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// RateHandler serves map rating votes.
type RateHandler struct {
	deps Dependencies
}

// NewRateHandler creates a new rating handler.
func NewRateHandler(deps Dependencies) *RateHandler {
	return &RateHandler{deps: deps}
}

// HandleRate handles GET /web/osu-rate.php. Without a vote value the
// endpoint only confirms the map is ratable; with one it records the vote
// and returns the new average.
func (h *RateHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mapMD5 := q.Get("c")
	if len(mapMD5) != 32 {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: invalid map hash", ErrBadRequest))
		return
	}

	u, err := h.deps.Authenticate(r.Context(), q.Get("us"), q.Get("ha"))
	if err != nil {
		writePlain(w, "auth fail")
		return
	}

	rawVote := q.Get("v")
	if rawVote == "" {
		writePlain(w, "ok")
		return
	}

	vote, err := strconv.Atoi(rawVote)
	if err != nil || vote < 1 || vote > 10 {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: invalid vote", ErrBadRequest))
		return
	}

	avg, found, err := h.deps.MapRating(r.Context(), u.ID, mapMD5, vote)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if !found {
		writePlain(w, "no exist")
		return
	}

	writePlain(w, fmt.Sprintf("%.2f", avg))
}
