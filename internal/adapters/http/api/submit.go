package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aisuru/score-server/internal/submission"
)

// maxSubmitBytes bounds the multipart submission body, replay included.
const maxSubmitBytes = 16 << 20

// SubmitHandler handles score submissions.
type SubmitHandler struct {
	deps Dependencies
}

// NewSubmitHandler creates a new submission handler.
func NewSubmitHandler(deps Dependencies) *SubmitHandler {
	return &SubmitHandler{deps: deps}
}

// HandleSubmit handles POST /web/osu-submit-modular-selector.php. The
// client expects a 200 for every outcome it can parse: failures map to
// "error:" sentinels, not-logged-in and undecodable payloads answer with
// an empty body.
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	if err := r.ParseMultipartForm(maxSubmitBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	req := submission.Request{
		Payload:     []byte(r.FormValue("score")),
		IV:          []byte(r.FormValue("iv")),
		OsuVersion:  r.FormValue("osuver"),
		PasswordMD5: r.FormValue("pass"),
		ExitedOut:   r.FormValue("x") == "1",
	}
	req.FailTime, _ = strconv.Atoi(r.FormValue("ft"))
	req.ScoreTime, _ = strconv.Atoi(r.FormValue("st"))

	// The replay rides the same multipart field name as the score data.
	if file, _, err := r.FormFile("score"); err == nil {
		req.Replay, _ = io.ReadAll(io.LimitReader(file, maxSubmitBytes))
		_ = file.Close()
	}

	body, err := h.deps.SubmitScore(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrNotLoggedIn),
			errors.Is(err, submission.ErrMalformedPayload):
			writePlain(w, "")
		case errors.Is(err, submission.ErrUnknownBeatmap):
			writePlain(w, "error: beatmap")
		case errors.Is(err, submission.ErrDuplicateScore),
			errors.Is(err, submission.ErrScoreFailed):
			writePlain(w, "error: no")
		default:
			writeError(w, http.StatusInternalServerError, "internal", err)
		}
		return
	}

	writePlain(w, body)
}
