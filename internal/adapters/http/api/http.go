// Package api declares HTTP contracts and route registration helpers for
// the osu! client-facing web endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/internal/leaderboards"
	"github.com/aisuru/score-server/internal/stats"
	"github.com/aisuru/score-server/internal/submission"
)

// Dependencies required by HTTP handlers. The interface bundle keeps the
// handler layer loosely coupled to the app service.
type Dependencies interface {
	// SubmitScore runs one score submission through the pipeline.
	SubmitScore(ctx context.Context, req submission.Request) (string, error)

	// Leaderboard resolves a beatmap by hash with its score list. A nil
	// beatmap means no tier knows the hash.
	Leaderboard(ctx context.Context, mapMD5 string, m mode.Mode) (*beatmap.Beatmap, *leaderboards.Leaderboard, error)

	// UserStats returns the user's per-mode statistics with both ranks.
	UserStats(ctx context.Context, userID int64, country string, m mode.Mode) (*stats.Stats, error)

	// MapRating reads, and optionally records, a map rating vote.
	MapRating(ctx context.Context, userID int64, mapMD5 string, value int) (float64, bool, error)

	// Replay serves a stored replay, counting the view for foreign watchers.
	Replay(ctx context.Context, userID, scoreID int64) ([]byte, error)

	// Authenticate checks credentials against the identity service.
	Authenticate(ctx context.Context, name, passwordMD5 string) (*user.User, error)
}

// Server wires HTTP routes for the client-facing API.
type Server struct {
	healthHandler *HealthHandler
	submitHandler *SubmitHandler
	scoresHandler *ScoresHandler
	rateHandler   *RateHandler
	replayHandler *ReplayHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		submitHandler: NewSubmitHandler(deps),
		scoresHandler: NewScoresHandler(deps),
		rateHandler:   NewRateHandler(deps),
		replayHandler: NewReplayHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/web/osu-submit-modular-selector.php",
		MetricsMiddleware(s.submitHandler.HandleSubmit, "submit"))
	mux.HandleFunc("/web/osu-osz2-getscores.php",
		MetricsMiddleware(s.scoresHandler.HandleGetScores, "scores"))
	mux.HandleFunc("/web/osu-rate.php",
		MetricsMiddleware(s.rateHandler.HandleRate, "rate"))
	mux.HandleFunc("/web/osu-getreplay.php",
		MetricsMiddleware(s.replayHandler.HandleGetReplay, "replay"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writePlain writes the bare string bodies the osu! client parses.
func writePlain(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
