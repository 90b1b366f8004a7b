// Package submission implements the score submission pipeline: payload
// decoding, validation, status assignment, persistence ordering, and the
// side effects feeding the leaderboards and stats.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aisuru/score-server/internal/adapters/auth"
	"github.com/aisuru/score-server/internal/adapters/bus"
	"github.com/aisuru/score-server/internal/adapters/performance"
	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/beatmaps"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/score"
	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/internal/leaderboards"
	"github.com/aisuru/score-server/internal/stats"
	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

// Performance-rating ceilings per mode. A rated submission at or above its
// ceiling restricts the account but does not block persistence.
var ppCaps = map[mode.Mode]float64{
	mode.Standard:      650,
	mode.StandardRelax: 1400,
}

// minReplaySize is the smallest payload that can be a genuine replay. A
// passing score with less data than this is a restrictable offense.
const minReplaySize = 24

// Authenticator is the external identity-check boundary.
type Authenticator interface {
	Authenticate(ctx context.Context, name, passwordMD5 string) (*user.User, error)
}

// BeatmapFiles resolves local beatmap files for the rating calculator.
type BeatmapFiles interface {
	Ensure(ctx context.Context, mapID int64, mapMD5 string) (string, bool)
}

// ReplayStore persists raw replay payloads keyed by score id.
type ReplayStore interface {
	Save(ctx context.Context, scoreID int64, data []byte) error
	Load(ctx context.Context, scoreID int64) ([]byte, error)
}

// Request is one inbound score submission after multipart parsing.
type Request struct {
	// Payload is the encoded score field vector; Decryptor recovers it.
	Payload []byte
	IV      []byte

	OsuVersion  string
	PasswordMD5 string

	Replay []byte

	ExitedOut bool
	FailTime  int
	ScoreTime int
}

// Pipeline runs submissions end to end. Each inbound submission is
// handled independently; there is no global submission lock.
type Pipeline struct {
	db        store.DB
	beatmaps  *beatmaps.Cache
	boards    *leaderboards.Store
	stats     *stats.Aggregator
	bus       bus.Bus
	auth      Authenticator
	calc      performance.Calculator
	mapFiles  BeatmapFiles
	replays   ReplayStore
	decryptor Decryptor
	guard     *checksumGuard

	domain string
	logger logger.Logger
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithDomain sets the public server domain used in chart URLs and
// announcements.
func WithDomain(domain string) Option {
	return func(p *Pipeline) {
		if domain != "" {
			p.domain = domain
		}
	}
}

// WithDecryptor replaces the payload decryptor.
func WithDecryptor(d Decryptor) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.decryptor = d
		}
	}
}

// WithChecksumCacheSize bounds the in-memory duplicate checksum guard.
func WithChecksumCacheSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.guard = newChecksumGuard(size)
		}
	}
}

// New constructs a submission pipeline over its collaborators.
func New(
	db store.DB,
	maps *beatmaps.Cache,
	boards *leaderboards.Store,
	aggregator *stats.Aggregator,
	b bus.Bus,
	authn Authenticator,
	calc performance.Calculator,
	mapFiles BeatmapFiles,
	replays ReplayStore,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		db:        db,
		beatmaps:  maps,
		boards:    boards,
		stats:     aggregator,
		bus:       b,
		auth:      authn,
		calc:      calc,
		mapFiles:  mapFiles,
		replays:   replays,
		decryptor: Base64Decryptor{},
		guard:     newChecksumGuard(defaultChecksumCacheSize),
		domain:    "aisuru.dev",
		logger:    logger.Named("submission"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit runs one submission through the pipeline. On success it returns
// the chart response body; every failure returns one of the package
// sentinels for the transport to map.
func (p *Pipeline) Submit(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	trace := uuid.NewString()

	fields, clientHash, err := p.decryptor.Decrypt(req.Payload, req.IV, req.OsuVersion)
	if err != nil {
		p.logger.Warn(ctx, "undecodable submission payload",
			logger.String("trace", trace), logger.Error(err))
		metrics.RecordScoreRejected("malformed")
		return "", ErrMalformedPayload
	}
	// map hash + username precede the score vector.
	if len(fields) < 18 {
		metrics.RecordScoreRejected("malformed")
		return "", fmt.Errorf("%w: %d fields", ErrMalformedPayload, len(fields))
	}

	if clientHash == "" {
		metrics.RecordScoreRejected("malformed")
		return "", fmt.Errorf("%w: missing client hash", ErrMalformedPayload)
	}

	mapMD5 := fields[0]
	username := strings.TrimRight(fields[1], " ")
	vector := fields[2:]

	bm, err := p.beatmaps.ResolveByHash(ctx, mapMD5)
	if err != nil {
		return "", err
	}
	if bm == nil {
		metrics.RecordScoreRejected("beatmap")
		return "", ErrUnknownBeatmap
	}

	u, err := p.auth.Authenticate(ctx, username, req.PasswordMD5)
	if err != nil {
		if !errors.Is(err, auth.ErrAuthFailed) {
			p.logger.Warn(ctx, "identity check unavailable",
				logger.String("trace", trace), logger.Error(err))
		}
		metrics.RecordScoreRejected("auth")
		return "", ErrNotLoggedIn
	}

	if p.isDuplicate(ctx, vector[0]) {
		metrics.RecordScoreRejected("duplicate")
		return "", ErrDuplicateScore
	}

	sc, err := score.FromSubmission(vector, mapMD5, u)
	if err != nil {
		p.logger.Warn(ctx, "malformed score vector",
			logger.String("trace", trace),
			logger.Int64("user_id", u.ID), logger.Error(err))
		metrics.RecordScoreRejected("malformed")
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if !sc.Mode.Valid() {
		metrics.RecordScoreRejected("malformed")
		return "", fmt.Errorf("%w: mode %d", ErrMalformedPayload, int(sc.Mode))
	}
	if sc.Passed {
		sc.TimeElapsed = req.ScoreTime
	} else {
		sc.TimeElapsed = req.FailTime
	}
	p.computeRating(ctx, bm, sc)

	var lb *leaderboards.Leaderboard
	if sc.Passed {
		if lb, err = p.boards.Fetch(ctx, bm, sc.Mode); err != nil {
			return "", err
		}
		p.assignStatus(lb, sc)
	} else {
		sc.Status = score.StatusNotSubmitted
	}

	if ceiling, ok := ppCaps[sc.Mode]; ok &&
		sc.Passed && sc.PP >= ceiling && bm.GivesPerformance() {
		p.restrict(ctx, u, fmt.Sprintf("pp cap exceeded: %.2fpp on %s", sc.PP, sc.Mode))
	}

	if err := p.persist(ctx, sc); err != nil {
		return "", err
	}
	p.guard.Record(sc.ClientChecksum)

	if sc.Passed {
		if len(req.Replay) >= minReplaySize {
			if err := p.replays.Save(ctx, sc.ID, req.Replay); err != nil {
				p.logger.Error(ctx, "replay save failed",
					logger.String("trace", trace),
					logger.Int64("score_id", sc.ID), logger.Error(err))
			}
		} else {
			p.restrict(ctx, u, "passed score submitted without replay data")
		}
	}

	if err := p.beatmaps.IncrementCounters(ctx, bm, sc.Passed); err != nil {
		p.logger.Warn(ctx, "map counter update failed",
			logger.String("trace", trace), logger.Error(err))
	}

	if sc.Status == score.StatusBest {
		lb.AddScore(sc)
		sc.Rank = lb.FindScoreRank(sc.ID)
	} else if sc.OldBest != nil {
		sc.Rank = sc.OldBest.Rank
	}

	prev, cur, err := p.updateStats(ctx, bm, sc, u)
	if err != nil {
		return "", err
	}

	p.publishPresence(ctx, u)

	if sc.Rank == 1 && sc.Status == score.StatusBest && bm.GivesPerformance() {
		p.announce(ctx, u, sc, bm)
	}

	metrics.RecordSubmissionDuration(float64(time.Since(start).Milliseconds()))

	if !sc.Passed {
		metrics.RecordScoreSubmitted("failed")
		return "", ErrScoreFailed
	}

	if sc.Status == score.StatusBest {
		metrics.RecordScoreSubmitted("best")
	} else {
		metrics.RecordScoreSubmitted("submitted")
	}

	p.logger.Info(ctx, "score accepted",
		logger.String("trace", trace),
		logger.Int64("score_id", sc.ID),
		logger.Int64("user_id", u.ID),
		logger.String("map", bm.FullName()),
		logger.Float64("pp", sc.PP),
		logger.Int("rank", sc.Rank))

	return buildResponse(bm, sc, prev, cur, p.domain), nil
}

// Replay returns the stored replay for a score. A watch by anyone other
// than the score's owner counts as a view.
func (p *Pipeline) Replay(ctx context.Context, requesterID, scoreID int64) ([]byte, error) {
	doc, err := p.db.Collection(store.Scores).FindOne(ctx, store.M{"id": scoreID})
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, ErrUnknownScore
		}
		return nil, fmt.Errorf("score lookup: %w", err)
	}

	if owner, ok := doc["user_id"].(int64); !ok || owner != requesterID {
		err := p.db.Collection(store.Scores).UpdateOne(ctx, store.M{"id": scoreID},
			store.Update{Inc: store.M{"replay_views": int64(1)}}, false)
		if err != nil {
			p.logger.Warn(ctx, "replay view count failed",
				logger.Int64("score_id", scoreID), logger.Error(err))
		}
	}

	data, err := p.replays.Load(ctx, scoreID)
	if err != nil {
		return nil, fmt.Errorf("%w: no replay data", ErrUnknownScore)
	}
	return data, nil
}

// isDuplicate checks the in-memory checksum guard and falls back to the
// persistent store, which survives restarts and eviction.
func (p *Pipeline) isDuplicate(ctx context.Context, checksum string) bool {
	if checksum == "" {
		return false
	}
	if p.guard.Seen(checksum) {
		return true
	}
	n, err := p.db.Collection(store.Scores).Count(ctx,
		store.M{"client_checksum": checksum})
	if err != nil {
		p.logger.Warn(ctx, "duplicate lookup failed", logger.Error(err))
		return false
	}
	return n > 0
}

// computeRating invokes the external rating engine when the local beatmap
// file is available and the submission is not a format convert. Failures
// degrade to an unrated score.
func (p *Pipeline) computeRating(ctx context.Context, bm *beatmap.Beatmap, sc *score.Score) {
	if sc.Mode.Vanilla() != bm.Mode {
		return
	}
	path, ok := p.mapFiles.Ensure(ctx, bm.ID, bm.MD5)
	if !ok {
		return
	}

	res, err := p.calc.Calculate(ctx, path, performance.Params{
		Mods:     sc.Mods,
		Accuracy: sc.Accuracy,
		Misses:   sc.NMiss,
		Combo:    sc.MaxCombo,
	})
	if err != nil {
		p.logger.Warn(ctx, "rating computation failed",
			logger.Int64("map_id", bm.ID), logger.Error(err))
		return
	}
	sc.PP = res.PP
	sc.Stars = res.Stars
}

// assignStatus compares the passing score against the user's current
// leaderboard entry and settles both statuses. The previous best, when
// present, is kept on the score for response construction only.
func (p *Pipeline) assignStatus(lb *leaderboards.Leaderboard, sc *score.Score) {
	old, rank, ok := lb.FindUserScore(sc.UserID)
	if !ok {
		sc.Status = score.StatusBest
		return
	}

	old.Rank = rank
	sc.OldBest = old
	// Promotion compares performance rating in every mode; the leaderboard
	// keeps its own per-mode ordering metric.
	if sc.PP > old.PP {
		sc.Status = score.StatusBest
		old.Status = score.StatusSubmitted
	} else {
		sc.Status = score.StatusSubmitted
	}
}

// persist demotes any stored best for the same (user, map, mode) when the
// new score takes BEST, then assigns the next sequential id and inserts.
func (p *Pipeline) persist(ctx context.Context, sc *score.Score) error {
	scores := p.db.Collection(store.Scores)

	if sc.Status == score.StatusBest {
		_, err := scores.UpdateMany(ctx, store.M{
			"user_id": sc.UserID,
			"map_md5": sc.MapMD5,
			"mode":    int64(sc.Mode),
			"status":  int64(score.StatusBest),
		}, store.Update{Set: store.M{"status": int64(score.StatusSubmitted)}})
		if err != nil {
			return fmt.Errorf("demote previous best: %w", err)
		}
	}

	id, err := p.db.NextID(ctx, store.Scores)
	if err != nil {
		return fmt.Errorf("score id: %w", err)
	}
	sc.ID = id

	if err := scores.InsertOne(ctx, sc.ToDoc()); err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// updateStats applies the submission to the user's per-mode statistics and
// returns the before and after snapshots for the chart response.
func (p *Pipeline) updateStats(ctx context.Context, bm *beatmap.Beatmap, sc *score.Score, u *user.User) (*stats.Stats, *stats.Stats, error) {
	st, err := p.stats.Fetch(ctx, u.ID, u.Country, sc.Mode)
	if err != nil {
		return nil, nil, err
	}
	prev := *st

	st.PlayCount++
	st.PlayTime += int64(sc.TimeElapsed / 1000)
	st.TotalScore += sc.Value
	st.TotalHits += int64(sc.N300 + sc.N100 + sc.N50 + sc.NMiss)
	if sc.Mode.Vanilla() == mode.Mania {
		st.TotalHits += int64(sc.NGeki + sc.NKatu)
	}

	if sc.Passed {
		// The record combo only moves on maps with a settled leaderboard.
		if bm.Status >= beatmap.Ranked && sc.MaxCombo > st.MaxCombo {
			st.MaxCombo = sc.MaxCombo
		}
		if sc.Status == score.StatusBest && bm.Status == beatmap.Ranked {
			delta := sc.Value
			if sc.OldBest != nil {
				delta -= sc.OldBest.Value
			}
			st.RankedScore += delta
		}
		if sc.Status == score.StatusBest && sc.PP > 0 && bm.GivesPerformance() {
			if err := p.stats.Recalc(ctx, st, sc.Mode, u.ID); err != nil {
				return nil, nil, err
			}
			if err := p.stats.UpdateRank(ctx, st, sc.Mode, u.ID, u.Country); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := p.stats.Save(ctx, st, sc.Mode, u.ID); err != nil {
		return nil, nil, err
	}
	if err := p.stats.Refresh(ctx, sc.Mode, u.ID); err != nil {
		p.logger.Warn(ctx, "stats refresh publish failed", logger.Error(err))
	}
	return &prev, st, nil
}

// restrict flags the account, records the action and broadcasts the new
// privilege bitmask so cached leaderboards are patched everywhere.
// Whitelisted and already-restricted accounts are left alone.
func (p *Pipeline) restrict(ctx context.Context, u *user.User, reason string) {
	if u.Privileges.Has(user.Whitelisted) || u.Privileges.Has(user.Restricted) {
		return
	}
	u.Privileges |= user.Restricted

	err := p.db.Collection(store.Users).UpdateOne(ctx, store.M{"id": u.ID},
		store.Update{Set: store.M{"privileges": int64(u.Privileges)}}, false)
	if err != nil {
		p.logger.Error(ctx, "privilege update failed",
			logger.Int64("user_id", u.ID), logger.Error(err))
	}

	err = p.db.Collection(store.Logs).InsertOne(ctx, store.M{
		"user_id": u.ID,
		"action":  "restrict",
		"reason":  reason,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		p.logger.Error(ctx, "restriction log failed",
			logger.Int64("user_id", u.ID), logger.Error(err))
	}

	if err := p.bus.Publish(ctx, bus.ChannelUserPrivileges, bus.PrivilegeUpdate{
		ID:         u.ID,
		Privileges: int32(u.Privileges),
	}); err != nil {
		p.logger.Error(ctx, "privilege publish failed",
			logger.Int64("user_id", u.ID), logger.Error(err))
	}

	p.logger.Warn(ctx, "account restricted",
		logger.Int64("user_id", u.ID), logger.String("reason", reason))
}

// publishPresence broadcasts the player's latest activity and status so
// live frontends update without polling.
func (p *Pipeline) publishPresence(ctx context.Context, u *user.User) {
	if err := p.bus.Publish(ctx, bus.ChannelUserActivity, bus.ActivityUpdate{
		ID:       u.ID,
		Activity: time.Now().Unix(),
	}); err != nil {
		p.logger.Warn(ctx, "activity publish failed", logger.Error(err))
	}

	if err := p.bus.Publish(ctx, bus.ChannelUserStatus, bus.StatusUpdate{ID: u.ID}); err != nil {
		p.logger.Warn(ctx, "status publish failed", logger.Error(err))
	}
}

// announce posts the #1 achievement to the public announcement channel.
func (p *Pipeline) announce(ctx context.Context, u *user.User, sc *score.Score, bm *beatmap.Beatmap) {
	msg := fmt.Sprintf("%s achieved #1 on %s (%s) with %.2fpp",
		u.Name, bm.Embed(p.domain), sc.Mode, sc.PP)

	if err := p.bus.Publish(ctx, bus.ChannelSendPublicMessage, bus.PublicMessage{
		Channel: "#announce",
		Message: msg,
	}); err != nil {
		p.logger.Warn(ctx, "announcement publish failed", logger.Error(err))
	}
}
