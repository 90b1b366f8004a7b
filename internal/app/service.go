// Package app wires the score-server components together and implements
// the dependencies required by the HTTP API.
package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aisuru/score-server/internal/adapters/auth"
	"github.com/aisuru/score-server/internal/adapters/bus"
	"github.com/aisuru/score-server/internal/adapters/files"
	"github.com/aisuru/score-server/internal/adapters/osuapi"
	"github.com/aisuru/score-server/internal/adapters/performance"
	"github.com/aisuru/score-server/internal/adapters/rankindex"
	"github.com/aisuru/score-server/internal/adapters/store"
	"github.com/aisuru/score-server/internal/beatmaps"
	"github.com/aisuru/score-server/internal/config"
	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/internal/leaderboards"
	"github.com/aisuru/score-server/internal/stats"
	"github.com/aisuru/score-server/internal/submission"
	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

// Service owns every core component and the invalidation listener.
type Service struct {
	mu sync.Mutex

	cfg *config.Config

	db    store.DB
	bus   bus.Bus
	index rankindex.Index
	calc  performance.Calculator
	authn submission.Authenticator

	beatmaps *beatmaps.Cache
	boards   *leaderboards.Store
	stats    *stats.Aggregator
	pipeline *submission.Pipeline

	started bool
	stopBus context.CancelFunc
	busDone chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDB replaces the document store.
func WithDB(db store.DB) Option {
	return func(s *Service) {
		if db != nil {
			s.db = db
		}
	}
}

// WithBus replaces the invalidation bus.
func WithBus(b bus.Bus) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithRankIndex replaces the rank index.
func WithRankIndex(idx rankindex.Index) Option {
	return func(s *Service) {
		if idx != nil {
			s.index = idx
		}
	}
}

// WithCalculator replaces the performance-rating calculator.
func WithCalculator(c performance.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithAuthenticator replaces the identity-check client.
func WithAuthenticator(a submission.Authenticator) Option {
	return func(s *Service) {
		if a != nil {
			s.authn = a
		}
	}
}

// New constructs a Service over the given configuration. Options inject
// alternative collaborators, mainly for tests.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.Named("app"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and launches the bus listener. The
// Redis-backed bus and rank index are selected when redis_addr is set;
// otherwise the in-process implementations serve a single instance.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting score service")

	timeout := time.Duration(s.cfg.ExternalTimeoutMS) * time.Millisecond

	if s.db == nil {
		s.db = store.NewMemoryDB()
	}

	if s.bus == nil || s.index == nil {
		if s.cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     s.cfg.RedisAddr,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			})
			if s.bus == nil {
				s.bus = bus.NewRedisBus(client)
			}
			if s.index == nil {
				s.index = rankindex.NewRedisIndex(client)
			}
			s.logger.Info(ctx, "using redis bus and rank index",
				logger.String("addr", s.cfg.RedisAddr))
		} else {
			if s.bus == nil {
				s.bus = bus.NewMemoryBus()
			}
			if s.index == nil {
				s.index = rankindex.NewTreapIndex()
			}
			s.logger.Info(ctx, "using in-process bus and treap rank index")
		}
	}

	if s.authn == nil {
		s.authn = auth.New(s.cfg.AuthURL, s.cfg.AuthKey, timeout)
	}
	if s.calc == nil {
		s.calc = performance.NewCommandCalculator(s.cfg.PerformanceBin)
	}

	mapFiles, err := files.NewBeatmapFiles(
		filepath.Join(s.cfg.DataDir, "osu"), s.cfg.MapFileURL, timeout)
	if err != nil {
		return err
	}
	replays, err := files.NewReplays(filepath.Join(s.cfg.DataDir, "osr"))
	if err != nil {
		return err
	}

	source := osuapi.New(s.cfg.OsuAPIURL, s.cfg.OsuAPIKey, timeout)
	s.beatmaps = beatmaps.New(s.db, source)
	s.boards = leaderboards.NewStore(s.db)
	s.stats = stats.New(s.db, s.index, s.bus)
	s.pipeline = submission.New(
		s.db, s.beatmaps, s.boards, s.stats, s.bus,
		s.authn, s.calc, mapFiles, replays,
		submission.WithDomain(s.cfg.ServerDomain),
		submission.WithChecksumCacheSize(s.cfg.ChecksumCacheSize),
	)

	s.subscribe()

	busCtx, cancel := context.WithCancel(context.Background())
	s.stopBus = cancel
	s.busDone = make(chan struct{})
	go func() {
		defer close(s.busDone)
		if err := s.bus.Listen(busCtx); err != nil && busCtx.Err() == nil {
			s.logger.Error(busCtx, "bus listener stopped", logger.Error(err))
		}
	}()

	s.started = true
	s.logger.Info(ctx, "score service started")
	return nil
}

// subscribe registers the invalidation handlers. Handlers run sequentially
// on the listener's context and each applies one patch to cached state.
func (s *Service) subscribe() {
	s.bus.Subscribe(bus.ChannelUserPrivileges, func(ctx context.Context, payload []byte) {
		var msg bus.PrivilegeUpdate
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn(ctx, "bad privilege update", logger.Error(err))
			return
		}
		for _, lb := range s.boards.Cached() {
			lb.PatchPrivileges(msg.ID, user.Privileges(msg.Privileges))
		}
		metrics.RecordBusMessage(bus.ChannelUserPrivileges)
	})

	s.bus.Subscribe(bus.ChannelMapStatus, func(ctx context.Context, payload []byte) {
		var msg bus.MapStatusUpdate
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn(ctx, "bad map status update", logger.Error(err))
			return
		}
		err := s.beatmaps.ApplyStatus(ctx, msg.MD5, beatmap.RankedStatus(msg.NewStatus))
		if err != nil {
			s.logger.Error(ctx, "map status patch failed",
				logger.String("md5", msg.MD5), logger.Error(err))
			return
		}
		metrics.RecordBusMessage(bus.ChannelMapStatus)
	})
}

// Stop shuts the listener down and releases the bus transport.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping score service")

	if s.stopBus != nil {
		s.stopBus()
		<-s.busDone
	}
	if err := s.bus.Close(); err != nil {
		s.logger.Warn(context.Background(), "bus close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "score service stopped")
}

// SubmitScore runs one score submission through the pipeline.
func (s *Service) SubmitScore(ctx context.Context, req submission.Request) (string, error) {
	return s.pipeline.Submit(ctx, req)
}

// Leaderboard resolves a beatmap by hash and returns its leaderboard plus
// the map itself. A nil beatmap means no tier knows the hash.
func (s *Service) Leaderboard(ctx context.Context, mapMD5 string, m mode.Mode) (*beatmap.Beatmap, *leaderboards.Leaderboard, error) {
	bm, err := s.beatmaps.ResolveByHash(ctx, mapMD5)
	if err != nil || bm == nil {
		return nil, nil, err
	}
	lb, err := s.boards.Fetch(ctx, bm, m)
	if err != nil {
		return nil, nil, err
	}
	return bm, lb, nil
}

// UserStats returns the user's per-mode statistics with both ranks.
func (s *Service) UserStats(ctx context.Context, userID int64, country string, m mode.Mode) (*stats.Stats, error) {
	return s.stats.Fetch(ctx, userID, country, m)
}

// MapRating returns the map's average rating, recording the user's vote
// first when value is positive and the user has not rated the map before.
func (s *Service) MapRating(ctx context.Context, userID int64, mapMD5 string, value int) (float64, bool, error) {
	bm, err := s.beatmaps.ResolveByHash(ctx, mapMD5)
	if err != nil || bm == nil {
		return 0, false, err
	}

	rated, err := s.beatmaps.HasRated(ctx, userID, bm.MD5)
	if err != nil {
		return 0, false, err
	}

	if value > 0 && !rated {
		avg, err := s.beatmaps.SubmitRating(ctx, userID, bm, value)
		return avg, true, err
	}

	avg, err := s.beatmaps.Rating(ctx, bm)
	return avg, true, err
}

// Replay serves a stored replay, counting the view for foreign watchers.
func (s *Service) Replay(ctx context.Context, userID, scoreID int64) ([]byte, error) {
	return s.pipeline.Replay(ctx, userID, scoreID)
}

// Authenticate exposes the identity check to the HTTP layer.
func (s *Service) Authenticate(ctx context.Context, name, passwordMD5 string) (*user.User, error) {
	return s.authn.Authenticate(ctx, name, passwordMD5)
}
