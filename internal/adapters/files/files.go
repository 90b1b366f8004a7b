// Package files manages the on-disk beatmap and replay payloads. Raw file
// storage is a collaborator boundary; only the lookup/fetch contract the
// submission pipeline needs lives here.
package files

import (
	"context"
	"crypto/md5" //nolint:gosec // content hashes are md5 by protocol
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

// BeatmapFiles resolves local .osu files by map id, verifying content by
// hash and re-fetching from the canonical source when stale.
type BeatmapFiles struct {
	dir     string
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

// NewBeatmapFiles creates a beatmap file source rooted at dir.
func NewBeatmapFiles(dir, baseURL string, timeout time.Duration) (*BeatmapFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create beatmap dir: %w", err)
	}
	return &BeatmapFiles{
		dir:     dir,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("files"),
	}, nil
}

// Ensure returns the local path for the map, downloading it when the file
// is missing or its content hash no longer matches. ok is false when the
// file cannot be made available; the caller degrades to an unrated score.
func (f *BeatmapFiles) Ensure(ctx context.Context, mapID int64, mapMD5 string) (string, bool) {
	path := filepath.Join(f.dir, fmt.Sprintf("%d.osu", mapID))

	if data, err := os.ReadFile(path); err == nil {
		sum := md5.Sum(data) //nolint:gosec // content verification, not crypto
		if hex.EncodeToString(sum[:]) == mapMD5 {
			return path, true
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%d", f.baseURL, mapID), nil)
	if err != nil {
		return "", false
	}

	resp, err := f.http.Do(req)
	if err != nil {
		metrics.RecordExternalError("mapfiles")
		f.logger.Warn(ctx, "beatmap file fetch failed",
			logger.Int64("map_id", mapID), logger.Error(err))
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordExternalError("mapfiles")
		return "", false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false
	}
	return path, true
}

// Replays persists raw replay payloads keyed by score id.
type Replays struct {
	dir string
}

// NewReplays creates a replay store rooted at dir.
func NewReplays(dir string) (*Replays, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create replay dir: %w", err)
	}
	return &Replays{dir: dir}, nil
}

// Save writes the replay payload for a score.
func (r *Replays) Save(ctx context.Context, scoreID int64, data []byte) error {
	path := filepath.Join(r.dir, fmt.Sprintf("%d.osr", scoreID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write replay: %w", err)
	}
	return nil
}

// Load reads the replay payload for a score.
func (r *Replays) Load(ctx context.Context, scoreID int64) ([]byte, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("%d.osr", scoreID))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	return data, nil
}
