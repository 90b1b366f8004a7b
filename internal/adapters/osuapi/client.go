// Package osuapi is the beatmap metadata API collaborator. Raw records are
// translated into canonical beatmap attributes via the status-code table.
package osuapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aisuru/score-server/internal/domain/beatmap"
	"github.com/aisuru/score-server/internal/domain/mode"
	"github.com/aisuru/score-server/pkg/logger"
	"github.com/aisuru/score-server/pkg/metrics"
)

// record mirrors one get_beatmaps response entry. The API returns every
// field as a string.
type record struct {
	FileMD5          string `json:"file_md5"`
	BeatmapID        string `json:"beatmap_id"`
	BeatmapsetID     string `json:"beatmapset_id"`
	Artist           string `json:"artist"`
	Title            string `json:"title"`
	Version          string `json:"version"`
	Creator          string `json:"creator"`
	LastUpdate       string `json:"last_update"`
	TotalLength      string `json:"total_length"`
	MaxCombo         string `json:"max_combo"`
	Approved         string `json:"approved"`
	Mode             string `json:"mode"`
	BPM              string `json:"bpm"`
	DiffSize         string `json:"diff_size"`
	DiffOverall      string `json:"diff_overall"`
	DiffApproach     string `json:"diff_approach"`
	DiffDrain        string `json:"diff_drain"`
	DifficultyRating string `json:"difficultyrating"`
}

// Client queries the metadata API over HTTP.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	logger  logger.Logger
}

// New creates a metadata API client.
func New(baseURL, key string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("osuapi"),
	}
}

// ByHash fetches the beatmaps of the set containing the map with the given
// content hash. The API returns set-mates alongside the requested map.
func (c *Client) ByHash(ctx context.Context, md5 string) ([]*beatmap.Beatmap, error) {
	return c.get(ctx, url.Values{"h": {md5}})
}

// BySet fetches all beatmaps in a set.
func (c *Client) BySet(ctx context.Context, setID int64) ([]*beatmap.Beatmap, error) {
	return c.get(ctx, url.Values{"s": {strconv.FormatInt(setID, 10)}})
}

func (c *Client) get(ctx context.Context, params url.Values) ([]*beatmap.Beatmap, error) {
	params.Set("k", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordExternalError("osuapi")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordExternalError("osuapi")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		metrics.RecordExternalError("osuapi")
		return nil, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	maps := make([]*beatmap.Beatmap, 0, len(records))
	for i := range records {
		maps = append(maps, parseRecord(&records[i]))
	}
	return maps, nil
}

// ignoredFilenameChars are stripped when building the canonical filename.
const ignoredFilenameChars = `:\/*<>?"|`

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(ignoredFilenameChars, r) {
			return -1
		}
		return r
	}, s)
}

func parseRecord(rec *record) *beatmap.Beatmap {
	status := beatmap.StatusFromOsuAPI(atoi(rec.Approved))

	filename := sanitizeFilename(fmt.Sprintf("%s - %s (%s) [%s].osu",
		rec.Artist, rec.Title, rec.Creator, rec.Version))

	lastUpdate, _ := time.Parse("2006-01-02 15:04:05", rec.LastUpdate)

	return &beatmap.Beatmap{
		MD5:         rec.FileMD5,
		ID:          atoi64(rec.BeatmapID),
		SetID:       atoi64(rec.BeatmapsetID),
		Artist:      rec.Artist,
		Title:       rec.Title,
		Version:     rec.Version,
		Creator:     rec.Creator,
		TotalLength: atoi(rec.TotalLength),
		Status:      status,
		Mode:        mode.Mode(atoi(rec.Mode)),
		CS:          atof(rec.DiffSize),
		OD:          atof(rec.DiffOverall),
		AR:          atof(rec.DiffApproach),
		HP:          atof(rec.DiffDrain),
		Diff:        atof(rec.DifficultyRating),
		LastUpdate:  lastUpdate,
		MaxCombo:    atoi(rec.MaxCombo),
		BPM:         atof(rec.BPM),
		Filename:    filename,
		// Ranked, approved and loved maps are always frozen on arrival.
		Frozen: status.Frozen(),
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
