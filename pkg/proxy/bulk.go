package proxy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/cinegate/tmdb-gateway/pkg/cache"
	"github.com/cinegate/tmdb-gateway/pkg/logging"
	"github.com/cinegate/tmdb-gateway/pkg/pool"
)

// Default bulk request limits, applied when the configuration leaves them
// unset.
const (
	// MaxBulkIDs caps how many IDs a single bulk request may carry; extra IDs
	// are silently dropped.
	MaxBulkIDs = 50

	// BulkConcurrency is the worker count for parallel item resolution.
	BulkConcurrency = 8
)

var (
	bulkRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tmdb_bulk_requests_total",
		Help: "Total bulk detail requests",
	})

	bulkItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_bulk_items_total",
		Help: "Total bulk items by resolution outcome",
	}, []string{"outcome"}) // "hit", "miss", "failed"
)

// BulkRequest asks for trimmed detail records of several titles at once.
type BulkRequest struct {
	// IDs are TMDB movie or TV IDs. Duplicates are collapsed, order of first
	// occurrence is preserved.
	IDs []int64 `json:"ids"`

	// ContentType is "movie" or "tv". Empty defaults to "movie".
	ContentType string `json:"content_type,omitempty"`

	// Language is an IETF BCP 47 tag. Empty means the configured default.
	Language string `json:"language,omitempty"`
}

// BulkItem is the trimmed detail record returned per title.
type BulkItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	PosterPath   string  `json:"poster_path,omitempty"`
	BackdropPath string  `json:"backdrop_path,omitempty"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	Runtime      int     `json:"runtime,omitempty"`
	Genres       []Genre `json:"genres,omitempty"`
	Overview     string  `json:"overview,omitempty"`
}

// Genre is a TMDB genre reference.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BulkResult carries the resolved items. IDs that failed to resolve are
// omitted rather than failing the whole request.
type BulkResult struct {
	Items []BulkItem `json:"results"`

	// Requested is the deduplicated, capped ID count actually processed.
	Requested int `json:"requested"`
}

// upstreamDetail covers the fields of both movie and TV detail payloads that
// feed a BulkItem. Movies carry title/release_date/runtime, TV shows carry
// name/first_air_date/episode_run_time.
type upstreamDetail struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Name           string  `json:"name"`
	PosterPath     string  `json:"poster_path"`
	BackdropPath   string  `json:"backdrop_path"`
	VoteAverage    float64 `json:"vote_average"`
	ReleaseDate    string  `json:"release_date"`
	FirstAirDate   string  `json:"first_air_date"`
	Runtime        int     `json:"runtime"`
	EpisodeRunTime []int   `json:"episode_run_time"`
	Genres         []Genre `json:"genres"`
	Overview       string  `json:"overview"`
}

func (d *upstreamDetail) toItem() BulkItem {
	item := BulkItem{
		ID:           d.ID,
		Title:        d.Title,
		PosterPath:   d.PosterPath,
		BackdropPath: d.BackdropPath,
		VoteAverage:  d.VoteAverage,
		ReleaseDate:  d.ReleaseDate,
		Runtime:      d.Runtime,
		Genres:       d.Genres,
		Overview:     d.Overview,
	}
	if item.Title == "" {
		item.Title = d.Name
	}
	if item.ReleaseDate == "" {
		item.ReleaseDate = d.FirstAirDate
	}
	if item.Runtime == 0 && len(d.EpisodeRunTime) > 0 {
		item.Runtime = d.EpisodeRunTime[0]
	}
	return item
}

// BulkHandler resolves batches of title details through the cache.
type BulkHandler struct {
	store       Store
	fetcher     Fetcher
	maxIDs      int
	concurrency int
	logger      zerolog.Logger
}

// NewBulkHandler creates a bulk handler. Non-positive maxIDs or concurrency
// fall back to the defaults.
func NewBulkHandler(store Store, fetcher Fetcher, maxIDs, concurrency int) *BulkHandler {
	if maxIDs <= 0 {
		maxIDs = MaxBulkIDs
	}
	if concurrency <= 0 {
		concurrency = BulkConcurrency
	}
	return &BulkHandler{
		store:       store,
		fetcher:     fetcher,
		maxIDs:      maxIDs,
		concurrency: concurrency,
		logger:      logging.NewLogger("bulk"),
	}
}

// Handle resolves the requested IDs in parallel. Each item is served from
// its own cache row when fresh, otherwise fetched and cached individually.
func (h *BulkHandler) Handle(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = "movie"
	}
	if contentType != "movie" && contentType != "tv" {
		return nil, NewValidationError(CodeInvalidContentType,
			fmt.Sprintf("content_type must be 'movie' or 'tv', got %q", contentType))
	}

	language := req.Language
	if language == "" {
		language = h.fetcher.DefaultLanguage()
	}

	ids := dedupeIDs(req.IDs, h.maxIDs)
	bulkRequestsTotal.Inc()

	results := pool.Map(ctx, ids, h.concurrency, func(ctx context.Context, id int64) (BulkItem, error) {
		return h.fetchItem(ctx, contentType, id, language)
	})

	items := make([]BulkItem, 0, len(ids))
	for i, res := range results {
		if res.Err != nil {
			bulkItemsTotal.WithLabelValues("failed").Inc()
			h.logger.Warn().Err(res.Err).
				Int64("id", ids[i]).
				Str("content_type", contentType).
				Msg("Bulk item failed - omitting from result")
			continue
		}
		items = append(items, res.Value)
	}

	return &BulkResult{Items: items, Requested: len(ids)}, nil
}

func (h *BulkHandler) fetchItem(ctx context.Context, contentType string, id int64, language string) (BulkItem, error) {
	key := cache.BulkKey(contentType, id, language)

	if entry, err := h.store.Get(ctx, key); err == nil {
		var item BulkItem
		if err := json.Unmarshal(entry.Payload, &item); err == nil {
			bulkItemsTotal.WithLabelValues("hit").Inc()
			return item, nil
		}
		// Corrupt row, fall through to a refetch that overwrites it.
	}

	body, err := h.fetcher.Get(ctx, fmt.Sprintf("%s/%d", contentType, id), nil, language, "")
	if err != nil {
		return BulkItem{}, err
	}

	var detail upstreamDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return BulkItem{}, fmt.Errorf("decode %s/%d detail: %w", contentType, id, err)
	}

	item := detail.toItem()
	if payload, err := json.Marshal(item); err == nil {
		asyncPut(h.store, h.logger, key, payload, cache.BulkItemTTL)
	}

	bulkItemsTotal.WithLabelValues("miss").Inc()
	return item, nil
}

// dedupeIDs collapses duplicates keeping first-occurrence order and caps the
// result at max entries.
func dedupeIDs(ids []int64, max int) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == max {
			break
		}
	}
	return out
}
