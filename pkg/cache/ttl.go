package cache

import (
	"regexp"
	"strings"
	"time"
)

// TTLRule maps a path pattern to a cache lifetime. A TTL of zero marks the
// endpoint as non-cacheable.
type TTLRule struct {
	Pattern *regexp.Regexp
	TTL     time.Duration
}

// ttlRules is evaluated top to bottom and the FIRST matching rule wins.
// Specificity is encoded by list position, not inferred: more specific
// patterns must stay above the broader ones they overlap with (for example
// `movie/\d+$` above `movie/\d+/`). Reordering entries changes behavior.
var ttlRules = []TTLRule{
	// Never cache free-text search: result relevance depends on ephemeral
	// ranking signals, so stale results are actively wrong.
	{regexp.MustCompile(`^search/`), 0},

	// 7 days: genre lists almost never change.
	{regexp.MustCompile(`^genre/(movie|tv)/list$`), 7 * 24 * time.Hour},

	// 24 hours: configuration and content detail pages.
	{regexp.MustCompile(`^configuration$`), 24 * time.Hour},
	{regexp.MustCompile(`^movie/\d+$`), 24 * time.Hour},
	{regexp.MustCompile(`^tv/\d+$`), 24 * time.Hour},
	{regexp.MustCompile(`^person/\d+`), 24 * time.Hour},
	{regexp.MustCompile(`^collection/\d+$`), 24 * time.Hour},

	// 12 hours: detail sub-resources (credits, videos, images) and top rated.
	{regexp.MustCompile(`^movie/\d+/`), 12 * time.Hour},
	{regexp.MustCompile(`^tv/\d+/`), 12 * time.Hour},
	{regexp.MustCompile(`^(movie|tv)/top_rated$`), 12 * time.Hour},

	// 6 hours: popular lists and watch providers.
	{regexp.MustCompile(`^(movie|tv)/popular$`), 6 * time.Hour},
	{regexp.MustCompile(`^watch/providers/`), 6 * time.Hour},

	// 4 hours: discover and release calendars.
	{regexp.MustCompile(`^discover/`), 4 * time.Hour},
	{regexp.MustCompile(`^movie/now_playing$`), 4 * time.Hour},
	{regexp.MustCompile(`^movie/upcoming$`), 4 * time.Hour},
	{regexp.MustCompile(`^tv/on_the_air$`), 4 * time.Hour},
	{regexp.MustCompile(`^tv/airing_today$`), 4 * time.Hour},

	// 2 hours: trending changes frequently.
	{regexp.MustCompile(`^trending/`), 2 * time.Hour},
}

// DefaultTTL applies when no rule matches the path.
const DefaultTTL = 4 * time.Hour

// BulkItemTTL is the lifetime of items cached by the bulk endpoint.
const BulkItemTTL = 24 * time.Hour

// TTLFor returns the cache lifetime for a resource path. Zero means the path
// must not be cached.
func TTLFor(path string) time.Duration {
	clean := strings.Trim(path, "/")
	for _, rule := range ttlRules {
		if rule.Pattern.MatchString(clean) {
			return rule.TTL
		}
	}
	return DefaultTTL
}

// IsCacheable reports whether responses for the path may be cached.
func IsCacheable(path string) bool {
	return TTLFor(path) > 0
}
