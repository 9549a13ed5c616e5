package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Synthetic parameter names used to fold locale dimensions into cache keys.
// TMDB responses vary by language (titles, overviews) and by region (release
// dates, watch providers), so two requests that differ only in locale must
// never share a cache entry.
const (
	langParam   = "_lang"
	regionParam = "_region"
)

// BuildKey generates the canonical cache key for a proxied request.
//
// The path is normalized (slashes trimmed at both ends), empty query values
// are dropped, the language is always folded in as a synthetic parameter and
// the region only when present. Parameters are sorted lexicographically by
// name so that permutations of the same logical request produce byte-identical
// keys.
//
// Format: path?name=value&name2=value2
func BuildKey(path string, query map[string]string, language, region string) string {
	cleanPath := strings.Trim(path, "/")

	params := make(map[string]string, len(query)+2)
	for name, value := range query {
		if name == "" || value == "" {
			continue
		}
		params[name] = value
	}
	if language != "" {
		params[langParam] = language
	}
	if region != "" {
		params[regionParam] = region
	}

	if len(params) == 0 {
		return cleanPath
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%s", name, params[name]))
	}

	return cleanPath + "?" + strings.Join(pairs, "&")
}

// BulkKey generates the cache key for a single item resolved by the bulk
// endpoint. Bulk entries are keyed separately from proxied responses because
// they store a trimmed item shape, not the raw upstream payload.
//
// Format: bulk:contentType:id:language
func BulkKey(contentType string, id int64, language string) string {
	return fmt.Sprintf("bulk:%s:%d:%s", contentType, id, language)
}
