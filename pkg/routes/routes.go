// Package routes validates proxied resource paths against the allow-list of
// TMDB endpoints this gateway is willing to forward. The list is a security
// boundary: anything not matched is rejected.
package routes

import (
	"regexp"
	"strings"
)

// allowedRoutes is the fixed set of forwardable TMDB paths. Patterns are
// anchored and evaluated against the slash-trimmed path.
var allowedRoutes = []*regexp.Regexp{
	regexp.MustCompile(`^trending/(movie|tv|all)/(day|week)$`),
	regexp.MustCompile(`^(movie|tv)/popular$`),
	regexp.MustCompile(`^(movie|tv)/top_rated$`),
	regexp.MustCompile(`^movie/upcoming$`),
	regexp.MustCompile(`^movie/now_playing$`),
	regexp.MustCompile(`^tv/on_the_air$`),
	regexp.MustCompile(`^tv/airing_today$`),
	regexp.MustCompile(`^movie/\d+$`),
	regexp.MustCompile(`^tv/\d+$`),
	regexp.MustCompile(`^person/\d+$`),
	regexp.MustCompile(`^movie/\d+/(credits|videos|images|recommendations|similar|reviews|watch/providers)$`),
	regexp.MustCompile(`^tv/\d+/(credits|videos|images|recommendations|similar|reviews|watch/providers|season/\d+)$`),
	regexp.MustCompile(`^person/\d+/(movie_credits|tv_credits|combined_credits|images)$`),
	regexp.MustCompile(`^search/(movie|tv|multi|person|keyword|collection)$`),
	regexp.MustCompile(`^discover/(movie|tv)$`),
	regexp.MustCompile(`^genre/(movie|tv)/list$`),
	regexp.MustCompile(`^configuration$`),
	regexp.MustCompile(`^watch/providers/(movie|tv)$`),
	regexp.MustCompile(`^collection/\d+$`),
}

// Normalize strips leading and trailing slashes from a resource path.
// All matching and cache key generation operates on normalized paths.
func Normalize(path string) string {
	return strings.Trim(path, "/")
}

// IsAllowed reports whether the given resource path matches the allow-list.
// Unknown paths must be rejected by the caller (fail closed).
func IsAllowed(path string) bool {
	clean := Normalize(path)
	for _, pattern := range allowedRoutes {
		if pattern.MatchString(clean) {
			return true
		}
	}
	return false
}
