// Package cache provides the TMDB response cache: canonical key generation,
// the per-endpoint TTL policy and the Redis-backed persistent store.
//
// # Cache Keys
//
// Keys are canonical: query parameters are sorted, empty values dropped and
// locale dimensions folded in as synthetic parameters, so semantically
// identical requests always map to the same entry regardless of parameter
// order.
//
//	key := cache.BuildKey("movie/603", map[string]string{"page": "1"}, "es-ES", "MX")
//	// movie/603?_lang=es-ES&_region=MX&page=1
//
// # TTL Policy
//
// Cache lifetimes are assigned by an ordered rule table where the first
// matching pattern wins. Search endpoints are never cached (TTL 0), trending
// gets hours, detail pages a day, static reference data (genres,
// configuration) up to a week.
//
//	ttl := cache.TTLFor("movie/603") // 24h
//	cache.IsCacheable("search/movie") // false
//
// # Store
//
//	store := cache.NewStore(redisClient, logger)
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream, then:
//		_ = store.Put(ctx, key, payload, ttl)
//	}
//
// Reads treat expired rows as misses even while the row physically exists.
// Writes are upserts keyed by the canonical key and reset the hit counter.
// RecordHit increments an advisory counter off the request path; lost
// increments are acceptable.
//
// # Failure Semantics
//
// A storage error on Get must be treated by callers as a miss, and a storage
// error on Put must never fail the overall request: the authoritative data
// has already been fetched from upstream. Both are logged and counted in the
// tmdb_cache_errors_total metric.
package cache
