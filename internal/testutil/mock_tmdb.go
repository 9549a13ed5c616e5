// Package testutil provides testing utilities for the TMDB gateway.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockTMDBResponse defines the behavior for a mock TMDB endpoint response.
type MockTMDBResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTMDB is a configurable mock TMDB API server for testing.
type MockTMDB struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastRequestQuery  map[string]string
}

// NewMockTMDB creates a new mock TMDB server.
func NewMockTMDB() *MockTMDB {
	mock := &MockTMDB{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestQuery = make(map[string]string)
		for name, values := range r.URL.Query() {
			if len(values) > 0 {
				mock.LastRequestQuery[name] = values[0]
			}
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTMDB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTMDB) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTMDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastRequestQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTMDB) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockTMDB) SetResponse(path string, resp MockTMDBResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetMovieResponse configures a movie detail endpoint response.
func (m *MockTMDB) SetMovieResponse(movieID int, resp MockTMDBResponse) {
	m.SetResponse(fmt.Sprintf("/movie/%d", movieID), resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTMDB) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query parameters of the most recent request.
func (m *MockTMDB) GetLastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestQuery
}

// defaultHandler provides default TMDB-like responses.
func (m *MockTMDB) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// NewHealthyResponse creates a standard 200 OK response with TMDB headers.
func NewHealthyResponse(data string) MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a typical TMDB 404 response.
func NewNotFoundResponse() MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"success":false,"status_code":34,"status_message":"The resource you requested could not be found."}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"success":false,"status_code":25,"status_message":"Your request count is over the allowed limit."}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
			"Retry-After":  "1",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockTMDBResponse {
	return MockTMDBResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"success":false,"status_message":"Internal error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
		},
	}
}

// MovieDetailBody builds a plausible TMDB movie detail payload for tests.
func MovieDetailBody(id int, title string) string {
	return fmt.Sprintf(
		`{"id":%d,"title":%q,"poster_path":"/p%d.jpg","vote_average":7.5,"release_date":"1999-03-31","runtime":136,"genres":[{"id":28,"name":"Acción"}],"overview":"Una película."}`,
		id, title, id)
}
