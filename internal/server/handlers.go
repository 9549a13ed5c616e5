package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cinegate/tmdb-gateway/pkg/proxy"
	"github.com/cinegate/tmdb-gateway/pkg/ratelimit"
	"github.com/cinegate/tmdb-gateway/pkg/upstream"
)

// errorBody is the JSON error envelope returned to clients.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// rateLimitRequest is the body of the check and record endpoints.
type rateLimitRequest struct {
	UserID    string `json:"user_id"`
	Endpoint  string `json:"endpoint"`
	CostUnits int64  `json:"cost_units,omitempty"`
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	var req proxy.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidJSON, "request body is not valid JSON")
		return
	}

	result, err := s.proxyHandler.Handle(r.Context(), req)
	if err != nil {
		s.writeProxyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", string(result.Status))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Payload)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req proxy.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidJSON, "request body is not valid JSON")
		return
	}

	result, err := s.bulkHandler.Handle(r.Context(), req)
	if err != nil {
		s.writeProxyError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRateLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req rateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidJSON, "request body is not valid JSON")
		return
	}
	if req.UserID == "" || req.Endpoint == "" {
		s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidJSON, "user_id and endpoint are required")
		return
	}

	result, err := s.limiter.Check(r.Context(), req.UserID, req.Endpoint)
	if err != nil {
		if errors.Is(err, ratelimit.ErrUnknownEndpoint) {
			s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidEndpoint,
				fmt.Sprintf("no rate limit policy for endpoint %q", req.Endpoint))
			return
		}
		s.writeError(w, http.StatusInternalServerError, proxy.CodeInternalError, "rate limit check failed")
		return
	}

	if !result.Allowed {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", result.WaitSeconds))
		s.writeJSON(w, http.StatusTooManyRequests, ratelimit.NewDenial(result))
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRateLimitRecord(w http.ResponseWriter, r *http.Request) {
	var req rateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidJSON, "request body is not valid JSON")
		return
	}
	if req.UserID == "" || req.Endpoint == "" {
		s.writeError(w, http.StatusBadRequest, proxy.CodeInvalidJSON, "user_id and endpoint are required")
		return
	}
	if req.CostUnits <= 0 {
		req.CostUnits = 1
	}

	s.limiter.Record(r.Context(), req.UserID, req.Endpoint, req.CostUnits)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.redis.Ping(r.Context()).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Health check failed - Redis unreachable")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"redis":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeProxyError maps handler errors onto the HTTP error taxonomy. Upstream
// API errors keep their original status and body so the gateway stays a
// transparent pass-through for TMDB failures.
func (s *Server) writeProxyError(w http.ResponseWriter, err error) {
	var verr *proxy.ValidationError
	if errors.As(err, &verr) {
		s.writeError(w, http.StatusBadRequest, verr.Code, verr.Message)
		return
	}

	if errors.Is(err, proxy.ErrForbiddenPath) {
		s.writeError(w, http.StatusForbidden, proxy.CodeForbiddenPath, "requested path is not allowed")
		return
	}

	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(uerr.StatusCode)
		if len(uerr.Body) > 0 && json.Valid(uerr.Body) {
			w.Write(uerr.Body)
			return
		}
		json.NewEncoder(w).Encode(errorBody{Error: "upstream request failed", Code: proxy.CodeUpstreamError})
		return
	}

	if errors.Is(err, upstream.ErrRetryExhausted) {
		s.logger.Error().Err(err).Msg("Upstream request failed after retries")
		s.writeError(w, http.StatusBadGateway, proxy.CodeUpstreamError, "upstream request failed")
		return
	}

	s.logger.Error().Err(err).Msg("Request failed")
	s.writeError(w, http.StatusInternalServerError, proxy.CodeInternalError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorBody{Error: message, Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
