package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/chainreactions/screener/internal/match"
	"github.com/chainreactions/screener/internal/model"
)

// maxRequestBytes bounds request bodies; a full 100-query batch fits
// comfortably under it.
const maxRequestBytes = 1 << 20

type matchRequest struct {
	Query    string        `json:"query"`
	Location string        `json:"location,omitempty"`
	Options  model.Options `json:"options"`
}

type batchRequest struct {
	Queries []string      `json:"queries"`
	Options model.Options `json:"options"`
}

type affiliatedRequest struct {
	Primary    string                  `json:"primary"`
	Affiliated []model.AffiliatedInput `json:"affiliated"`
	Options    model.Options           `json:"options"`
}

type warmupRequest struct {
	Queries []string `json:"queries"`
}

type healthResponse struct {
	Status         string `json:"status"`
	DatasetLoaded  bool   `json:"dataset_loaded"`
	DatasetVersion int64  `json:"dataset_version,omitempty"`
	Entities       int    `json:"entities,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthResponse{Status: "ok"}
	if ds := s.engine.Dataset(); ds != nil {
		body.DatasetLoaded = true
		body.DatasetVersion = ds.Version
		body.Entities = ds.Entities
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.MatchSingle(r.Context(), req.Query, req.Location, req.Options)
	if err != nil {
		writeMatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMatchBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Expired deadlines surface per item, so a partially timed-out
	// batch still returns its completed results.
	res, err := s.engine.MatchBatch(r.Context(), req.Queries, req.Options)
	if err != nil {
		writeMatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMatchAffiliated(w http.ResponseWriter, r *http.Request) {
	var req affiliatedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.MatchAffiliated(r.Context(), req.Primary, req.Affiliated, req.Options)
	if err != nil {
		writeMatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearCache()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleCacheWarmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	warmed, err := s.engine.Warmup(r.Context(), req.Queries)
	if err != nil {
		writeMatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"warmed": warmed})
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeMatchError maps engine errors onto HTTP status codes.
func writeMatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case match.IsInputError(err):
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
	case match.IsDatasetUnavailable(err):
		writeError(w, r, http.StatusServiceUnavailable, "dataset_unavailable", err.Error())
	case match.IsTimeout(err):
		writeError(w, r, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		zap.L().Error("server: request failed",
			zap.Error(err),
			zap.String("request_id", reqID(r.Context())),
		)
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: reqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}
