package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/features"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

const insufficientTrendsMessage = "Not enough completed sessions yet to identify trends."

type startSessionRequest struct {
	LearnerCode  string `json:"learner_code"`
	ActivityKind string `json:"activity_kind"`
}

type appendEventsRequest struct {
	LearnerCode string           `json:"learner_code"`
	Events      []features.Event `json:"events"`
}

type completeSessionRequest struct {
	LearnerCode string `json:"learner_code"`
}

type generateReportRequest struct {
	LearnerID uuid.UUID  `json:"learner_id"`
	Scope     string     `json:"scope"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Audience  string     `json:"audience"`
}

type trendEntry struct {
	PatternName string     `json:"pattern_name"`
	TrendType   trend.Type `json:"trend_type"`
}

type trendsResponse struct {
	LearnerID uuid.UUID    `json:"learner_id"`
	Trends    []trendEntry `json:"trends"`
	Message   string       `json:"message,omitempty"`
}

// startSession handles POST /api/v1/sessions
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ActivityKind == "" {
		s.writeError(w, r, fmt.Errorf("%w: activity_kind required", errBadRequest))
		return
	}

	id, err := s.pipeline.StartSession(r.Context(), req.LearnerCode, req.ActivityKind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"session_id": id})
}

// appendEvents handles POST /api/v1/sessions/{id}/events
func (s *Server) appendEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req appendEventsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	total, err := s.pipeline.AppendEvents(r.Context(), req.LearnerCode, id, req.Events)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"events_logged": len(req.Events),
		"total_events":  total,
	})
}

// completeSession handles POST /api/v1/sessions/{id}/complete
func (s *Server) completeSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req completeSessionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.pipeline.CompleteSession(r.Context(), req.LearnerCode, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// generateReport handles POST /api/v1/reports/generate
func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	key := narrative.Key{
		LearnerID: req.LearnerID,
		Scope:     narrative.Scope(req.Scope),
		Audience:  narrative.Audience(req.Audience),
	}
	if req.SessionID != nil {
		key.SessionID = *req.SessionID
	}

	report, err := s.pipeline.GenerateReport(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// getReport handles GET /api/v1/reports/{id}
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.pipeline.GetReport(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// trends handles GET /api/v1/learners/{id}/trends
func (s *Server) trends(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.pipeline.Trends(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := trendsResponse{LearnerID: id, Trends: []trendEntry{}}
	if res.Insufficient {
		resp.Message = insufficientTrendsMessage
	}
	for _, t := range res.Summaries {
		resp.Trends = append(resp.Trends, trendEntry{PatternName: t.PatternName, TrendType: t.TrendType})
	}
	writeJSON(w, http.StatusOK, resp)
}
