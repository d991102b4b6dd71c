package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

const (
	scanFinishedMessage = "Lead discovery finished."

	defaultLeadLimit = 50
	maxLeadLimit     = 500
	defaultScanLimit = 20
	maxScanLimit     = 200
	readTimeout      = 3 * time.Second
)

// listLeads handles GET /leads?limit=&offset=, newest first. It returns
// {"leads": [...]}, 400 for invalid paging, or 500 when the store fails.
func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultLeadLimit, maxLeadLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	leads, err := s.reader.ListLeads(ctx, limit, offset)
	if err != nil {
		s.logger.Error("list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": toLeadDTOs(leads)})
}

// listScans handles GET /scans?limit=.
func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	limit, _, err := parseLimitOffset(r, defaultScanLimit, maxScanLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	runs, err := s.reader.ListScans(ctx, limit)
	if err != nil {
		s.logger.Error("list scans failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": toScanDTOs(runs)})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

type leadDTO struct {
	ID        int64     `json:"id"`
	Score     int       `json:"score"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type scanDTO struct {
	ID           string     `json:"id"`
	Trigger      string     `json:"trigger"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	NewLeads     int        `json:"new_leads"`
	SearchErrors int        `json:"search_errors"`
	Error        string     `json:"error,omitempty"`
}

func toLeadDTOs(in []lead.Lead) []leadDTO {
	out := make([]leadDTO, 0, len(in))
	for _, l := range in {
		out = append(out, leadDTO{
			ID:        l.ID,
			Score:     l.Score,
			Title:     l.Title,
			Channel:   l.Channel,
			URL:       l.URL,
			Author:    l.Author,
			CreatedAt: l.CreatedAt,
		})
	}
	return out
}

func toScanDTOs(in []lead.ScanRun) []scanDTO {
	out := make([]scanDTO, 0, len(in))
	for _, run := range in {
		out = append(out, scanDTO{
			ID:           run.ID,
			Trigger:      string(run.Trigger),
			Status:       string(run.Status),
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			NewLeads:     run.NewLeads,
			SearchErrors: run.SearchErrors,
			Error:        run.ErrorMessage,
		})
	}
	return out
}
