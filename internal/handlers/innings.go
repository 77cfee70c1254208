package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/ingest"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/projection"
	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// TargetRequest is the body of PUT .../target
type TargetRequest struct {
	Target int `json:"target"`
}

// StartInnings creates an innings
// Body: {"oversLimit": 20, "target": 151}; both optional
func (h *Handler) StartInnings(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var ictx models.InningsContext
	if err := decodeOptionalBody(w, r, &ictx); err != nil {
		h.fail(w, r, err)
		return
	}

	state, err := h.scorer.StartInnings(r.Context(), key, ictx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, state)
}

// GetState returns the last committed state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.scorer.State(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// ListInnings lists the innings numbers started for a match
func (h *Handler) ListInnings(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	innings, err := h.scorer.Innings(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matchId": matchID,
		"innings": innings,
	})
}

// GetDeliveries returns the raw delivery history
func (h *Handler) GetDeliveries(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	deliveries, err := h.scorer.Deliveries(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deliveries)
}

// SubmitDelivery appends one ball and returns the recomputed state. The body
// is a ball in any shape the ingest normalizer accepts.
func (h *Handler) SubmitDelivery(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var raw ingest.RawBall
	if err := decodeBody(w, r, &raw); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := ingest.Normalize(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	state, err := h.scorer.Recalculate(r.Context(), key, &d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// Recalculate recomputes the stored history without appending
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.scorer.Recalculate(r.Context(), key, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// SetTarget records the chase target
func (h *Handler) SetTarget(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req TargetRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.scorer.SetTarget(r.Context(), key, req.Target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// Archive closes the innings and copies it to the archive
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.scorer.Archive(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// GetTimeline returns the recent overs newest first
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.scorer.State(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projection.OverTimeline(state))
}

// GetCommentary returns the commentary feed
// Query params: filter (all, highlights, overs, wickets, sixes, fours, milestone)
func (h *Handler) GetCommentary(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter, err := projection.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.scorer.State(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projection.FilterCommentary(state.Commentary, filter))
}

// GetProjection returns the projected score table
// Query params: rates (comma separated runs per over, default 6,8,10,12)
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rates := projection.DefaultProjectionRates
	if q := r.URL.Query().Get("rates"); q != "" {
		rates = nil
		for _, part := range strings.Split(q, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || v < 0 {
				respondError(w, http.StatusBadRequest, "rates must be non-negative numbers")
				return
			}
			rates = append(rates, v)
		}
	}

	state, err := h.scorer.State(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows := projection.ProjectedScoreTable(state, rates)
	if rows == nil {
		rows = []projection.ProjectionRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// GetScorecard returns the batting and bowling card
func (h *Handler) GetScorecard(w http.ResponseWriter, r *http.Request) {
	key, err := inningsKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.scorer.State(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projection.BuildScorecard(state, nil))
}
