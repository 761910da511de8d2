package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/logger"
)

// CreateSnapshotRequest is the body for POST /v1/snapshots.
type CreateSnapshotRequest struct {
	ReferenceID string `json:"reference_id"`
	Token       string `json:"token,omitempty"`
}

// CreateSnapshotResponse is the body returned on snapshot creation.
type CreateSnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SourceWebhookRequest is the body for POST /v1/webhooks/source, the
// shape a source-side automation posts when a document changed.
type SourceWebhookRequest struct {
	ReferenceID string `json:"reference_id"`
}

// SnapshotResponse is the wire form of a snapshot.
type SnapshotResponse struct {
	ID                  string                `json:"id"`
	DocumentID          *string               `json:"document_id"`
	ReferenceID         string                `json:"reference_id"`
	TriggeredAt         string                `json:"triggered_at"`
	ExecutedAt          *string               `json:"executed_at"`
	FinishedAt          *string               `json:"finished_at"`
	Status              string                `json:"status"`
	Structure           domain.Structure      `json:"structure,omitempty"`
	StructureDiff       *domain.StructureDiff `json:"structure_diff,omitempty"`
	ChangedElements     []string              `json:"changed_elements,omitempty"`
	ChangedElementsDiff map[string]string     `json:"changed_elements_diff,omitempty"`
	Error               string                `json:"error,omitempty"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReferenceID == "" {
		http.Error(w, "reference_id required", http.StatusBadRequest)
		return
	}

	id, err := s.service.CreateSnapshot(r.Context(), req.ReferenceID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, CreateSnapshotResponse{SnapshotID: id})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.service.GetSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToSnapshotResponse(snap))
}

// handleSourceWebhook accepts change notifications from the source side
// and triggers a snapshot with the default credential.
func (s *Server) handleSourceWebhook(w http.ResponseWriter, r *http.Request) {
	var req SourceWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReferenceID == "" {
		http.Error(w, "reference_id required", http.StatusBadRequest)
		return
	}

	id, err := s.service.CreateSnapshot(r.Context(), req.ReferenceID, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, CreateSnapshotResponse{SnapshotID: id})
}

// ToSnapshotResponse converts a snapshot into its wire form. The CLI
// reuses it so both surfaces print the same shape.
func ToSnapshotResponse(snap *domain.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:                  snap.ID,
		DocumentID:          snap.DocumentID,
		ReferenceID:         snap.ReferenceID,
		TriggeredAt:         snap.TriggeredAt.Format(time.RFC3339Nano),
		ExecutedAt:          formatTimePtr(snap.ExecutedAt),
		FinishedAt:          formatTimePtr(snap.FinishedAt),
		Status:              string(snap.Status),
		Structure:           snap.Structure,
		StructureDiff:       snap.StructureDiff,
		ChangedElements:     snap.ChangedElements,
		ChangedElementsDiff: snap.ChangedElementsDiff,
		Error:               snap.Error,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339Nano)
	return &formatted
}

// writeError maps domain errors onto HTTP status codes without leaking
// internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, "invalid input", http.StatusBadRequest)
	case errors.Is(err, domain.ErrSnapshotInProgress):
		http.Error(w, "snapshot already in progress", http.StatusConflict)
	default:
		logger.Warn("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("writing response: %v", err)
	}
}
