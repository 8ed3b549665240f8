package handlers

import (
	"log/slog"
	"net/http"

	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/models"
	"github.com/znz-systems/mailsift/internal/store"
)

// SenderHandler records keep/delete decisions that feed local scoring.
type SenderHandler struct {
	actions store.SenderActionStore
}

// NewSenderHandler creates a SenderHandler. actions may be nil, in which case
// recording is unavailable.
func NewSenderHandler(actions store.SenderActionStore) *SenderHandler {
	return &SenderHandler{actions: actions}
}

type senderActionRequest struct {
	Sender string              `json:"sender"`
	Action models.SenderAction `json:"action"`
}

func (h *SenderHandler) HandleRecordAction(w http.ResponseWriter, r *http.Request) {
	if h.actions == nil {
		writeJSON(w, http.StatusServiceUnavailable, jsonResponse{Error: "sender history requires a database"})
		return
	}

	var req senderActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: err.Error()})
		return
	}

	sender := header.ParseFrom(req.Sender).Email
	if sender == "" {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: "sender is required"})
		return
	}
	switch req.Action {
	case models.ActionKeep, models.ActionDelete:
	default:
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: "action must be keep or delete"})
		return
	}

	if err := h.actions.RecordAction(r.Context(), sender, req.Action); err != nil {
		slog.Error("failed to record sender action", "sender", sender, "error", err)
		writeJSON(w, http.StatusInternalServerError, jsonResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{OK: true})
}
