package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/znz-systems/mailsift/internal/models"
	"github.com/znz-systems/mailsift/internal/rules"
)

// RulesHandler exposes the rule store.
type RulesHandler struct {
	rules *rules.Store
}

func NewRulesHandler(store *rules.Store) *RulesHandler {
	return &RulesHandler{rules: store}
}

type senderRequest struct {
	Sender string `json:"sender"`
}

func (h *RulesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rs, err := h.rules.Load(r.Context())
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, jsonResponse{Error: "failed to load rules"})
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *RulesHandler) HandleShield(w http.ResponseWriter, r *http.Request) {
	h.mutateFromBody(w, r, h.rules.AddToShield)
}

func (h *RulesHandler) HandleRollup(w http.ResponseWriter, r *http.Request) {
	h.mutateFromBody(w, r, h.rules.AddToRollup)
}

func (h *RulesHandler) HandleTrust(w http.ResponseWriter, r *http.Request) {
	h.mutateFromBody(w, r, h.rules.Trust)
}

func (h *RulesHandler) HandleUntrust(w http.ResponseWriter, r *http.Request) {
	h.mutateFromPath(w, r, h.rules.Untrust)
}

func (h *RulesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	h.mutateFromPath(w, r, h.rules.Remove)
}

type mutation func(ctx context.Context, sender string) (models.RuleSet, error)

func (h *RulesHandler) mutateFromBody(w http.ResponseWriter, r *http.Request, fn mutation) {
	var req senderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: err.Error()})
		return
	}
	h.apply(w, r, fn, req.Sender)
}

func (h *RulesHandler) mutateFromPath(w http.ResponseWriter, r *http.Request, fn mutation) {
	sender, err := url.PathUnescape(chi.URLParam(r, "sender"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: "invalid sender"})
		return
	}
	h.apply(w, r, fn, sender)
}

func (h *RulesHandler) apply(w http.ResponseWriter, r *http.Request, fn mutation, sender string) {
	rs, err := fn(r.Context(), sender)
	if err != nil {
		if errors.Is(err, rules.ErrInvalidSender) {
			writeJSON(w, http.StatusBadRequest, jsonResponse{Error: err.Error()})
			return
		}
		slog.Error("failed to update rules", "sender", sender, "error", err)
		writeJSON(w, http.StatusInternalServerError, jsonResponse{Error: "failed to save rules"})
		return
	}
	writeJSON(w, http.StatusOK, rs)
}
