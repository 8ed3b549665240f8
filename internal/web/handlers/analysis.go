package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/lo"
	"github.com/znz-systems/mailsift/internal/cleanup"
	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/mailbox"
	"github.com/znz-systems/mailsift/internal/models"
	"github.com/znz-systems/mailsift/internal/scoring"
	"github.com/znz-systems/mailsift/internal/store"
	"github.com/znz-systems/mailsift/internal/subscription"
)

// RuleLoader is the subset of rules.Store needed to annotate groups.
type RuleLoader interface {
	Load(ctx context.Context) (models.RuleSet, error)
}

// AnalysisHandler serves subscription detection, per-email rating and cleanup
// scans, either over records in the request body or over the configured
// mailbox.
type AnalysisHandler struct {
	engine     *scoring.Engine
	analyzer   *cleanup.Analyzer
	rules      RuleLoader
	behavior   store.SenderActionStore
	provider   mailbox.Provider
	maxRecords int
}

// NewAnalysisHandler creates an AnalysisHandler. behavior may be nil when no
// database is configured.
func NewAnalysisHandler(engine *scoring.Engine, analyzer *cleanup.Analyzer, rules RuleLoader, behavior store.SenderActionStore, provider mailbox.Provider, maxRecords int) *AnalysisHandler {
	if provider == nil {
		provider = mailbox.Disabled{}
	}
	if maxRecords <= 0 {
		maxRecords = cleanup.MaxRecords
	}
	return &AnalysisHandler{
		engine:     engine,
		analyzer:   analyzer,
		rules:      rules,
		behavior:   behavior,
		provider:   provider,
		maxRecords: maxRecords,
	}
}

type subscriptionsRequest struct {
	Records []models.EmailRecord `json:"records"`
	Debug   bool                 `json:"debug"`
}

type subscriptionsResponse struct {
	Subscriptions []models.SubscriptionGroup `json:"subscriptions"`
	Count         int                        `json:"count"`
}

func (h *AnalysisHandler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	var req subscriptionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: err.Error()})
		return
	}
	h.writeSubscriptions(w, r, req.Records, req.Debug)
}

func (h *AnalysisHandler) HandleMailboxSubscriptions(w http.ResponseWriter, r *http.Request) {
	records, err := h.provider.FetchInbox(r.Context(), h.maxRecords)
	if err != nil {
		h.providerError(w, "fetch inbox", err)
		return
	}
	debug, _ := strconv.ParseBool(r.URL.Query().Get("debug"))
	h.writeSubscriptions(w, r, records, debug)
}

func (h *AnalysisHandler) writeSubscriptions(w http.ResponseWriter, r *http.Request, records []models.EmailRecord, debug bool) {
	groups := subscription.Detect(records, debug)

	rs, err := h.rules.Load(r.Context())
	if err != nil {
		// Detection does not depend on rules; serve unannotated groups.
		slog.Error("failed to load rules for annotation", "error", err)
	} else {
		subscription.Annotate(groups, rs)
	}

	if groups == nil {
		groups = []models.SubscriptionGroup{}
	}
	writeJSON(w, http.StatusOK, subscriptionsResponse{Subscriptions: groups, Count: len(groups)})
}

type ratesRequest struct {
	Records        []models.EmailRecord             `json:"records"`
	SenderBehavior map[string]models.SenderBehavior `json:"senderBehavior,omitempty"`
}

func (h *AnalysisHandler) HandleRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: err.Error()})
		return
	}

	behavior := req.SenderBehavior
	if behavior != nil {
		behavior = lo.MapKeys(behavior, func(_ models.SenderBehavior, k string) string {
			return header.ParseFrom(k).Email
		})
	} else {
		behavior = h.lookupBehavior(r.Context(), req.Records)
	}

	writeJSON(w, http.StatusOK, h.engine.Rate(r.Context(), req.Records, behavior))
}

// lookupBehavior reads stored sender decisions. Failures degrade to no
// history.
func (h *AnalysisHandler) lookupBehavior(ctx context.Context, records []models.EmailRecord) map[string]models.SenderBehavior {
	if h.behavior == nil || len(records) == 0 {
		return nil
	}
	senders := lo.Uniq(lo.Map(records, func(rec models.EmailRecord, _ int) string {
		return header.ParseFrom(rec.From).Email
	}))
	behavior, err := h.behavior.BehaviorFor(ctx, senders)
	if err != nil {
		slog.Warn("sender behavior lookup failed", "error", err)
		return nil
	}
	return behavior
}

type cleanupRequest struct {
	Records  []models.EmailRecord    `json:"records"`
	Counters models.ProviderCounters `json:"counters"`
	Drafts   []models.EmailRecord    `json:"drafts"`
}

func (h *AnalysisHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.analyzer.Analyze(req.Records, req.Counters, req.Drafts))
}

// HandleMailboxCleanup scans the configured mailbox. Counter and draft
// failures leave their buckets empty instead of failing the scan.
func (h *AnalysisHandler) HandleMailboxCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.provider.FetchInbox(ctx, h.maxRecords)
	if err != nil {
		h.providerError(w, "fetch inbox", err)
		return
	}

	counters, err := h.provider.Counters(ctx)
	if err != nil {
		slog.Warn("provider counters unavailable", "error", err)
	}
	drafts, err := h.provider.FetchDrafts(ctx)
	if err != nil {
		slog.Warn("provider drafts unavailable", "error", err)
	}

	writeJSON(w, http.StatusOK, h.analyzer.Analyze(records, counters, drafts))
}

func (h *AnalysisHandler) providerError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, mailbox.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, jsonResponse{Error: "no mailbox provider configured"})
		return
	}
	slog.Error("mailbox provider failed", "op", op, "error", err)
	writeJSON(w, http.StatusBadGateway, jsonResponse{Error: "mailbox provider error"})
}
