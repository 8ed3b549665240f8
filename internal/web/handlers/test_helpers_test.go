package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/znz-systems/mailsift/internal/cleanup"
	"github.com/znz-systems/mailsift/internal/mailbox"
	"github.com/znz-systems/mailsift/internal/models"
	"github.com/znz-systems/mailsift/internal/ratelimit"
	"github.com/znz-systems/mailsift/internal/rules"
	"github.com/znz-systems/mailsift/internal/scoring"
	"github.com/znz-systems/mailsift/internal/store"
)

// --- Shared mocks ---

type mockSenderActionStore struct {
	actions   map[string]models.SenderBehavior
	lookupErr error
	recordErr error
}

func newMockSenderActionStore() *mockSenderActionStore {
	return &mockSenderActionStore{actions: make(map[string]models.SenderBehavior)}
}

func (m *mockSenderActionStore) RecordAction(_ context.Context, sender string, action models.SenderAction) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	b := m.actions[sender]
	if action == models.ActionKeep {
		b.Keep++
	} else {
		b.Delete++
	}
	m.actions[sender] = b
	return nil
}

func (m *mockSenderActionStore) BehaviorFor(_ context.Context, senders []string) (map[string]models.SenderBehavior, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := make(map[string]models.SenderBehavior)
	for _, s := range senders {
		if b, ok := m.actions[s]; ok {
			out[s] = b
		}
	}
	return out, nil
}

type failingRuleLoader struct{}

func (failingRuleLoader) Load(context.Context) (models.RuleSet, error) {
	return models.RuleSet{}, errors.New("backend down")
}

type brokenBackend struct{ rules.MemoryBackend }

func (b *brokenBackend) Write(context.Context, []byte) error { return errors.New("disk full") }

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAnalysisHandler(ruleStore RuleLoader, behavior *mockSenderActionStore, provider mailbox.Provider) *AnalysisHandler {
	engine := scoring.NewEngine(nil, ratelimit.NoWait{}, scoring.Options{})
	analyzer := cleanup.NewAnalyzer(cleanup.Options{Now: func() time.Time { return testNow }})
	var actions store.SenderActionStore
	if behavior != nil {
		actions = behavior
	}
	return NewAnalysisHandler(engine, analyzer, ruleStore, actions, provider, 0)
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func daysAgo(d int) string {
	return testNow.AddDate(0, 0, -d).Format(time.RFC1123Z)
}
