// Package mailbox adapts mail providers to the provider-neutral EmailRecord
// shape.
package mailbox

import (
	"context"
	"errors"
	"strings"

	"github.com/znz-systems/mailsift/internal/models"
)

var ErrNotConfigured = errors.New("no mailbox provider configured")

// DefaultLimit caps how many inbox records one fetch returns.
const DefaultLimit = 500

type Provider interface {
	FetchInbox(ctx context.Context, limit int) ([]models.EmailRecord, error)
	// FetchDrafts returns drafts with Date holding the creation time.
	FetchDrafts(ctx context.Context) ([]models.EmailRecord, error)
	Counters(ctx context.Context) (models.ProviderCounters, error)
}

// Disabled is the provider used when none is configured.
type Disabled struct{}

func (Disabled) FetchInbox(context.Context, int) ([]models.EmailRecord, error) {
	return nil, ErrNotConfigured
}

func (Disabled) FetchDrafts(context.Context) ([]models.EmailRecord, error) {
	return nil, ErrNotConfigured
}

func (Disabled) Counters(context.Context) (models.ProviderCounters, error) {
	return models.ProviderCounters{}, ErrNotConfigured
}

// Static serves fixed data.
type Static struct {
	Inbox  []models.EmailRecord
	Drafts []models.EmailRecord
	Totals models.ProviderCounters
}

func (s *Static) FetchInbox(_ context.Context, limit int) ([]models.EmailRecord, error) {
	return clampLimit(s.Inbox, limit), nil
}

func (s *Static) FetchDrafts(context.Context) ([]models.EmailRecord, error) {
	return s.Drafts, nil
}

func (s *Static) Counters(context.Context) (models.ProviderCounters, error) {
	return s.Totals, nil
}

func clampLimit(records []models.EmailRecord, limit int) []models.EmailRecord {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

// UnsubscribeLink picks a target from a List-Unsubscribe header value such as
// "<mailto:x@y.com>, <https://y.com/u>". HTTP targets win over mailto.
func UnsubscribeLink(value string) string {
	var mailto string
	for _, part := range strings.Split(value, ",") {
		part = strings.Trim(strings.TrimSpace(part), "<>")
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
			return part
		case strings.HasPrefix(lower, "mailto:") && mailto == "":
			mailto = part
		}
	}
	return mailto
}
