package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/znz-systems/mailsift/internal/models"
)

const (
	gmailUser    = "me"
	gmailWorkers = 8
)

var metadataHeaders = []string{"From", "Subject", "Date", "List-Unsubscribe"}

// GmailProvider reads message metadata through the Gmail API. It never
// downloads bodies.
type GmailProvider struct {
	svc *gmailv1.Service
}

// NewGmailProvider authenticates with an OAuth client secret and a cached
// token. The token must already exist; this process runs headless.
func NewGmailProvider(ctx context.Context, credentialsPath, tokenPath string) (*GmailProvider, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmailv1.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}
	tok, err := readToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token at %s: %w", tokenPath, err)
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailProvider{svc: svc}, nil
}

func NewGmailProviderFromService(svc *gmailv1.Service) *GmailProvider {
	return &GmailProvider{svc: svc}
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (p *GmailProvider) FetchInbox(ctx context.Context, limit int) ([]models.EmailRecord, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	resp, err := p.svc.Users.Messages.List(gmailUser).
		LabelIds("INBOX").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	ids := lo.Map(resp.Messages, func(m *gmailv1.Message, _ int) string { return m.Id })
	return p.fetchMetadata(ctx, ids), nil
}

// fetchMetadata loads messages with a bounded worker pool. Messages that fail
// to load are logged and skipped; order follows ids.
func (p *GmailProvider) fetchMetadata(ctx context.Context, ids []string) []models.EmailRecord {
	out := make([]*models.EmailRecord, len(ids))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < gmailWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				msg, err := p.svc.Users.Messages.Get(gmailUser, ids[i]).
					Format("metadata").
					MetadataHeaders(metadataHeaders...).
					Context(ctx).
					Do()
				if err != nil {
					slog.Warn("gmail metadata fetch failed", "id", ids[i], "error", err)
					continue
				}
				rec := gmailRecord(msg)
				out[i] = &rec
			}
		}()
	}

	for i := range ids {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return lo.FilterMap(out, func(r *models.EmailRecord, _ int) (models.EmailRecord, bool) {
		if r == nil {
			return models.EmailRecord{}, false
		}
		return *r, true
	})
}

func (p *GmailProvider) FetchDrafts(ctx context.Context) ([]models.EmailRecord, error) {
	resp, err := p.svc.Users.Drafts.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	var drafts []models.EmailRecord
	for _, d := range resp.Drafts {
		full, err := p.svc.Users.Drafts.Get(gmailUser, d.Id).Format("metadata").Context(ctx).Do()
		if err != nil {
			slog.Warn("gmail draft fetch failed", "id", d.Id, "error", err)
			continue
		}
		if full.Message == nil {
			continue
		}
		rec := gmailRecord(full.Message)
		rec.ID = d.Id
		// Drafts are aged by creation, not by their Date header.
		rec.Date = strconv.FormatInt(full.Message.InternalDate, 10)
		drafts = append(drafts, rec)
	}
	return drafts, nil
}

func (p *GmailProvider) Counters(ctx context.Context) (models.ProviderCounters, error) {
	spam, err := p.svc.Users.Labels.Get(gmailUser, "SPAM").Context(ctx).Do()
	if err != nil {
		return models.ProviderCounters{}, fmt.Errorf("get spam label: %w", err)
	}
	trash, err := p.svc.Users.Labels.Get(gmailUser, "TRASH").Context(ctx).Do()
	if err != nil {
		return models.ProviderCounters{}, fmt.Errorf("get trash label: %w", err)
	}
	return models.ProviderCounters{
		SpamCount:  int(spam.MessagesTotal),
		TrashCount: int(trash.MessagesTotal),
	}, nil
}

func gmailRecord(msg *gmailv1.Message) models.EmailRecord {
	rec := models.EmailRecord{
		ID:       msg.Id,
		Snippet:  msg.Snippet,
		Size:     msg.SizeEstimate,
		LabelIDs: msg.LabelIds,
		IsRead:   !lo.Contains(msg.LabelIds, "UNREAD"),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				rec.From = h.Value
			case "subject":
				rec.Subject = h.Value
			case "date":
				rec.Date = h.Value
			case "list-unsubscribe":
				rec.HasUnsubscribe = strings.TrimSpace(h.Value) != ""
				rec.UnsubscribeLink = UnsubscribeLink(h.Value)
			}
		}
		rec.HasAttachment = gmailHasAttachment(msg.Payload)
	}
	if rec.Date == "" && msg.InternalDate > 0 {
		rec.Date = strconv.FormatInt(msg.InternalDate, 10)
	}
	return rec
}

// gmailHasAttachment looks for a named part, falling back to the top-level
// multipart/mixed type that metadata responses still carry.
func gmailHasAttachment(part *gmailv1.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, p := range part.Parts {
		if gmailHasAttachment(p) {
			return true
		}
	}
	return strings.EqualFold(part.MimeType, "multipart/mixed")
}
