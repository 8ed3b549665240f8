// Package cleanup scans a batch of inbox metadata for space that can be
// reclaimed.
package cleanup

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/models"
)

const (
	MaxRecords           = 500
	LargeAttachmentBytes = 5 * 1024 * 1024
	DefaultDraftMaxAge   = 7 * 24 * time.Hour
	UnknownSize          = "unknown"

	oldUnreadAge   = 30 * 24 * time.Hour
	oldEmailMonths = 6
)

type Options struct {
	DraftMaxAge time.Duration
	MaxRecords  int
	Now         func() time.Time
}

type Analyzer struct {
	draftMaxAge time.Duration
	maxRecords  int
	now         func() time.Time
}

func NewAnalyzer(opts Options) *Analyzer {
	a := &Analyzer{
		draftMaxAge: opts.DraftMaxAge,
		maxRecords:  opts.MaxRecords,
		now:         opts.Now,
	}
	if a.draftMaxAge <= 0 {
		a.draftMaxAge = DefaultDraftMaxAge
	}
	if a.maxRecords <= 0 || a.maxRecords > MaxRecords {
		a.maxRecords = MaxRecords
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

type bucket struct {
	ids   []string
	bytes int64
}

func (b *bucket) add(rec models.EmailRecord) {
	b.ids = append(b.ids, rec.ID)
	b.bytes += rec.Size
}

func (b bucket) report() models.CleanupBucket {
	ids := b.ids
	if ids == nil {
		ids = []string{}
	}
	return models.CleanupBucket{
		Count:     len(b.ids),
		Size:      FormatBytes(b.bytes),
		SizeBytes: b.bytes,
		IDs:       ids,
	}
}

// Analyze buckets inbox records and drafts independently; one record may land
// in several buckets. Records with an unparseable date only qualify for the
// size-based bucket. Spam and trash come straight from the provider counters.
func (a *Analyzer) Analyze(records []models.EmailRecord, counters models.ProviderCounters, drafts []models.EmailRecord) models.CleanupReport {
	now := a.now().UTC()
	if len(records) > a.maxRecords {
		slog.Warn("cleanup input truncated", "received", len(records), "limit", a.maxRecords)
		records = records[:a.maxRecords]
	}

	oldCutoff := now.AddDate(0, -oldEmailMonths, 0)
	unreadCutoff := now.Add(-oldUnreadAge)
	draftCutoff := now.Add(-a.draftMaxAge)

	var oldEmails, oldUnread, large, staleDrafts bucket
	reclaim := map[string]int64{}

	for _, rec := range records {
		if rec.HasAttachment && rec.Size > LargeAttachmentBytes {
			large.add(rec)
			reclaim[rec.ID] = rec.Size
		}

		sent, ok := header.ParseDate(rec.Date)
		if !ok {
			continue
		}
		if sent.Before(oldCutoff) {
			oldEmails.add(rec)
			reclaim[rec.ID] = rec.Size
		}
		if !rec.IsRead && sent.Before(unreadCutoff) {
			oldUnread.add(rec)
		}
	}

	for _, d := range drafts {
		created, ok := header.ParseDate(d.Date)
		if !ok || !created.Before(draftCutoff) {
			continue
		}
		staleDrafts.add(d)
		reclaim["draft:"+d.ID] = d.Size
	}

	reclaimable := lo.Sum(lo.Values(reclaim))

	return models.CleanupReport{
		ScanID:           uuid.New(),
		GeneratedAt:      now,
		Scanned:          len(records),
		OldEmails:        oldEmails.report(),
		OldUnread:        oldUnread.report(),
		LargeAttachments: large.report(),
		Drafts:           staleDrafts.report(),
		Spam:             counterBucket(counters.SpamCount),
		Trash:            counterBucket(counters.TrashCount),
		Reclaimable:      FormatBytes(reclaimable),
	}
}

func counterBucket(n int) models.CleanupBucket {
	if n < 0 {
		n = 0
	}
	return models.CleanupBucket{Count: n, Size: UnknownSize}
}
