// Package scoring rates individual emails as keep, neutral or delete. An
// AI-assisted tier rates one representative email per sender domain, up to
// MaxPromptEmails of them; every record it does not cover is scored by the
// local heuristic.
package scoring

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/models"
)

// ErrTierUnavailable marks any failure of the AI tier: transport errors,
// timeouts and responses that do not follow the verdict schema.
var ErrTierUnavailable = errors.New("ai tier unavailable")

const (
	DefaultBatchSize = 5
	DefaultTimeout   = 20 * time.Second
)

const defaultAIConfidence = 80

// Verdict is one item of the classification collaborator's response.
type Verdict struct {
	EmailID    string          `json:"emailId"`
	Score      int             `json:"score"`
	Reason     string          `json:"reason"`
	Category   models.Category `json:"category"`
	Confidence int             `json:"confidence,omitempty"`
}

// Classifier is the external AI classification collaborator.
type Classifier interface {
	Classify(ctx context.Context, batch []models.EmailRecord) ([]Verdict, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, batch []models.EmailRecord) ([]Verdict, error)

func (f ClassifierFunc) Classify(ctx context.Context, batch []models.EmailRecord) ([]Verdict, error) {
	return f(ctx, batch)
}

// Pacer spaces calls to the classifier.
type Pacer interface {
	Wait(ctx context.Context) error
}

type Options struct {
	BatchSize int
	// Timeout bounds one classifier call.
	Timeout time.Duration
	// StageTimeout bounds the whole AI tier, pacing included. Defaults to
	// twice Timeout.
	StageTimeout time.Duration
	// MaxAIRecords caps how many records reach the AI tier. Defaults to
	// MaxPromptEmails.
	MaxAIRecords int
}

type Engine struct {
	classifier   Classifier
	pacer        Pacer
	batchSize    int
	timeout      time.Duration
	stageTimeout time.Duration
	maxAIRecords int
}

// NewEngine builds an engine. A nil classifier makes every rating local.
func NewEngine(classifier Classifier, pacer Pacer, opts Options) *Engine {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	stage := opts.StageTimeout
	if stage <= 0 {
		stage = 2 * timeout
	}
	maxAI := opts.MaxAIRecords
	if maxAI <= 0 {
		maxAI = MaxPromptEmails
	}
	return &Engine{
		classifier:   classifier,
		pacer:        pacer,
		batchSize:    size,
		timeout:      timeout,
		stageTimeout: stage,
		maxAIRecords: maxAI,
	}
}

// Result holds one classification per input record, in input order.
type Result struct {
	RunID           uuid.UUID               `json:"runId"`
	Classifications []models.Classification `json:"classifications"`
	AIBatches       int                     `json:"aiBatches"`
	FailedBatches   int                     `json:"failedBatches"`
}

// Rate scores every record. behavior is keyed by normalized sender email and
// may be nil. Rate never fails: AI failures degrade to the local tier.
func (e *Engine) Rate(ctx context.Context, records []models.EmailRecord, behavior map[string]models.SenderBehavior) Result {
	res := Result{
		RunID:           uuid.New(),
		Classifications: make([]models.Classification, 0, len(records)),
	}

	verdicts := map[string]Verdict{}
	if e.classifier != nil && len(records) > 0 {
		stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
		verdicts, res.AIBatches, res.FailedBatches = e.classifyBatches(stageCtx, representatives(records, e.maxAIRecords))
		cancel()
	}

	for _, rec := range records {
		if v, ok := verdicts[rec.ID]; ok {
			res.Classifications = append(res.Classifications, fromVerdict(rec, v))
			continue
		}
		sender := header.ParseFrom(rec.From).Email
		res.Classifications = append(res.Classifications, ScoreLocal(rec, behavior[sender]))
	}
	return res
}

// representatives returns the first record of each sender domain, in input
// order, up to limit records.
func representatives(records []models.EmailRecord, limit int) []models.EmailRecord {
	seen := make(map[string]struct{})
	out := make([]models.EmailRecord, 0, min(limit, len(records)))
	for _, rec := range records {
		if len(out) == limit {
			break
		}
		domain := header.ParseFrom(rec.From).Domain
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func (e *Engine) classifyBatches(ctx context.Context, records []models.EmailRecord) (map[string]Verdict, int, int) {
	batches := lo.Chunk(records, e.batchSize)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failed   int
		verdicts = make(map[string]Verdict, len(records))
	)
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []models.EmailRecord) {
			defer wg.Done()
			got, err := e.classifyBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Warn("ai scoring batch degraded to local tier", "batch", i, "size", len(batch), "error", err)
				return
			}
			for id, v := range got {
				verdicts[id] = v
			}
		}(i, batch)
	}
	wg.Wait()
	return verdicts, len(batches), failed
}

func (e *Engine) classifyBatch(ctx context.Context, batch []models.EmailRecord) (map[string]Verdict, error) {
	if e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, errors.Join(ErrTierUnavailable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	got, err := e.classifier.Classify(ctx, batch)
	if err != nil {
		return nil, errors.Join(ErrTierUnavailable, err)
	}

	ids := lo.SliceToMap(batch, func(r models.EmailRecord) (string, struct{}) { return r.ID, struct{}{} })
	out := make(map[string]Verdict, len(got))
	for _, v := range got {
		v, ok := normalizeVerdict(v)
		if !ok {
			continue
		}
		if _, inBatch := ids[v.EmailID]; inBatch {
			out[v.EmailID] = v
		}
	}
	if len(out) == 0 {
		return nil, errors.Join(ErrTierUnavailable, errors.New("no usable verdicts"))
	}
	return out, nil
}

func normalizeVerdict(v Verdict) (Verdict, bool) {
	v.EmailID = strings.TrimSpace(v.EmailID)
	if v.EmailID == "" || v.Score < 0 || v.Score > 100 {
		return v, false
	}
	v.Category = models.Category(strings.ToLower(strings.TrimSpace(string(v.Category))))
	switch v.Category {
	case models.CategoryKeep, models.CategoryNeutral, models.CategoryDelete:
	case "":
		v.Category = CategoryForScore(v.Score)
	default:
		return v, false
	}
	if v.Confidence <= 0 || v.Confidence > 100 {
		v.Confidence = defaultAIConfidence
	}
	return v, true
}

func fromVerdict(rec models.EmailRecord, v Verdict) models.Classification {
	local := ScoreLocal(rec, models.SenderBehavior{})
	return models.Classification{
		EmailID:        rec.ID,
		Score:          v.Score,
		Reason:         v.Reason,
		Category:       v.Category,
		Confidence:     v.Confidence,
		IsNewsletter:   local.IsNewsletter,
		Priority:       PriorityForScore(v.Score),
		SuggestedLabel: local.SuggestedLabel,
		Tier:           models.TierAI,
	}
}
