package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/mailsift/internal/models"
	"github.com/znz-systems/mailsift/internal/ratelimit"
)

type fakeClassifier struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(batch []models.EmailRecord) ([]Verdict, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, batch []models.EmailRecord) ([]Verdict, error) {
	ids := make([]string, 0, len(batch))
	for _, r := range batch {
		ids = append(ids, r.ID)
	}
	f.mu.Lock()
	f.calls = append(f.calls, ids)
	f.mu.Unlock()
	return f.respond(batch)
}

type countingPacer struct{ n atomic.Int32 }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.n.Add(1)
	return ctx.Err()
}

func makeRecords(n int) []models.EmailRecord {
	out := make([]models.EmailRecord, n)
	for i := range out {
		out[i] = models.EmailRecord{
			ID:      fmt.Sprintf("m%d", i),
			From:    fmt.Sprintf("Sender %d <news@sender%d.com>", i, i),
			Subject: "Weekly update",
		}
	}
	return out
}

func keepAll(batch []models.EmailRecord) ([]Verdict, error) {
	out := make([]Verdict, 0, len(batch))
	for _, r := range batch {
		out = append(out, Verdict{EmailID: r.ID, Score: 90, Reason: "looks personal", Category: models.CategoryKeep})
	}
	return out, nil
}

func TestEngine_NoClassifierIsLocal(t *testing.T) {
	e := NewEngine(nil, ratelimit.NoWait{}, Options{})
	res := e.Rate(context.Background(), makeRecords(3), nil)

	require.Len(t, res.Classifications, 3)
	for _, c := range res.Classifications {
		assert.Equal(t, models.TierLocal, c.Tier)
	}
	assert.Zero(t, res.AIBatches)
}

func TestEngine_AIResultsPreferred(t *testing.T) {
	fc := &fakeClassifier{respond: keepAll}
	pacer := &countingPacer{}
	e := NewEngine(fc, pacer, Options{})

	res := e.Rate(context.Background(), makeRecords(12), nil)

	require.Len(t, res.Classifications, 12)
	for i, c := range res.Classifications {
		assert.Equal(t, fmt.Sprintf("m%d", i), c.EmailID, "input order preserved")
		if i >= MaxPromptEmails {
			assert.Equal(t, models.TierLocal, c.Tier, "record %d", i)
			continue
		}
		assert.Equal(t, models.TierAI, c.Tier)
		assert.Equal(t, 90, c.Score)
		assert.Equal(t, models.PriorityHigh, c.Priority)
		assert.Equal(t, defaultAIConfidence, c.Confidence)
	}
	assert.Equal(t, 2, res.AIBatches)
	assert.Zero(t, res.FailedBatches)
	assert.Len(t, fc.calls, 2)
	for _, call := range fc.calls {
		assert.LessOrEqual(t, len(call), DefaultBatchSize)
	}
	assert.Equal(t, int32(2), pacer.n.Load())
}

func TestEngine_FailedBatchFallsBackAlone(t *testing.T) {
	fc := &fakeClassifier{respond: func(batch []models.EmailRecord) ([]Verdict, error) {
		if batch[0].ID == "m5" {
			return nil, errors.New("upstream 503")
		}
		return keepAll(batch)
	}}
	e := NewEngine(fc, ratelimit.NoWait{}, Options{})

	res := e.Rate(context.Background(), makeRecords(15), nil)

	require.Len(t, res.Classifications, 15)
	assert.Equal(t, 1, res.FailedBatches)
	for i, c := range res.Classifications {
		if i >= 5 {
			assert.Equal(t, models.TierLocal, c.Tier, "record %d", i)
			assert.Equal(t, LocalConfidence, c.Confidence)
		} else {
			assert.Equal(t, models.TierAI, c.Tier, "record %d", i)
		}
	}
}

func TestEngine_PartialAndInvalidVerdicts(t *testing.T) {
	fc := &fakeClassifier{respond: func(batch []models.EmailRecord) ([]Verdict, error) {
		return []Verdict{
			{EmailID: "m0", Score: 10, Category: "DELETE", Reason: "spam"},
			{EmailID: "m1", Score: 140, Category: models.CategoryKeep},
			{EmailID: "m2", Score: 70, Category: "archive"},
			{EmailID: "m3", Score: 65},
			{EmailID: "other", Score: 50, Category: models.CategoryNeutral},
		}, nil
	}}
	e := NewEngine(fc, ratelimit.NoWait{}, Options{})

	res := e.Rate(context.Background(), makeRecords(5), nil)
	byID := map[string]models.Classification{}
	for _, c := range res.Classifications {
		byID[c.EmailID] = c
	}

	assert.Len(t, res.Classifications, 5)
	assert.Equal(t, models.TierAI, byID["m0"].Tier)
	assert.Equal(t, models.CategoryDelete, byID["m0"].Category)
	assert.Equal(t, models.TierLocal, byID["m1"].Tier)
	assert.Equal(t, models.TierLocal, byID["m2"].Tier)
	assert.Equal(t, models.TierAI, byID["m3"].Tier)
	assert.Equal(t, models.CategoryKeep, byID["m3"].Category)
	assert.Equal(t, models.TierLocal, byID["m4"].Tier)
	_, leaked := byID["other"]
	assert.False(t, leaked)
}

func TestEngine_StalledClassifierTimesOut(t *testing.T) {
	stall := ClassifierFunc(func(ctx context.Context, batch []models.EmailRecord) ([]Verdict, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := NewEngine(stall, ratelimit.NoWait{}, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	res := e.Rate(context.Background(), makeRecords(7), nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 2, res.FailedBatches)
	for _, c := range res.Classifications {
		assert.Equal(t, models.TierLocal, c.Tier)
	}
}

func TestEngine_FullInboxMakesBoundedCalls(t *testing.T) {
	fc := &fakeClassifier{respond: keepAll}
	e := NewEngine(fc, ratelimit.NoWait{}, Options{})

	res := e.Rate(context.Background(), makeRecords(500), nil)

	require.Len(t, res.Classifications, 500)
	assert.LessOrEqual(t, len(fc.calls), 2)
	assert.Equal(t, 2, res.AIBatches)
	ai := 0
	for _, c := range res.Classifications {
		if c.Tier == models.TierAI {
			ai++
		}
	}
	assert.Equal(t, MaxPromptEmails, ai)
}

func TestEngine_OneRepresentativePerDomain(t *testing.T) {
	fc := &fakeClassifier{respond: keepAll}
	e := NewEngine(fc, ratelimit.NoWait{}, Options{})
	recs := []models.EmailRecord{
		{ID: "a1", From: "Shop <deals@shop.com>", Subject: "Sale"},
		{ID: "a2", From: "Shop <news@shop.com>", Subject: "News"},
		{ID: "b1", From: "Bank <alerts@bank.com>", Subject: "Statement"},
		{ID: "a3", From: "deals@shop.com", Subject: "Sale again"},
	}

	res := e.Rate(context.Background(), recs, nil)

	require.Len(t, fc.calls, 1)
	assert.Equal(t, []string{"a1", "b1"}, fc.calls[0])
	tiers := map[string]models.Tier{}
	for _, c := range res.Classifications {
		tiers[c.EmailID] = c.Tier
	}
	assert.Equal(t, map[string]models.Tier{
		"a1": models.TierAI,
		"a2": models.TierLocal,
		"b1": models.TierAI,
		"a3": models.TierLocal,
	}, tiers)
}

func TestEngine_StageDeadlineBoundsPacing(t *testing.T) {
	fc := &fakeClassifier{respond: keepAll}
	e := NewEngine(fc, ratelimit.NewPacer(time.Hour), Options{StageTimeout: 50 * time.Millisecond})

	start := time.Now()
	res := e.Rate(context.Background(), makeRecords(10), nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, res.Classifications, 10)
	assert.Equal(t, 2, res.AIBatches)
	assert.Equal(t, 1, res.FailedBatches, "the second batch cannot be paced within the deadline")
	assert.Len(t, fc.calls, 1)
}

func TestEngine_UsesSenderBehavior(t *testing.T) {
	e := NewEngine(nil, nil, Options{})
	recs := []models.EmailRecord{{ID: "x", From: "Shop <Deals@Shop.com>", Subject: "hello"}}

	res := e.Rate(context.Background(), recs, map[string]models.SenderBehavior{
		"deals@shop.com": {Delete: 9, Keep: 1},
	})
	require.Len(t, res.Classifications, 1)
	assert.Equal(t, 20, res.Classifications[0].Score)
}

func TestParseVerdicts(t *testing.T) {
	v, err := ParseVerdicts("```json\n[{\"emailId\":\"a\",\"score\":12,\"reason\":\"promo\",\"category\":\"delete\"}]\n```")
	require.NoError(t, err)
	require.Len(t, v, 1)
	assert.Equal(t, Verdict{EmailID: "a", Score: 12, Reason: "promo", Category: models.CategoryDelete}, v[0])

	_, err = ParseVerdicts("I cannot help with that.")
	assert.ErrorIs(t, err, ErrTierUnavailable)

	_, err = ParseVerdicts("[{\"emailId\": 5,]")
	assert.ErrorIs(t, err, ErrTierUnavailable)
}

func TestParseVerdicts_FractionalScoresAndBracketedProse(t *testing.T) {
	reply := "Here you go [note: scores are estimates]:\n[\n  {\"emailId\":\"a\",\"score\":85.5,\"reason\":\"bill\",\"category\":\"keep\",\"confidence\":72.4},\n  {\"emailId\":\"b\",\"score\":12.2,\"category\":\"delete\"}\n]"

	v, err := ParseVerdicts(reply)
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, Verdict{EmailID: "a", Score: 86, Reason: "bill", Category: models.CategoryKeep, Confidence: 72}, v[0])
	assert.Equal(t, 12, v[1].Score)
	assert.Zero(t, v[1].Confidence)
}

func TestBuildPrompt_Bounded(t *testing.T) {
	prompt, err := BuildPrompt(makeRecords(25))
	require.NoError(t, err)
	assert.Contains(t, prompt, `"emailId":"m9"`)
	assert.NotContains(t, prompt, `"emailId":"m10"`)
}
