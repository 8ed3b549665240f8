package subscription

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/mailsift/internal/models"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func day(n float64) string {
	return base.Add(time.Duration(n * 24 * float64(time.Hour))).Format(time.RFC1123Z)
}

func TestEstimateFrequency_Thresholds(t *testing.T) {
	tests := []struct {
		gap  float64
		want models.Frequency
	}{
		{1, models.FrequencyDaily},
		{1.49, models.FrequencyDaily},
		{1.5, models.FrequencyEveryOtherDay},
		{3, models.FrequencyEveryOtherDay},
		{4, models.FrequencyWeekly},
		{9.9, models.FrequencyWeekly},
		{10, models.FrequencyBiweekly},
		{20, models.FrequencyMonthly},
		{44, models.FrequencyMonthly},
		{45, models.FrequencySporadic},
	}
	for _, tc := range tests {
		got := EstimateFrequency([]string{day(0), day(tc.gap), day(2 * tc.gap)})
		assert.Equal(t, tc.want, got, "gap %v days", tc.gap)
	}
}

func TestEstimateFrequency_SingleAndMalformed(t *testing.T) {
	assert.Equal(t, models.FrequencySingle, EstimateFrequency(nil))
	assert.Equal(t, models.FrequencySingle, EstimateFrequency([]string{day(0)}))
	assert.Equal(t, models.FrequencySingle, EstimateFrequency([]string{day(0), "garbage", ""}))
	assert.Equal(t, models.FrequencyDaily, EstimateFrequency([]string{day(0), "garbage", day(1)}))
}

func TestEstimateFrequency_OrderIndependent(t *testing.T) {
	dates := []string{day(0), day(2), day(9), day(11), day(30), "bad"}
	want := EstimateFrequency(dates)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]string(nil), dates...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, EstimateFrequency(shuffled))
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, models.StatusActive, ClassifyStatus(70, false))
	assert.Equal(t, models.StatusActive, ClassifyStatus(100, true))
	assert.Equal(t, models.StatusAtRisk, ClassifyStatus(69, false))
	assert.Equal(t, models.StatusAtRisk, ClassifyStatus(40, true))
	assert.Equal(t, models.StatusSpam, ClassifyStatus(39, false))
	assert.Equal(t, models.StatusInactive, ClassifyStatus(39, true))
	assert.Equal(t, models.StatusSpam, ClassifyStatus(0, false))
}

func TestGroupScore(t *testing.T) {
	assert.Equal(t, 50, GroupScore(3, false, models.FrequencyWeekly))
	assert.Equal(t, 60, GroupScore(3, true, models.FrequencyWeekly))
	assert.Equal(t, 30, GroupScore(2, false, models.FrequencyDaily))
	assert.Equal(t, 75, GroupScore(6, true, models.FrequencyMonthly))
	assert.Equal(t, 50, GroupScore(5, true, models.FrequencyEveryOtherDay))
	assert.Equal(t, 65, GroupScore(49, false, models.FrequencySporadic))
	assert.Equal(t, 15, GroupScore(50, false, models.FrequencyDaily))
}

func TestDetect_NewsletterEndToEnd(t *testing.T) {
	records := []models.EmailRecord{
		{ID: "1", From: `"ACME News" <news@acme.com>`, Date: day(0), HasUnsubscribe: true, UnsubscribeLink: "https://acme.com/u"},
		{ID: "2", From: `"ACME News" <news@acme.com>`, Date: day(3), HasUnsubscribe: true},
		{ID: "3", From: `"ACME News" <news@acme.com>`, Date: day(6), HasUnsubscribe: true},
	}

	groups := Detect(records, false)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "acme.com", g.Domain)
	assert.Equal(t, "news@acme.com", g.SenderEmail)
	assert.Equal(t, "ACME News", g.SenderName)
	assert.Equal(t, []string{"1", "2", "3"}, g.EmailIDs)
	assert.Equal(t, models.FrequencyEveryOtherDay, g.Frequency)
	assert.True(t, g.HasUnsubscribe)
	assert.Equal(t, "https://acme.com/u", g.UnsubscribeLink)
	// 50 base, +10 unsubscribe, -10 every-other-day, no size bonus at 3 members.
	assert.Equal(t, 50, g.Score)
	assert.Equal(t, models.StatusAtRisk, g.Status)
	require.NotNil(t, g.LastEmailAt)
	assert.Equal(t, 6*24*time.Hour, g.LastEmailAt.Sub(base))
}

func TestDetect_FiltersSingletonsUnlessDebug(t *testing.T) {
	records := []models.EmailRecord{
		{ID: "a1", From: "Alice <alice@friends.net>", Date: day(0)},
		{ID: "s1", From: "Shop <shop@store.com>", Date: day(0)},
		{ID: "s2", From: "Shop <shop@store.com>", Date: day(1)},
		{ID: "n1", From: "Digest <digest@medium.com>", Date: day(0)},
		{ID: "u1", From: "Undisclosed", Date: "nope"},
	}

	groups := Detect(records, false)
	domains := make([]string, 0, len(groups))
	for _, g := range groups {
		domains = append(domains, g.Domain)
	}
	assert.Equal(t, []string{"store.com", "medium.com"}, domains)

	all := Detect(records, true)
	require.Len(t, all, 4)
	assert.Equal(t, "store.com", all[0].Domain)
	assert.Equal(t, []string{"friends.net", "medium.com", UnknownDomain}, []string{all[1].Domain, all[2].Domain, all[3].Domain})
}

func TestDetect_PartitionsEveryRecord(t *testing.T) {
	senders := []string{
		"a@x.com", "News <news@y.org>", "broken header", "", "b@x.com", "<c@z.io>", "d@y.org",
	}
	var records []models.EmailRecord
	for i := 0; i < 60; i++ {
		records = append(records, models.EmailRecord{
			ID:   fmt.Sprintf("id-%d", i),
			From: senders[i%len(senders)],
			Date: day(float64(i % 9)),
		})
	}

	all := Detect(records, true)
	seen := make(map[string]int)
	for _, g := range all {
		assert.NotEmpty(t, g.Domain)
		assert.Equal(t, len(g.EmailIDs), g.EmailCount)
		for _, id := range g.EmailIDs {
			seen[id]++
		}
	}
	require.Len(t, seen, len(records))
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s", id)
	}

	assert.GreaterOrEqual(t, len(all), len(Detect(records, false)))

	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].EmailCount, all[i].EmailCount)
	}
}

func TestAnnotate(t *testing.T) {
	groups := []models.SubscriptionGroup{
		{Domain: "acme.com", SenderEmail: "news@acme.com"},
		{Domain: "store.com", SenderEmail: "shop@store.com"},
		{Domain: "bank.com", SenderEmail: "alerts@bank.com"},
	}
	Annotate(groups, models.RuleSet{
		Shield:    []string{"news@acme.com"},
		Rollup:    []string{"store.com"},
		Whitelist: []string{"alerts@bank.com", "news@acme.com"},
	})

	assert.True(t, groups[0].Shielded)
	assert.True(t, groups[0].Trusted)
	assert.False(t, groups[0].RolledUp)
	assert.True(t, groups[1].RolledUp)
	assert.False(t, groups[1].Shielded)
	assert.True(t, groups[2].Trusted)
}
