// Package subscription turns a batch of email metadata into scored sender
// groups.
package subscription

import (
	"sort"

	"github.com/samber/lo"
	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/models"
)

// UnknownDomain collects records whose sender has no extractable domain.
const UnknownDomain = "unknown"

type bucket struct {
	group      models.SubscriptionGroup
	dates      []string
	newsletter bool
}

// groupRecords partitions records by sender domain without filtering.
// Buckets come back in first-encounter order.
func groupRecords(records []models.EmailRecord) []*bucket {
	index := make(map[string]*bucket)
	var order []*bucket

	for _, rec := range records {
		sender := header.ParseFrom(rec.From)
		domain := sender.Domain
		if domain == "" {
			domain = UnknownDomain
		}

		b, ok := index[domain]
		if !ok {
			b = &bucket{group: models.SubscriptionGroup{
				Domain:      domain,
				SenderEmail: sender.Email,
				SenderName:  sender.Name,
			}}
			index[domain] = b
			order = append(order, b)
		}

		g := &b.group
		g.EmailIDs = append(g.EmailIDs, rec.ID)
		b.dates = append(b.dates, rec.Date)
		if rec.HasUnsubscribe {
			g.HasUnsubscribe = true
		}
		if g.UnsubscribeLink == "" && rec.UnsubscribeLink != "" {
			g.UnsubscribeLink = rec.UnsubscribeLink
		}
		if rec.HasUnsubscribe || header.SenderLooksLikeNewsletter(sender.Email) {
			b.newsletter = true
		}
		if t, ok := header.ParseDate(rec.Date); ok {
			if g.LastEmailAt == nil || t.After(*g.LastEmailAt) {
				last := t
				g.LastEmailAt = &last
			}
		}
	}
	return order
}

// Detect groups, scores and classifies records. Unless debug is set, only
// groups with more than one member or a newsletter-looking member are kept.
// The result is ordered by member count, descending, ties in encounter order.
func Detect(records []models.EmailRecord, debug bool) []models.SubscriptionGroup {
	buckets := groupRecords(records)
	if !debug {
		buckets = lo.Filter(buckets, func(b *bucket, _ int) bool {
			return len(b.group.EmailIDs) > 1 || b.newsletter
		})
	}

	groups := make([]models.SubscriptionGroup, 0, len(buckets))
	for _, b := range buckets {
		g := b.group
		g.EmailCount = len(g.EmailIDs)
		g.Frequency = EstimateFrequency(b.dates)
		g.Score = GroupScore(g.EmailCount, g.HasUnsubscribe, g.Frequency)
		g.Status = ClassifyStatus(g.Score, g.HasUnsubscribe)
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].EmailCount > groups[j].EmailCount
	})
	return groups
}

// Annotate flags groups matched by the rule set, either by sender address or
// by domain.
func Annotate(groups []models.SubscriptionGroup, rules models.RuleSet) {
	shield := lo.SliceToMap(rules.Shield, func(s string) (string, struct{}) { return s, struct{}{} })
	rollup := lo.SliceToMap(rules.Rollup, func(s string) (string, struct{}) { return s, struct{}{} })
	trusted := lo.SliceToMap(rules.Whitelist, func(s string) (string, struct{}) { return s, struct{}{} })

	match := func(set map[string]struct{}, g models.SubscriptionGroup) bool {
		_, bySender := set[g.SenderEmail]
		_, byDomain := set[g.Domain]
		return bySender || byDomain
	}

	for i := range groups {
		groups[i].Shielded = match(shield, groups[i])
		groups[i].RolledUp = match(rollup, groups[i])
		groups[i].Trusted = match(trusted, groups[i])
	}
}
