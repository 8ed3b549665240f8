package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailRecord is the provider-neutral metadata shape produced by mailbox
// adapters. Date is kept as the raw header text because it may be malformed.
type EmailRecord struct {
	ID              string   `json:"id"`
	From            string   `json:"from"`
	Subject         string   `json:"subject"`
	Date            string   `json:"date"`
	Snippet         string   `json:"snippet,omitempty"`
	Size            int64    `json:"size"`
	HasAttachment   bool     `json:"hasAttachment"`
	HasUnsubscribe  bool     `json:"hasUnsubscribe"`
	UnsubscribeLink string   `json:"unsubscribeLink,omitempty"`
	LabelIDs        []string `json:"labelIds,omitempty"`
	IsRead          bool     `json:"isRead"`
}

type Frequency string

const (
	FrequencySingle        Frequency = "single occurrence"
	FrequencyDaily         Frequency = "daily"
	FrequencyEveryOtherDay Frequency = "every-other-day"
	FrequencyWeekly        Frequency = "weekly"
	FrequencyBiweekly      Frequency = "biweekly"
	FrequencyMonthly       Frequency = "monthly"
	FrequencySporadic      Frequency = "sporadic"
)

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusAtRisk   SubscriptionStatus = "at-risk"
	StatusSpam     SubscriptionStatus = "spam"
	StatusInactive SubscriptionStatus = "inactive"
)

// SubscriptionGroup is a cluster of records sharing a sender domain. Groups are
// rebuilt on every detection pass and never persisted.
type SubscriptionGroup struct {
	Domain          string             `json:"domain"`
	SenderEmail     string             `json:"senderEmail"`
	SenderName      string             `json:"senderName"`
	EmailIDs        []string           `json:"emailIds"`
	EmailCount      int                `json:"emailCount"`
	Frequency       Frequency          `json:"frequency"`
	HasUnsubscribe  bool               `json:"hasUnsubscribe"`
	UnsubscribeLink string             `json:"unsubscribeLink,omitempty"`
	Score           int                `json:"score"`
	Status          SubscriptionStatus `json:"status"`
	LastEmailAt     *time.Time         `json:"lastEmailAt,omitempty"`

	Shielded bool `json:"shielded"`
	RolledUp bool `json:"rolledUp"`
	Trusted  bool `json:"trusted"`
}

type Category string

const (
	CategoryKeep    Category = "keep"
	CategoryNeutral Category = "neutral"
	CategoryDelete  Category = "delete"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Tier string

const (
	TierAI    Tier = "ai"
	TierLocal Tier = "local"
)

// Classification is the per-email scoring outcome. Tier records which scorer
// produced it.
type Classification struct {
	EmailID        string   `json:"emailId"`
	Score          int      `json:"score"`
	Reason         string   `json:"reason"`
	Category       Category `json:"category"`
	Confidence     int      `json:"confidence"`
	IsNewsletter   bool     `json:"isNewsletter"`
	Priority       Priority `json:"priority"`
	SuggestedLabel string   `json:"suggestedLabel,omitempty"`
	Tier           Tier     `json:"tier"`
}

// SenderBehavior counts the user's past decisions for one sender.
type SenderBehavior struct {
	Keep   int `json:"keep"`
	Delete int `json:"delete"`
}

func (b SenderBehavior) total() int { return b.Keep + b.Delete }

// KeepRate returns the fraction of keep decisions, or 0 with no history.
func (b SenderBehavior) KeepRate() float64 {
	if b.total() == 0 {
		return 0
	}
	return float64(b.Keep) / float64(b.total())
}

// DeleteRate returns the fraction of delete decisions, or 0 with no history.
func (b SenderBehavior) DeleteRate() float64 {
	if b.total() == 0 {
		return 0
	}
	return float64(b.Delete) / float64(b.total())
}

type SenderAction string

const (
	ActionKeep   SenderAction = "keep"
	ActionDelete SenderAction = "delete"
)

// RuleSet holds the user's sender rules. A sender is in at most one of Shield
// and Rollup; Whitelist is independent.
type RuleSet struct {
	Shield    []string `json:"shield"`
	Rollup    []string `json:"rollup"`
	Whitelist []string `json:"whitelist"`
}

// ProviderCounters are totals reported by the mailbox provider itself.
type ProviderCounters struct {
	SpamCount  int `json:"spamCount"`
	TrashCount int `json:"trashCount"`
}

type CleanupBucket struct {
	Count     int      `json:"count"`
	Size      string   `json:"size"`
	SizeBytes int64    `json:"sizeBytes"`
	IDs       []string `json:"ids,omitempty"`
}

type CleanupReport struct {
	ScanID           uuid.UUID     `json:"scanId"`
	GeneratedAt      time.Time     `json:"generatedAt"`
	Scanned          int           `json:"scanned"`
	OldEmails        CleanupBucket `json:"oldEmails"`
	OldUnread        CleanupBucket `json:"oldUnread"`
	LargeAttachments CleanupBucket `json:"largeAttachments"`
	Drafts           CleanupBucket `json:"drafts"`
	Spam             CleanupBucket `json:"spam"`
	Trash            CleanupBucket `json:"trash"`
	Reclaimable      string        `json:"reclaimable"`
}
