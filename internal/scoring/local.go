package scoring

import (
	"strings"

	"github.com/znz-systems/mailsift/internal/header"
	"github.com/znz-systems/mailsift/internal/models"
)

// LocalConfidence is reported for every local-tier classification; the
// heuristic never claims more certainty than this.
const LocalConfidence = 50

const (
	behaviorRateThreshold = 0.7
	behaviorAdjustment    = 30
	unsubscribePenalty    = 10
	promoPenalty          = 15
	importanceBonus       = 20
)

var (
	promoKeywords      = []string{"promoção", "oferta", "desconto", "grátis", "free", "sale", "off"}
	importanceKeywords = []string{"urgente", "importante", "confirmação", "pagamento", "fatura"}
)

// ScoreLocal rates one record with the deterministic heuristic. It makes no
// external calls and depends only on its arguments.
func ScoreLocal(rec models.EmailRecord, behavior models.SenderBehavior) models.Classification {
	score := 50
	var reasons []string

	switch {
	case behavior.DeleteRate() > behaviorRateThreshold:
		score -= behaviorAdjustment
		reasons = append(reasons, "you usually delete this sender")
	case behavior.KeepRate() > behaviorRateThreshold:
		score += behaviorAdjustment
		reasons = append(reasons, "you usually keep this sender")
	}

	if rec.HasUnsubscribe {
		score -= unsubscribePenalty
		reasons = append(reasons, "newsletter/list")
	}

	subject := strings.ToLower(rec.Subject)
	promo := containsAny(subject, promoKeywords)
	if promo {
		score -= promoPenalty
		reasons = append(reasons, "promotional subject")
	}
	important := containsAny(subject, importanceKeywords)
	if important {
		score += importanceBonus
		reasons = append(reasons, "important subject")
	}

	score = clamp(score)
	if len(reasons) == 0 {
		reasons = append(reasons, "no strong signals")
	}

	newsletter := header.LooksLikeNewsletter(rec)
	return models.Classification{
		EmailID:        rec.ID,
		Score:          score,
		Reason:         strings.Join(reasons, "; "),
		Category:       CategoryForScore(score),
		Confidence:     LocalConfidence,
		IsNewsletter:   newsletter,
		Priority:       PriorityForScore(score),
		SuggestedLabel: suggestLabel(important, promo, newsletter),
		Tier:           models.TierLocal,
	}
}

// CategoryForScore maps a 0-100 score to keep/neutral/delete.
func CategoryForScore(score int) models.Category {
	switch {
	case score < 40:
		return models.CategoryDelete
	case score > 60:
		return models.CategoryKeep
	default:
		return models.CategoryNeutral
	}
}

func PriorityForScore(score int) models.Priority {
	switch {
	case score > 60:
		return models.PriorityHigh
	case score < 40:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func suggestLabel(important, promo, newsletter bool) string {
	switch {
	case important:
		return "Important"
	case promo:
		return "Promotions"
	case newsletter:
		return "Newsletters"
	default:
		return ""
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
