package subscription

import "github.com/znz-systems/mailsift/internal/models"

// GroupScore rates a sender group's relevance on 0-100. It is independent of
// the per-email keep/neutral/delete scoring.
func GroupScore(memberCount int, hasUnsubscribe bool, freq models.Frequency) int {
	score := 50
	if hasUnsubscribe {
		score += 10
	}
	switch freq {
	case models.FrequencyDaily:
		score -= 20
	case models.FrequencyEveryOtherDay:
		score -= 10
	}
	switch {
	case memberCount >= 50:
		score -= 15
	case memberCount > 5:
		score += 15
	}
	return clamp(score)
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
