package subscription

import "github.com/znz-systems/mailsift/internal/models"

// ClassifyStatus maps a group score and unsubscribe capability to a
// lifecycle status.
func ClassifyStatus(score int, hasUnsubscribe bool) models.SubscriptionStatus {
	switch {
	case score >= 70:
		return models.StatusActive
	case score >= 40:
		return models.StatusAtRisk
	case !hasUnsubscribe:
		return models.StatusSpam
	default:
		return models.StatusInactive
	}
}
