package header

import (
	"strings"

	"github.com/samber/lo"
	"github.com/znz-systems/mailsift/internal/models"
)

var newsletterKeywords = []string{
	"newsletter", "updates", "noreply", "no-reply", "news@", "digest",
	"weekly", "daily", "marketing", "promo", "notification", "alert",
	"info@", "hello@", "team@",
}

// SenderLooksLikeNewsletter reports whether a normalized sender address
// contains one of the bulk-mail keywords.
func SenderLooksLikeNewsletter(email string) bool {
	email = strings.ToLower(email)
	return lo.ContainsBy(newsletterKeywords, func(kw string) bool {
		return strings.Contains(email, kw)
	})
}

// LooksLikeNewsletter reports whether the record carries an unsubscribe
// header or comes from a bulk-mail style sender address.
func LooksLikeNewsletter(rec models.EmailRecord) bool {
	if rec.HasUnsubscribe {
		return true
	}
	return SenderLooksLikeNewsletter(ParseFrom(rec.From).Email)
}
