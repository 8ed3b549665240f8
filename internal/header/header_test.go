package header

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/znz-systems/mailsift/internal/models"
)

func TestParseFrom(t *testing.T) {
	tests := []struct {
		in   string
		want Sender
	}{
		{`"ACME News" <News@ACME.com>`, Sender{Email: "news@acme.com", Name: "ACME News", Domain: "acme.com"}},
		{`Jane Doe <jane@example.org>`, Sender{Email: "jane@example.org", Name: "Jane Doe", Domain: "example.org"}},
		{`<alerts@bank.com>`, Sender{Email: "alerts@bank.com", Name: "alerts", Domain: "bank.com"}},
		{`digest@Medium.com`, Sender{Email: "digest@medium.com", Name: "digest", Domain: "medium.com"}},
		{`Promo Team promo@shop.io`, Sender{Email: "promo@shop.io", Name: "promo", Domain: "shop.io"}},
		{`Mailer Daemon`, Sender{Email: "mailer daemon", Name: "mailer daemon", Domain: ""}},
		{``, Sender{}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseFrom(tc.in), "ParseFrom(%q)", tc.in)
	}
}

func TestSenderLooksLikeNewsletter(t *testing.T) {
	assert.True(t, SenderLooksLikeNewsletter("noreply@github.com"))
	assert.True(t, SenderLooksLikeNewsletter("Hello@startup.io"))
	assert.True(t, SenderLooksLikeNewsletter("weekly-picks@store.com"))
	assert.False(t, SenderLooksLikeNewsletter("jane@example.org"))
}

func TestLooksLikeNewsletter(t *testing.T) {
	assert.True(t, LooksLikeNewsletter(models.EmailRecord{From: "Jane <jane@example.org>", HasUnsubscribe: true}))
	assert.True(t, LooksLikeNewsletter(models.EmailRecord{From: "Shop <marketing@shop.com>"}))
	assert.False(t, LooksLikeNewsletter(models.EmailRecord{From: "Jane <jane@example.org>"}))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"Fri, 01 Mar 2024 10:00:00 +0000",
		"Fri, 1 Mar 2024 11:00:00 +0100 (CET)",
		"2024-03-01T10:00:00Z",
		"1709287200000",
	} {
		got, ok := ParseDate(in)
		if assert.True(t, ok, "ParseDate(%q)", in) {
			assert.True(t, want.Equal(got), "ParseDate(%q) = %v", in, got)
		}
	}

	for _, in := range []string{"", "not a date", "yesterday-ish"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, "ParseDate(%q)", in)
	}
}
