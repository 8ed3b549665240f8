package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/znz-systems/mailsift/internal/models"
)

// ParseRFC822 builds a record from a raw message. Size is the raw length.
// Bodies are skipped except to find attachment parts.
func ParseRFC822(id string, raw []byte) (models.EmailRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.EmailRecord{}, fmt.Errorf("raw RFC822 payload is empty")
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return models.EmailRecord{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	rec := models.EmailRecord{
		ID:      id,
		From:    headerText(mr.Header, "From"),
		Subject: headerText(mr.Header, "Subject"),
		Size:    int64(len(raw)),
	}
	if d, err := mr.Header.Date(); err == nil && !d.IsZero() {
		rec.Date = d.UTC().Format(time.RFC1123Z)
	} else {
		rec.Date = strings.TrimSpace(mr.Header.Get("Date"))
	}
	if v := strings.TrimSpace(mr.Header.Get("List-Unsubscribe")); v != "" {
		rec.HasUnsubscribe = true
		rec.UnsubscribeLink = UnsubscribeLink(v)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// A broken part ends the walk; headers are already read.
			break
		}
		if part == nil {
			continue
		}
		if isAttachmentPart(part.Header) {
			rec.HasAttachment = true
			break
		}
	}
	return rec, nil
}

func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(h.Get(key))
}

func isAttachmentPart(h mail.PartHeader) bool {
	switch ph := h.(type) {
	case *mail.AttachmentHeader:
		return true
	case *mail.InlineHeader:
		_, params, err := ph.ContentType()
		return err == nil && strings.TrimSpace(params["name"]) != ""
	}
	return false
}
