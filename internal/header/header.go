// Package header extracts sender identity and timestamps from the loosely
// formatted header text that mailbox adapters hand over.
package header

import (
	"regexp"
	"strings"
)

var (
	bracketAddr = regexp.MustCompile(`<([^>]+)>`)
	bareAddr    = regexp.MustCompile(`[^\s<>"',;()]+@[^\s<>"',;()]+`)
	domainPart  = regexp.MustCompile(`@([^>]+)`)
)

// Sender is the canonical identity extracted from a From header.
type Sender struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// ParseFrom never fails. Unparseable input yields the lowercased text as the
// email and an empty domain.
func ParseFrom(from string) Sender {
	raw := strings.TrimSpace(from)

	var s Sender
	bracketed := false
	if m := bracketAddr.FindStringSubmatchIndex(raw); m != nil {
		s.Email = strings.ToLower(strings.TrimSpace(raw[m[2]:m[3]]))
		s.Name = cleanName(raw[:m[0]])
		bracketed = true
	} else if m := bareAddr.FindString(raw); m != "" {
		s.Email = strings.ToLower(m)
	} else {
		s.Email = strings.ToLower(raw)
	}

	if !bracketed || s.Name == "" {
		s.Name = localPart(s.Email)
	}

	if m := domainPart.FindStringSubmatch(raw); m != nil {
		s.Domain = strings.ToLower(strings.TrimSpace(m[1]))
	}
	return s
}

// Domain is shorthand for ParseFrom(from).Domain.
func Domain(from string) string {
	return ParseFrom(from).Domain
}

func cleanName(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, `'`, "")
	return strings.TrimSpace(s)
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}
