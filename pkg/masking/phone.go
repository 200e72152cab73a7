// Package masking hides customer PII in log output and handoff summaries.
package masking

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`\+?\d{10,15}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Phone masks an E.164 phone number, keeping the country code prefix and the
// last two digits: "+201001234567" → "+2010******67".
func Phone(number string) string {
	n := strings.TrimSpace(number)
	if len(n) < 8 {
		return strings.Repeat("*", len(n))
	}
	head := 5
	if !strings.HasPrefix(n, "+") {
		head = 4
	}
	return n[:head] + strings.Repeat("*", len(n)-head-2) + n[len(n)-2:]
}

// Text masks phone numbers and email addresses embedded in free text. It is
// defensive: on no match the input is returned unchanged.
func Text(s string) string {
	out := phonePattern.ReplaceAllStringFunc(s, Phone)
	out = emailPattern.ReplaceAllStringFunc(out, func(m string) string {
		at := strings.Index(m, "@")
		if at <= 1 {
			return "***" + m[at:]
		}
		return m[:1] + strings.Repeat("*", at-1) + m[at:]
	})
	return out
}
