// Package pii detects and removes personally identifiable information from
// expense descriptions before they are embedded or sent to external models.
package pii

import "regexp"

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+`)
	phoneRe = regexp.MustCompile(`(\+?\d[\d\s\-]{7,}\d)`)
	cardRe  = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
)

// Redactor scrubs emails, phone numbers, and card numbers from text.
// The zero value is ready to use.
type Redactor struct{}

// NewRedactor creates a new PII redactor.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// Redact replaces detected PII with fixed placeholders. It reports whether
// anything was found and which kinds of PII were present.
func (r *Redactor) Redact(text string) (string, bool, []string) {
	flags := []string{}
	clean := text

	// Card first: a card number also looks like a phone number to the
	// phone pattern, and the more specific label should win.
	if cardRe.MatchString(clean) {
		flags = append(flags, "card")
		clean = cardRe.ReplaceAllString(clean, "[REDACTED_CARD]")
	}
	if emailRe.MatchString(clean) {
		flags = append(flags, "email")
		clean = emailRe.ReplaceAllString(clean, "[REDACTED_EMAIL]")
	}
	if phoneRe.MatchString(clean) {
		flags = append(flags, "phone")
		clean = phoneRe.ReplaceAllString(clean, "[REDACTED_PHONE]")
	}

	return clean, len(flags) > 0, flags
}
