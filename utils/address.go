package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

var replyPrefixes = []string{"Re:", "RE:", "Fwd:", "FWD:"}

// NormalizeEmail lower-cases and trims an address for matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeAddress accepts either a bare address or a display form such as
// `"Anna Svensson" <Anna@Example.se>` and returns the normalized bare address.
func NormalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return NormalizeEmail(addr.Address)
	}
	return NormalizeEmail(raw)
}

// ExtractNameFromEmail guesses a display name from the local part of an
// address: "anna.svensson@x.se" becomes "Anna Svensson". Local parts with
// fewer than two segments yield nil.
func ExtractNameFromEmail(email string) *string {
	local, _, _ := strings.Cut(email, "@")
	segments := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(segments) < 2 {
		return nil
	}
	for i, s := range segments {
		segments[i] = capitalizeFirst(s)
	}
	name := strings.Join(segments, " ")
	return &name
}

// ExtractThreadID strips reply and forward prefixes from a subject. A subject
// without such a prefix is returned whole.
func ExtractThreadID(subject string) string {
	stripped := subject
	found := false
	for _, prefix := range replyPrefixes {
		if strings.Contains(stripped, prefix) {
			found = true
			stripped = strings.ReplaceAll(stripped, prefix, "")
		}
	}
	if !found {
		return subject
	}
	return strings.TrimSpace(stripped)
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
