package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := map[string]string{
		"":                               "",
		"  Bob@Example.SE ":              "bob@example.se",
		`"Anna Svensson" <Anna@Kund.se>`: "anna@kund.se",
		"Anna Svensson <anna@kund.se>":   "anna@kund.se",
		"not an address":                 "not an address",
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeAddress(raw), raw)
	}
}

func TestExtractNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  *string
	}{
		{"anna.svensson@kund.se", Pointer("Anna Svensson")},
		{"john_doe-smith@example.com", Pointer("John Doe Smith")},
		{"åsa.öberg@kund.se", Pointer("Åsa Öberg")},
		{"anna..svensson@kund.se", Pointer("Anna Svensson")},
		{"anna@kund.se", nil},
		{"info@stadbolaget.se", nil},
		{".anna@kund.se", nil},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractNameFromEmail(tt.email))
		})
	}
}

func TestExtractThreadID(t *testing.T) {
	tests := map[string]string{
		"Re: Offert flyttstädning": "Offert flyttstädning",
		"RE: Fwd: Offert":          "Offert",
		"FWD: Offert":              "Offert",
		"Offert flyttstädning":     "Offert flyttstädning",
		"  Offert utan prefix  ":   "  Offert utan prefix  ",
		"":                         "",
	}
	for subject, want := range tests {
		assert.Equal(t, want, ExtractThreadID(subject), subject)
	}
}
