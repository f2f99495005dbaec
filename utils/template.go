package utils

import (
	"regexp"
	"strings"
)

// Placeholders recognised in subject and body templates.
const (
	PlaceholderName        = "{namn}"
	PlaceholderServiceType = "{tjänst}"
	PlaceholderSignature   = "{signatur}"
	PlaceholderCompanyName = "{company_name}"
)

// DefaultServiceType replaces {tjänst} when the lead has no service type.
const DefaultServiceType = "städtjänster"

var (
	greetingWithoutName = regexp.MustCompile(`Hej \{namn\},?`)
	excessNewlines      = regexp.MustCompile(`\n{3,}`)
)

// TemplateContext holds the values a template is rendered against.
// Nil optional fields fall back as documented on RenderTemplate.
type TemplateContext struct {
	CustomerName *string `json:"namn,omitempty"`
	ServiceType  *string `json:"tjänst,omitempty"`
	Signature    string  `json:"signatur"`
	CompanyName  *string `json:"company_name,omitempty"`
}

// RenderTemplate substitutes the context into tmpl.
//
// A missing name turns the greeting "Hej {namn}," into "Hej!" and removes any
// other {namn}. A missing service type renders as DefaultServiceType. The
// signature is always substituted. A missing company name is removed. Runs of
// three or more newlines collapse to two and the result is trimmed.
func RenderTemplate(tmpl string, ctx TemplateContext) string {
	result := tmpl

	if name := valueOf(ctx.CustomerName); name != "" {
		result = strings.ReplaceAll(result, PlaceholderName, name)
	} else {
		result = greetingWithoutName.ReplaceAllLiteralString(result, "Hej!")
		result = strings.ReplaceAll(result, PlaceholderName, "")
	}

	service := valueOf(ctx.ServiceType)
	if service == "" {
		service = DefaultServiceType
	}
	result = strings.ReplaceAll(result, PlaceholderServiceType, service)

	result = strings.ReplaceAll(result, PlaceholderSignature, ctx.Signature)
	result = strings.ReplaceAll(result, PlaceholderCompanyName, valueOf(ctx.CompanyName))

	result = excessNewlines.ReplaceAllLiteralString(result, "\n\n")
	return strings.TrimSpace(result)
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
