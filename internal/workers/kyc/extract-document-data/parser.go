// internal/workers/kyc/extract-document-data/parser.go
package extractdocumentdata

import (
	"regexp"
	"strings"
)

type field int

const (
	fieldName field = iota
	fieldLicenseNumber
	fieldExpiryDate
	fieldDateOfBirth
	fieldAddress
)

// dateToken matches numeric dates (2030-01-05, 05/01/2030, 05.01.2030) and
// spelled months (Jan 5, 2030 / 5 January 2030).
const dateToken = `(\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}|[a-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+[a-z]{3,9}\.?\s+\d{4})`

type fieldRule struct {
	field   field
	pattern *regexp.Regexp
}

// parseRules is evaluated top to bottom. For every field the label-specific
// pattern comes first and looser alternates follow.
var parseRules = []fieldRule{
	{fieldName, regexp.MustCompile(`(?im)^[ \t]*(?:full[ \t]+)?name[ \t]*[:\-][ \t]*([^\n]+)$`)},
	{fieldName, regexp.MustCompile(`(?im)^[ \t]*(?:holder|licensee|driver)[ \t]*[:\-][ \t]*([^\n]+)$`)},

	{fieldLicenseNumber, regexp.MustCompile(`(?i)\b(?:licen[cs]e|dl)\s*(?:no\.?|number|num|#)\s*[:\-]?\s*([a-z0-9][a-z0-9\-]{3,19})`)},
	{fieldLicenseNumber, regexp.MustCompile(`(?i)\b(?:document|doc)\s*(?:no\.?|number|#)\s*[:\-]?\s*([a-z0-9][a-z0-9\-]{3,19})`)},
	{fieldLicenseNumber, regexp.MustCompile(`(?i)\b([a-z]{2,3}\d{6,12})\b`)},

	{fieldExpiryDate, regexp.MustCompile(`(?i)\b(?:expiry|expiration|expires|exp)(?:\s+date)?\s*[:\-]?\s*` + dateToken)},
	{fieldExpiryDate, regexp.MustCompile(`(?i)\bvalid\s+(?:until|thru|through|to)\s*[:\-]?\s*` + dateToken)},

	{fieldDateOfBirth, regexp.MustCompile(`(?i)(?:\bdate\s+of\s+birth|\bdob|\bd\.o\.b\.?)\s*[:\-]?\s*` + dateToken)},
	{fieldDateOfBirth, regexp.MustCompile(`(?i)\b(?:born|birth\s*date)\s*[:\-]?\s*` + dateToken)},

	{fieldAddress, regexp.MustCompile(`(?im)^[ \t]*(?:address|addr\.?)[ \t]*[:\-][ \t]*([^\n]+)$`)},
	{fieldAddress, regexp.MustCompile(`(?im)^[ \t]*(?:residence|residential[ \t]+address)[ \t]*[:\-][ \t]*([^\n]+)$`)},
}

// ParseDocumentText pulls candidate fields out of raw OCR text.
func ParseDocumentText(raw string) ParsedFields {
	found := make(map[field]string, 5)
	for _, rule := range parseRules {
		if _, done := found[rule.field]; done {
			continue
		}
		m := rule.pattern.FindStringSubmatch(raw)
		if len(m) < 2 {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			found[rule.field] = v
		}
	}

	return ParsedFields{
		Name:          found[fieldName],
		LicenseNumber: found[fieldLicenseNumber],
		ExpiryDate:    found[fieldExpiryDate],
		DateOfBirth:   found[fieldDateOfBirth],
		Address:       found[fieldAddress],
	}
}
