// internal/workers/kyc/validate-document/validator.go
package validatedocument

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"kyc-workers/internal/common/validation"
	"kyc-workers/internal/models"
)

const (
	MsgTypeRequired       = "Document type is required"
	MsgNumberRequired     = "Document number is required"
	MsgExpiryRequired     = "Expiry date is required"
	MsgInvalidType        = "Invalid document type"
	MsgInvalidExpiry      = "Invalid expiry date format"
	MsgExpired            = "Document has expired"
	MsgExpiryTooFar       = "Expiry date cannot be more than 10 years in the future"
	MsgInvalidIssue       = "Invalid issue date format"
	MsgIssueInFuture      = "Issue date cannot be in the future"
	MsgIssueAfterExpiry   = "Issue date must be before expiry date"
	MsgNameLength         = "Name must be between 2 and 100 characters"
	MsgNameCharset        = "Name can only contain letters, spaces, hyphens, and apostrophes"
	MsgNameNoLetter       = "Name must contain at least one letter"
	MsgInvalidDOB         = "Invalid date of birth format"
	MsgTooYoung           = "Driver must be at least 16 years old"
	MsgTooOld             = "Date of birth cannot be more than 100 years ago"
	MsgInternalValidation = "Document validation failed due to an internal error"
)

const (
	MinDriverAge     = 16
	MaxDriverAge     = 100
	MaxValidityYears = 10
)

var numberFormats = map[models.DocumentType]*regexp.Regexp{
	models.DocumentLicense:     regexp.MustCompile(`^[A-Z]{2,3}\d{6,12}$`),
	models.DocumentIDCard:      regexp.MustCompile(`^\d{8,12}$`),
	models.DocumentPassport:    regexp.MustCompile(`^[A-Z]\d{7,8}$`),
	models.DocumentPermit:      regexp.MustCompile(`^[A-Z]{2,3}\d{6,10}$`),
	models.DocumentCertificate: regexp.MustCompile(`^[A-Z]{2,4}\d{4,8}$`),
}

// dateLayouts are tried in order. Numeric day-first dates use '-' or '.',
// month-first dates use '/'.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate parses the accepted document date formats. Date-only values are
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// NormalizeNumber uppercases and strips whitespace.
func NormalizeNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

type Validator struct {
	Now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

// Validate runs every rule and collects all violations. It never panics.
func (v *Validator) Validate(req models.DocumentValidationRequest) (res ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ValidationResult{Valid: false, Errors: []string{MsgInternalValidation}}
		}
	}()

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}

	errs := make([]string, 0)
	docType := strings.TrimSpace(req.DocumentType)
	number := strings.TrimSpace(req.DocumentNumber)
	expiryRaw := strings.TrimSpace(req.ExpiryDate)

	if docType == "" {
		errs = append(errs, MsgTypeRequired)
	}
	if number == "" {
		errs = append(errs, MsgNumberRequired)
	}
	if expiryRaw == "" {
		errs = append(errs, MsgExpiryRequired)
	}

	if docType != "" {
		format, known := numberFormats[models.DocumentType(docType)]
		switch {
		case !known:
			errs = append(errs, MsgInvalidType)
		case number != "" && !format.MatchString(NormalizeNumber(number)):
			errs = append(errs, fmt.Sprintf("Invalid %s number format", docType))
		}
	}

	var expiry time.Time
	expiryOK := false
	if expiryRaw != "" {
		t, err := ParseDate(expiryRaw)
		if err != nil {
			errs = append(errs, MsgInvalidExpiry)
		} else {
			expiry, expiryOK = t, true
			if !expiry.After(now) {
				errs = append(errs, MsgExpired)
			}
			if expiry.After(now.AddDate(MaxValidityYears, 0, 0)) {
				errs = append(errs, MsgExpiryTooFar)
			}
		}
	}

	if issueRaw := strings.TrimSpace(req.IssueDate); issueRaw != "" {
		issue, err := ParseDate(issueRaw)
		if err != nil {
			errs = append(errs, MsgInvalidIssue)
		} else {
			if issue.After(now) {
				errs = append(errs, MsgIssueInFuture)
			}
			if expiryOK && !issue.Before(expiry) {
				errs = append(errs, MsgIssueAfterExpiry)
			}
		}
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		errs = append(errs, validateName(name)...)
	}

	if dobRaw := strings.TrimSpace(req.DateOfBirth); dobRaw != "" {
		dob, err := ParseDate(dobRaw)
		if err != nil {
			errs = append(errs, MsgInvalidDOB)
		} else {
			// Turning 16 today counts, as does being born exactly 100 years ago.
			if dob.After(now.AddDate(-MinDriverAge, 0, 0)) {
				errs = append(errs, MsgTooYoung)
			}
			if dob.Before(now.AddDate(-MaxDriverAge, 0, 0)) {
				errs = append(errs, MsgTooOld)
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateName(name string) []string {
	var errs []string
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		errs = append(errs, MsgNameLength)
	}
	hasLetter := false
	badChar := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == ' ' || r == '-' || r == '\'':
		default:
			badChar = true
		}
	}
	if badChar {
		errs = append(errs, MsgNameCharset)
	}
	if !hasLetter {
		errs = append(errs, MsgNameNoLetter)
	}
	return errs
}

// ValidateJSON checks a raw request against its schema before running the
// rules. Schema violations come back as an invalid result.
func (v *Validator) ValidateJSON(raw []byte) ValidationResult {
	schema, err := validation.Get(validation.SchemaDocumentValidationRequest)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{MsgInternalValidation}}
	}
	if sr := schema.ValidateJSON(raw); !sr.Valid {
		return ValidationResult{Valid: false, Errors: sr.Messages()}
	}
	var req models.DocumentValidationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}
	return v.Validate(req)
}
