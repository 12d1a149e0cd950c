// internal/workers/kyc/extract-document-data/models.go
package extractdocumentdata

type Input struct {
	DriverID     string `json:"driverId"`
	ImagePath    string `json:"imagePath"`
	DocumentType string `json:"documentType"`
}

type Output struct {
	ExtractedText string       `json:"extractedText"`
	Fields        ParsedFields `json:"fields"`
	TextFallback  bool         `json:"textFallback"`
	Reason        string       `json:"reason,omitempty"`
}

// ParsedFields holds candidate values read off a document. Missing values are "".
type ParsedFields struct {
	Name          string `json:"name"`
	LicenseNumber string `json:"licenseNumber"`
	ExpiryDate    string `json:"expiryDate"`
	DateOfBirth   string `json:"dateOfBirth"`
	Address       string `json:"address"`
}

// TextResult distinguishes engine output from substituted text.
type TextResult struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}
