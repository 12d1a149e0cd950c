// internal/models/document.go
package models

import "time"

type DocumentType string

const (
	DocumentLicense     DocumentType = "license"
	DocumentIDCard      DocumentType = "id_card"
	DocumentPassport    DocumentType = "passport"
	DocumentPermit      DocumentType = "permit"
	DocumentCertificate DocumentType = "certificate"
	// DocumentPhoto is stored alongside submissions but is not a validatable identity document.
	DocumentPhoto DocumentType = "photo"
)

type DocumentSource string

const (
	SourceOCR    DocumentSource = "ocr"
	SourceManual DocumentSource = "manual"
)

// DriverDocument is an uploaded file attached to a driver.
type DriverDocument struct {
	ID         string       `json:"id"`
	DriverID   string       `json:"driverId"`
	Type       DocumentType `json:"type"`
	FilePath   string       `json:"filePath"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

// DocumentValidationRequest carries document data either typed in by an
// admin or produced by the OCR pipeline. Optional fields are empty strings.
type DocumentValidationRequest struct {
	DocumentType   string         `json:"documentType"`
	DocumentNumber string         `json:"documentNumber"`
	IssueDate      string         `json:"issueDate,omitempty"`
	ExpiryDate     string         `json:"expiryDate,omitempty"`
	Name           string         `json:"name,omitempty"`
	DateOfBirth    string         `json:"dateOfBirth,omitempty"`
	Source         DocumentSource `json:"source,omitempty"`
}
