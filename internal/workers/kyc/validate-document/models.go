// internal/workers/kyc/validate-document/models.go
package validatedocument

import "kyc-workers/internal/models"

type Input struct {
	DriverID string `json:"driverId"`
	models.DocumentValidationRequest
}

type Output = ValidationResult

// ValidationResult is the rule engine verdict. Errors is empty, never nil,
// when the document is valid.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
