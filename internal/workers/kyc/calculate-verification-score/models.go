// internal/workers/kyc/calculate-verification-score/models.go
package calculateverificationscore

import "kyc-workers/internal/models"

type Reference struct {
	Verified bool `json:"verified"`
}

// ScoreInput is the externally assembled evidence for one driver. Nil
// pointers mean "not supplied", which differs from false or zero.
type ScoreInput struct {
	FacialScore *float64 `json:"facialScore"`

	LicenseVerified bool `json:"licenseVerified"`
	IDVerified      bool `json:"idVerified"`
	AddressVerified bool `json:"addressVerified"`
	DocumentsValid  bool `json:"documentsValid"`

	CriminalCheckPassed bool `json:"criminalCheckPassed"`
	DrivingRecordGood   bool `json:"drivingRecordGood"`
	EmploymentVerified  bool `json:"employmentVerified"`

	References []Reference `json:"references"`

	NameMatches      *bool    `json:"nameMatches"`
	DatesConsistent  *bool    `json:"datesConsistent"`
	AddressesMatch   *bool    `json:"addressesMatch"`
	DataCompleteness *float64 `json:"dataCompleteness"`
}

type ScoreResult struct {
	FinalScore  int                                `json:"finalScore"`
	Components  models.VerificationScoreComponents `json:"components"`
	Substituted bool                               `json:"substituted"`
	Reason      string                             `json:"reason,omitempty"`
}

type Input struct {
	DriverID string `json:"driverId"`
	ScoreInput
}

type Output struct {
	VerificationResultID string                             `json:"verificationResultId"`
	FinalScore           int                                `json:"finalScore"`
	Components           models.VerificationScoreComponents `json:"components"`
	Substituted          bool                               `json:"substituted"`
	Reason               string                             `json:"reason,omitempty"`
}
