// internal/models/verification.go
package models

import "time"

type VerificationScoreComponents struct {
	Facial      float64 `json:"facial"`
	Document    float64 `json:"document"`
	Background  float64 `json:"background"`
	Reference   float64 `json:"reference"`
	Consistency float64 `json:"consistency"`
}

// VerificationResult is written once per scoring run and never updated.
type VerificationResult struct {
	ID          string                      `json:"id"`
	DriverID    string                      `json:"driverId"`
	FinalScore  int                         `json:"finalScore"`
	Components  VerificationScoreComponents `json:"components"`
	Substituted bool                        `json:"substituted"`
	Reason      string                      `json:"reason,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt"`
}

// CompletionEvent signals that a driver finished submitting KYC material.
type CompletionEvent struct {
	EventID        string                 `json:"eventId,omitempty"`
	DriverID       string                 `json:"driverId"`
	CompletionData map[string]interface{} `json:"completionData,omitempty"`
}

// CompletionFailure is the dead-letter record for a completion that ran out
// of attempts.
type CompletionFailure struct {
	ID            string    `json:"id"`
	DriverID      string    `json:"driverId"`
	Attempts      int       `json:"attempts"`
	FailureReason string    `json:"failureReason"`
	JobKey        int64     `json:"jobKey"`
	CreatedAt     time.Time `json:"createdAt"`
}
