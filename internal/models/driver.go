// internal/models/driver.go
package models

import "time"

type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationReviewing VerificationStatus = "reviewing"
	VerificationVerified  VerificationStatus = "verified"
	VerificationRejected  VerificationStatus = "rejected"
)

type KYCStatus string

const (
	KYCNotStarted KYCStatus = "not_started"
	KYCInProgress KYCStatus = "in_progress"
	KYCCompleted  KYCStatus = "completed"
	KYCRejected   KYCStatus = "rejected"
)

// MaxKYCRetries bounds kyc_retry_count on the driver record.
const MaxKYCRetries = 3

type Driver struct {
	ID                 string             `json:"id"`
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	Email              string             `json:"email"`
	Phone              string             `json:"phone"`
	Status             string             `json:"status"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	KYCStatus          KYCStatus          `json:"kycStatus"`
	KYCRetryCount      int                `json:"kycRetryCount"`
	ProfilePhotoPath   string             `json:"profilePhotoPath,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

func (d *Driver) FullName() string {
	switch {
	case d.FirstName == "":
		return d.LastName
	case d.LastName == "":
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}

type Admin struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
