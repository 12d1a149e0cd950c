// internal/models/notification.go
package models

import "time"

const (
	RecipientAdmin  = "admin"
	RecipientDriver = "driver"

	CategoryKYCReview = "kyc_review"

	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// NotificationDispatch is handed to the delivery capability, one per recipient.
type NotificationDispatch struct {
	ID            string                 `json:"id"`
	RecipientID   string                 `json:"recipientId"`
	RecipientType string                 `json:"recipientType"`
	Category      string                 `json:"category"`
	Priority      string                 `json:"priority"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Data          map[string]interface{} `json:"data,omitempty"`
	ActionURL     string                 `json:"actionUrl,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// NotificationEnvelope is the retry bookkeeping for one completion unit.
type NotificationEnvelope struct {
	DriverID      string        `json:"driverId"`
	AttemptCount  int           `json:"attemptCount"`
	MaxAttempts   int           `json:"maxAttempts"`
	RetryDelay    time.Duration `json:"retryDelay"`
	FailureReason string        `json:"failureReason,omitempty"`
}

// Exhausted reports whether no further attempt is allowed.
func (e NotificationEnvelope) Exhausted() bool {
	return e.AttemptCount >= e.MaxAttempts
}
