// internal/workers/kyc/process-kyc-completion/models.go
package processkyccompletion

type Input struct {
	DriverID       string                 `json:"driverId"`
	EventID        string                 `json:"eventId"`
	CompletionData map[string]interface{} `json:"completionData"`
	// Attempts is written back on every failed attempt so the count survives
	// redelivery.
	Attempts int `json:"kycCompletionAttempts"`
}

type Output struct {
	DriverID              string `json:"driverId"`
	AuditID               string `json:"auditId"`
	AdminsNotified        int    `json:"adminsNotified"`
	NotificationFailures  int    `json:"notificationFailures"`
	EmailsSent            int    `json:"emailsSent"`
	EmailFailures         int    `json:"emailFailures"`
	StatusTransitioned    bool   `json:"statusTransitioned"`
	KYCCompletionAttempts int    `json:"kycCompletionAttempts"`
}

// RecipientFailure records one isolated delivery failure.
type RecipientFailure struct {
	Recipient string `json:"recipient"`
	Channel   string `json:"channel"`
	Error     string `json:"error"`
}

// Report summarises one orchestration run.
type Report struct {
	DriverID             string
	AuditID              string
	AdminsNotified       int
	NotificationFailures []RecipientFailure
	EmailsSent           int
	EmailFailures        []RecipientFailure
	Transitioned         bool
}
