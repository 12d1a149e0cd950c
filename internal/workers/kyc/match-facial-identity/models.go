// internal/workers/kyc/match-facial-identity/models.go
package matchfacialidentity

type Input struct {
	DriverID string `json:"driverId"`
}

type Output struct {
	FacialScore float64 `json:"facialScore"`
	Substituted bool    `json:"substituted"`
	Reason      string  `json:"reason,omitempty"`
}

// MatchResult is a confidence in [0,1]. Substituted marks the fail-closed value.
type MatchResult struct {
	Score       float64 `json:"score"`
	Substituted bool    `json:"substituted"`
	Reason      string  `json:"reason,omitempty"`
}
