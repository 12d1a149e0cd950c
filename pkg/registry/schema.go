// pkg/registry/schema.go
package registry

// ActivityRegistry describes every job type the KYC workers serve.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"displayName"`
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	Version              string   `json:"version"`
	TaskType             string   `json:"taskType"`
	ImplementationStatus string   `json:"implementationStatus"`
	InputSchema          string   `json:"inputSchema,omitempty"`
	Outputs              []string `json:"outputs"`
	ErrorCodes           []string `json:"errorCodes"`
	FailureMode          string   `json:"failureMode"`
	Timeout              string   `json:"timeout"`
	Retries              int      `json:"retries"`
	Workflows            []string `json:"workflows"`
	Tags                 []string `json:"tags"`
}

// Failure modes a KYC activity may declare.
const (
	FailSoft    = "fail-soft"
	FailClosed  = "fail-closed"
	FailNeutral = "fail-neutral"
	FailRetry   = "retry-then-dead-letter"
)
