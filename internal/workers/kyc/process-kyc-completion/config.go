// internal/workers/kyc/process-kyc-completion/config.go
package processkyccompletion

import "time"

type Config struct {
	Timeout               time.Duration
	EmailEnabled          bool
	AdminDistributionList []string
	AdminBaseURL          string
	AuditIndex            string
	MaxConcurrency        int
	MaxAttempts           int
	RetryDelay            time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        60 * time.Second,
		AuditIndex:     "kyc-completion-audit",
		MaxConcurrency: 8,
		MaxAttempts:    3,
		RetryDelay:     300 * time.Second,
	}
}
