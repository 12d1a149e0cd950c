// internal/workers/kyc/calculate-verification-score/config.go
package calculateverificationscore

import (
	"time"

	"kyc-workers/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	Weights       config.ScoringWeights
	DefaultFacial float64
	RetryBackoff  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		Weights:       config.DefaultWeights,
		DefaultFacial: DefaultFacialComponent,
		RetryBackoff:  30 * time.Second,
	}
}
