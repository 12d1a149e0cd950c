// internal/workers/kyc/match-facial-identity/config.go
package matchfacialidentity

import "time"

type Config struct {
	Timeout       time.Duration
	EngineTimeout time.Duration
	Endpoint      string
	Bands         Bands
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		EngineTimeout: 10 * time.Second,
		Bands:         DefaultBands,
	}
}
