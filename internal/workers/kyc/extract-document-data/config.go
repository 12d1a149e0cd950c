// internal/workers/kyc/extract-document-data/config.go
package extractdocumentdata

import "time"

type Config struct {
	Timeout    time.Duration // whole job
	OCRTimeout time.Duration // single engine call
	CacheTTL   time.Duration
	BasePath   string // resolves relative image paths
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		OCRTimeout: 15 * time.Second,
		CacheTTL:   24 * time.Hour,
	}
}
