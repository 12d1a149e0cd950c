package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	KYC          KYCConfig               `mapstructure:"kyc"`
	Ingress      IngressConfig           `mapstructure:"ingress"`
	HTTP         HTTPConfig              `mapstructure:"http"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// IntegrationConfig holds settings for AWS delivery channels.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// --- KYC pipeline ---

type KYCConfig struct {
	OCR           OCRConfig           `mapstructure:"ocr"`
	Facial        FacialConfig        `mapstructure:"facial"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	Notifications KYCNotifications    `mapstructure:"notifications"`
	Completion    CompletionConfig    `mapstructure:"completion"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Documents     DocumentStoreConfig `mapstructure:"documents"`
}

type OCRConfig struct {
	Engine   string `mapstructure:"engine"` // tesseract | none
	Binary   string `mapstructure:"binary"`
	Language string `mapstructure:"language"`
	Timeout  int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds, 0 disables the cache
}

type FacialConfig struct {
	Endpoint           string  `mapstructure:"endpoint"`
	Timeout            int     `mapstructure:"timeout"` // milliseconds
	MatchConfidence    float64 `mapstructure:"match_confidence"`
	MismatchConfidence float64 `mapstructure:"mismatch_confidence"`
}

type ScoringConfig struct {
	Weights                ScoringWeights `mapstructure:"weights"`
	DefaultFacialComponent float64        `mapstructure:"default_facial_component"`
}

type ScoringWeights struct {
	Facial      float64 `mapstructure:"facial"`
	Document    float64 `mapstructure:"document"`
	Background  float64 `mapstructure:"background"`
	Reference   float64 `mapstructure:"reference"`
	Consistency float64 `mapstructure:"consistency"`
}

// Sum returns the total of all five weights.
func (w ScoringWeights) Sum() float64 {
	return w.Facial + w.Document + w.Background + w.Reference + w.Consistency
}

type KYCNotifications struct {
	EmailEnabled          bool     `mapstructure:"email_enabled"`
	AdminDistributionList []string `mapstructure:"admin_distribution_list"`
	AdminBaseURL          string   `mapstructure:"admin_base_url"`
	Dispatcher            string   `mapstructure:"dispatcher"` // database | sns
	MaxConcurrency        int      `mapstructure:"max_concurrency"`
}

type CompletionConfig struct {
	MaxAttempts int    `mapstructure:"max_attempts"`
	RetryDelay  int    `mapstructure:"retry_delay"` // seconds
	ProcessID   string `mapstructure:"process_id"`
}

type AuditConfig struct {
	Index string `mapstructure:"index"`
}

type DocumentStoreConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// IngressConfig configures the Kafka consumer that turns completion events
// into process instances.
type IngressConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type HTTPConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
