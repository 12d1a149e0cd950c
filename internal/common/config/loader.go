package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return build(v)
}

func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if len(cfg.KYC.Notifications.AdminDistributionList) == 0 {
		if val := os.Getenv("KYC_ADMIN_DISTRIBUTION_LIST"); val != "" {
			for _, addr := range strings.Split(val, ",") {
				if addr = strings.TrimSpace(addr); addr != "" {
					cfg.KYC.Notifications.AdminDistributionList = append(cfg.KYC.Notifications.AdminDistributionList, addr)
				}
			}
		}
	}
	if len(cfg.Ingress.Brokers) == 0 {
		if val := os.Getenv("KAFKA_BROKERS"); val != "" {
			cfg.Ingress.Brokers = strings.Split(val, ",")
		}
	}
}

// DefaultWeights is the 30/25/20/15/10 split used when no valid weights are configured.
var DefaultWeights = ScoringWeights{Facial: 30, Document: 25, Background: 20, Reference: 15, Consistency: 10}

func applyDefaults(cfg *Config) {
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	applyKYCDefaults(&cfg.KYC)

	if cfg.Ingress.Topic == "" {
		cfg.Ingress.Topic = "kyc.completion"
	}
	if cfg.Ingress.GroupID == "" {
		cfg.Ingress.GroupID = "kyc-workers"
	}

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10000
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10000
	}
}

func applyKYCDefaults(k *KYCConfig) {
	if k.OCR.Engine == "" {
		k.OCR.Engine = "tesseract"
	}
	if k.OCR.Binary == "" {
		k.OCR.Binary = "tesseract"
	}
	if k.OCR.Language == "" {
		k.OCR.Language = "eng"
	}
	if k.OCR.Timeout == 0 {
		k.OCR.Timeout = 15000
	}

	if k.Facial.Timeout == 0 {
		k.Facial.Timeout = 10000
	}
	if k.Facial.MatchConfidence == 0 {
		k.Facial.MatchConfidence = 0.85
	}
	if k.Facial.MismatchConfidence == 0 {
		k.Facial.MismatchConfidence = 0.15
	}
	k.Facial.MatchConfidence = clampUnit(k.Facial.MatchConfidence)
	k.Facial.MismatchConfidence = clampUnit(k.Facial.MismatchConfidence)

	if math.Abs(k.Scoring.Weights.Sum()-100) > 1e-9 {
		k.Scoring.Weights = DefaultWeights
	}
	if k.Scoring.DefaultFacialComponent == 0 {
		k.Scoring.DefaultFacialComponent = 50
	}

	if k.Notifications.Dispatcher == "" {
		k.Notifications.Dispatcher = "database"
	}
	if k.Notifications.MaxConcurrency == 0 {
		k.Notifications.MaxConcurrency = 8
	}

	if k.Completion.MaxAttempts == 0 {
		k.Completion.MaxAttempts = 3
	}
	if k.Completion.RetryDelay == 0 {
		k.Completion.RetryDelay = 300
	}
	if k.Completion.ProcessID == "" {
		k.Completion.ProcessID = "driver-kyc-verification"
	}

	if k.Audit.Index == "" {
		k.Audit.Index = "kyc-completion-audit"
	}
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.KYC.OCR.Engine {
	case "tesseract", "none":
	default:
		return fmt.Errorf("kyc.ocr.engine must be tesseract or none, got %q", cfg.KYC.OCR.Engine)
	}

	switch cfg.KYC.Notifications.Dispatcher {
	case "database":
	case "sns":
		if cfg.Integrations.AWS.SNS.TopicARN == "" {
			return fmt.Errorf("integrations.aws.sns.topic_arn is required when kyc.notifications.dispatcher is sns")
		}
	default:
		return fmt.Errorf("kyc.notifications.dispatcher must be database or sns, got %q", cfg.KYC.Notifications.Dispatcher)
	}

	if cfg.KYC.Notifications.EmailEnabled && cfg.Integrations.AWS.SES.FromEmail == "" {
		return fmt.Errorf("integrations.aws.ses.from_email is required when kyc.notifications.email_enabled is set")
	}

	if cfg.Ingress.Enabled && len(cfg.Ingress.Brokers) == 0 {
		return fmt.Errorf("ingress.brokers is required when ingress is enabled")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
