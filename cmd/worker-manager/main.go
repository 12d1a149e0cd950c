// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"kyc-workers/internal/api"
	"kyc-workers/internal/common/aws"
	"kyc-workers/internal/common/camunda"
	"kyc-workers/internal/common/config"
	"kyc-workers/internal/common/database"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/observability"
	"kyc-workers/internal/common/ocr"
	"kyc-workers/internal/ingress"
	"kyc-workers/internal/repository"
	"kyc-workers/pkg/registry"

	cvs "kyc-workers/internal/workers/kyc/calculate-verification-score"
	edd "kyc-workers/internal/workers/kyc/extract-document-data"
	mfi "kyc-workers/internal/workers/kyc/match-facial-identity"
	pkc "kyc-workers/internal/workers/kyc/process-kyc-completion"
	vd "kyc-workers/internal/workers/kyc/validate-document"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting KYC worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability init failed, continuing without OTel metrics", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	repo := repository.New(pg.DB)
	checkRegistry(cfg, zapLog)

	// --- Register KYC workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		if jw := camunda.StartWorker(zeebe.GetClient(), taskType, cfg.Workers[taskType], handler, obs, log); jw != nil {
			workers = append(workers, jw)
		}
	}

	if cfg.Workers[edd.TaskType].Enabled {
		c := edd.LoadConfig()
		c.Timeout = config.GetDuration(cfg.Workers[edd.TaskType].Timeout)
		c.OCRTimeout = config.GetDuration(cfg.KYC.OCR.Timeout)
		c.CacheTTL = time.Duration(cfg.KYC.OCR.CacheTTL) * time.Second
		c.BasePath = cfg.KYC.Documents.BasePath

		var engine edd.TextExtractionEngine
		if cfg.KYC.OCR.Engine == "tesseract" {
			engine = ocr.NewTesseractEngine(ocr.TesseractConfig{
				Binary:   cfg.KYC.OCR.Binary,
				Language: cfg.KYC.OCR.Language,
			}, nil)
		} else {
			zapLog.Warn("OCR engine disabled, extraction will use fallback text", zap.String("engine", cfg.KYC.OCR.Engine))
		}
		var cache edd.TextCache
		if c.CacheTTL > 0 {
			cache = database.NewJSONCache(redis.Client, "kyc:ocr:", c.CacheTTL)
		}
		start(edd.TaskType, edd.NewHandler(c, engine, cache, log).Handle)
	}

	if cfg.Workers[vd.TaskType].Enabled {
		c := vd.LoadConfig()
		c.Timeout = config.GetDuration(cfg.Workers[vd.TaskType].Timeout)
		start(vd.TaskType, vd.NewHandler(c, log).Handle)
	}

	if cfg.Workers[mfi.TaskType].Enabled {
		c := mfi.LoadConfig()
		c.Timeout = config.GetDuration(cfg.Workers[mfi.TaskType].Timeout)
		c.EngineTimeout = config.GetDuration(cfg.KYC.Facial.Timeout)
		c.Endpoint = cfg.KYC.Facial.Endpoint
		c.Bands = mfi.Bands{Match: cfg.KYC.Facial.MatchConfidence, Mismatch: cfg.KYC.Facial.MismatchConfidence}

		var engine mfi.FaceComparisonEngine
		if c.Endpoint != "" {
			engine = mfi.NewHTTPEngine(c.Endpoint, c.EngineTimeout)
		} else {
			zapLog.Warn("facial comparison endpoint not configured, scores will fail closed")
		}
		start(mfi.TaskType, mfi.NewHandler(c, engine, repo, log).Handle)
	}

	if cfg.Workers[cvs.TaskType].Enabled {
		c := cvs.LoadConfig()
		c.Timeout = config.GetDuration(cfg.Workers[cvs.TaskType].Timeout)
		c.Weights = cfg.KYC.Scoring.Weights
		c.DefaultFacial = cfg.KYC.Scoring.DefaultFacialComponent
		start(cvs.TaskType, cvs.NewHandler(c, repo, log).Handle)
	}

	if cfg.Workers[pkc.TaskType].Enabled {
		c := pkc.LoadConfig()
		c.Timeout = config.GetDuration(cfg.Workers[pkc.TaskType].Timeout)
		c.EmailEnabled = cfg.KYC.Notifications.EmailEnabled && cfg.Integrations.AWS.SES.Enabled
		c.AdminDistributionList = cfg.KYC.Notifications.AdminDistributionList
		c.AdminBaseURL = cfg.KYC.Notifications.AdminBaseURL
		c.AuditIndex = cfg.KYC.Audit.Index
		c.MaxConcurrency = cfg.KYC.Notifications.MaxConcurrency
		c.MaxAttempts = cfg.KYC.Completion.MaxAttempts
		c.RetryDelay = time.Duration(cfg.KYC.Completion.RetryDelay) * time.Second

		var dispatcher pkc.Dispatcher = pkc.NewDatabaseDispatcher(repo)
		if cfg.KYC.Notifications.Dispatcher == "sns" && cfg.Integrations.AWS.SNS.Enabled {
			publisher, err := aws.NewTopicPublisher(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.TopicARN)
			if err != nil {
				zapLog.Fatal("failed to create SNS publisher", zap.Error(err))
			}
			dispatcher = pkc.NewSNSDispatcher(publisher)
		}

		var mailer pkc.Mailer
		if c.EmailEnabled {
			m, err := aws.NewMailer(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SES.FromEmail)
			if err != nil {
				zapLog.Fatal("failed to create SES mailer", zap.Error(err))
			}
			mailer = m
		}

		start(pkc.TaskType, pkc.NewHandler(pkc.HandlerOptions{
			Config:     c,
			Store:      repo,
			Failures:   repo,
			Audit:      esClient,
			Dispatcher: dispatcher,
			Mailer:     mailer,
			Logger:     log,
		}).Handle)
	}
	zapLog.Info("KYC workers registered", zap.Int("count", len(workers)))

	// --- Completion event ingress ---
	var consumer *ingress.Consumer
	if cfg.Ingress.Enabled {
		consumer = ingress.NewConsumer(ingress.NewReader(cfg.Ingress), zeebe, ingress.Options{
			ProcessID: cfg.KYC.Completion.ProcessID,
		}, log.WithFields(map[string]interface{}{"component": "ingress"}))
		go consumer.Supervise(ctx)
	}

	// --- Health, metrics and API server ---
	checkers := map[string]api.Checker{
		"zeebe":         zeebe.HealthCheck,
		"postgres":      pg.Ping,
		"elasticsearch": esClient.Ping,
		"redis":         redis.Ping,
	}
	if consumer != nil {
		checkers["ingress"] = consumer.Healthy
	}
	agg := cvs.NewAggregator(cfg.KYC.Scoring.Weights, cfg.KYC.Scoring.DefaultFacialComponent, log)
	srv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewRouter(api.RouterOptions{
			Service:   cfg.App.Name,
			Validator: vd.NewValidator(),
			Scorer:    agg,
			Checkers: checkers,
			Logger:   log,
		}),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			zapLog.Error("Error closing Kafka reader", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down metrics provider", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// checkRegistry warns about enabled workers the activity registry does not
// describe. A missing registry file is not fatal.
func checkRegistry(cfg *config.Config, log *zap.Logger) {
	path := os.Getenv("KYC_ACTIVITY_REGISTRY")
	if path == "" {
		path = "configs/activity-registry.json"
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	for _, p := range reg.Validate() {
		log.Warn("activity registry problem", zap.String("problem", p))
	}
	for taskType, wcfg := range cfg.Workers {
		if !wcfg.Enabled {
			continue
		}
		if _, ok := reg.Find(taskType); !ok {
			log.Warn("enabled worker missing from activity registry", zap.String("taskType", taskType))
		}
	}
}
