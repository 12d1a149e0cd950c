// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-workers/internal/common/camunda"
	"kyc-workers/internal/common/config"
	"kyc-workers/internal/common/database"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/models"
	"kyc-workers/internal/repository"

	cvs "kyc-workers/internal/workers/kyc/calculate-verification-score"
	mfi "kyc-workers/internal/workers/kyc/match-facial-identity"
	pkc "kyc-workers/internal/workers/kyc/process-kyc-completion"
)

// These tests need the docker-compose stack (Postgres, Redis, Elasticsearch,
// Zeebe) on localhost. Set KYC_E2E=1 to run them.
func requireStack(t *testing.T) *config.Config {
	t.Helper()
	if os.Getenv("KYC_E2E") != "1" {
		t.Skip("KYC_E2E not set")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"
	cfg.Camunda.BrokerAddress = "localhost:26500"
	return cfg
}

func TestServicesConnectivity(t *testing.T) {
	cfg := requireStack(t)
	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer pg.Close()
	assert.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(ctx), "Redis ping failed")

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Database.Elasticsearch.GetURL()},
	})
	require.NoError(t, err)
	res, err := es.Info()
	require.NoError(t, err, "Elasticsearch info request failed")
	assert.False(t, res.IsError())
	res.Body.Close()

	zb, err := camunda.NewClient(cfg.Camunda.BrokerAddress)
	require.NoError(t, err, "Zeebe topology request failed")
	defer zb.Close()
	assert.NoError(t, zb.HealthCheck(ctx))
}

// ==========================
// Fixtures
// ==========================

const fixtureDDL = `
CREATE TABLE IF NOT EXISTS drivers (
    id                  TEXT PRIMARY KEY,
    first_name          TEXT NOT NULL,
    last_name           TEXT NOT NULL,
    email               TEXT,
    phone               TEXT,
    status              TEXT NOT NULL DEFAULT 'active',
    verification_status TEXT NOT NULL DEFAULT 'pending',
    kyc_status          TEXT NOT NULL DEFAULT 'in_progress',
    kyc_retry_count     INTEGER NOT NULL DEFAULT 0,
    profile_photo_path  TEXT,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS driver_documents (
    id            TEXT PRIMARY KEY,
    driver_id     TEXT NOT NULL,
    document_type TEXT NOT NULL,
    file_path     TEXT NOT NULL,
    uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS admins (
    id        TEXT PRIMARY KEY,
    name      TEXT NOT NULL,
    email     TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);`

func seedDriver(t *testing.T, db *sql.DB) string {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, fixtureDDL)
	require.NoError(t, err)

	driverID := "e2e-" + uuid.NewString()
	_, err = db.ExecContext(ctx, `
		INSERT INTO drivers (id, first_name, last_name, email, profile_photo_path)
		VALUES ($1, 'Jane', 'Doe', 'jane.e2e@example.com', '/tmp/e2e-profile.jpg')`, driverID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO driver_documents (id, driver_id, document_type, file_path, uploaded_at)
		VALUES ($1, $2, 'license', '/tmp/e2e-license.jpg', $3)`,
		uuid.NewString(), driverID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (id, name, email) VALUES ('e2e-admin', 'E2E Admin', 'admin.e2e@example.com')
		ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	return driverID
}

// ==========================
// Pipeline
// ==========================

func TestKYCPipeline(t *testing.T) {
	cfg := requireStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	log := logger.NewTestLogger(t)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.EnsureSchema(ctx))

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)

	repo := repository.New(pg.DB)
	driverID := seedDriver(t, pg.DB)

	// No comparison engine is wired, so the facial score fails closed.
	match := mfi.NewHandler(mfi.LoadConfig(), nil, repo, log).Execute(ctx, &mfi.Input{DriverID: driverID})
	assert.Equal(t, mfi.FailClosedScore, match.FacialScore)
	assert.True(t, match.Substituted)

	score, err := cvs.NewHandler(cvs.LoadConfig(), repo, log).Execute(ctx, &cvs.Input{
		DriverID: driverID,
		ScoreInput: cvs.ScoreInput{
			FacialScore:     &match.FacialScore,
			LicenseVerified: true,
			DocumentsValid:  true,
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, score.VerificationResultID)

	var stored int
	require.NoError(t, pg.DB.QueryRowContext(ctx,
		`SELECT final_score FROM verification_results WHERE id = $1`, score.VerificationResultID).Scan(&stored))
	assert.Equal(t, score.FinalScore, stored)

	orch := pkc.NewOrchestrator(pkc.LoadConfig(), repo, es, pkc.NewDatabaseDispatcher(repo), nil, log)
	event := models.CompletionEvent{EventID: "evt-" + uuid.NewString(), DriverID: driverID}

	report, err := orch.Process(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s-%s", driverID, event.EventID), report.AuditID)
	assert.GreaterOrEqual(t, report.AdminsNotified, 1)
	assert.True(t, report.Transitioned)

	var status string
	require.NoError(t, pg.DB.QueryRowContext(ctx,
		`SELECT verification_status FROM drivers WHERE id = $1`, driverID).Scan(&status))
	assert.Equal(t, string(models.VerificationReviewing), status)

	// Replaying the same event leaves the status alone.
	again, err := orch.Process(ctx, event)
	require.NoError(t, err)
	assert.False(t, again.Transitioned)
	assert.Equal(t, report.AuditID, again.AuditID)
}
