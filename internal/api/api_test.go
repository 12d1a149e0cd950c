package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-workers/internal/common/config"
	"kyc-workers/internal/common/logger"
	calculateverificationscore "kyc-workers/internal/workers/kyc/calculate-verification-score"
	validatedocument "kyc-workers/internal/workers/kyc/validate-document"
)

func newTestRouter(t *testing.T, checkers map[string]Checker) http.Handler {
	log := logger.NewTestLogger(t)
	return NewRouter(RouterOptions{
		Service:   "kyc-workers",
		Validator: validatedocument.NewValidator(),
		Scorer:    calculateverificationscore.NewAggregator(config.DefaultWeights, 0, log),
		Checkers:  checkers,
		Logger:    log,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ==========================
// Health / readiness
// ==========================

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "kyc-workers", body["service"])
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		checkers   map[string]Checker
		wantStatus int
		wantState  string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name: "all healthy",
			checkers: map[string]Checker{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantState:  "ready",
		},
		{
			name: "one failing",
			checkers: map[string]Checker{
				"postgres": func(context.Context) error { return nil },
				"zeebe":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(t, tt.checkers), http.MethodGet, "/ready", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Status)
			assert.Len(t, body.Checks, len(tt.checkers))
		})
	}
}

func TestReady_ReportsFailureMessage(t *testing.T) {
	rec := do(t, newTestRouter(t, map[string]Checker{
		"zeebe": func(context.Context) error { return errors.New("connection refused") },
	}), http.MethodGet, "/ready", "")

	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"endpoint not found"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/documents/validate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Document validation
// ==========================

func TestValidateDocument(t *testing.T) {
	expiry := time.Now().AddDate(2, 0, 0).Format("2006-01-02")
	issue := time.Now().AddDate(-1, 0, 0).Format("2006-01-02")

	tests := []struct {
		name       string
		body       string
		wantValid  bool
		wantErrors []string
	}{
		{
			name:      "valid license",
			body:      `{"documentType":"license","documentNumber":"AB1234567","issueDate":"` + issue + `","expiryDate":"` + expiry + `","name":"Jane Doe"}`,
			wantValid: true,
		},
		{
			name:       "missing fields",
			body:       `{}`,
			wantValid:  false,
			wantErrors: []string{validatedocument.MsgTypeRequired, validatedocument.MsgNumberRequired, validatedocument.MsgExpiryRequired},
		},
		{
			name:       "expired",
			body:       `{"documentType":"license","documentNumber":"AB1234567","expiryDate":"2001-01-01"}`,
			wantValid:  false,
			wantErrors: []string{validatedocument.MsgExpired},
		},
		{
			name:      "schema type violation",
			body:      `{"documentType":42}`,
			wantValid: false,
		},
	}

	h := newTestRouter(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/documents/validate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var res validatedocument.ValidationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.Empty(t, res.Errors)
				return
			}
			assert.NotEmpty(t, res.Errors)
			for _, want := range tt.wantErrors {
				assert.Contains(t, res.Errors, want)
			}
		})
	}
}

// ==========================
// Score dry run
// ==========================

func TestCalculateScore(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/v1/verification/score", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res calculateverificationscore.ScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 25, res.FinalScore)
	assert.Equal(t, calculateverificationscore.ReasonFacialDefaulted, res.Reason)
}

func TestCalculateScore_AllMaximum(t *testing.T) {
	body := `{
		"facialScore": 1.0,
		"licenseVerified": true, "idVerified": true, "addressVerified": true, "documentsValid": true,
		"criminalCheckPassed": true, "drivingRecordGood": true, "employmentVerified": true,
		"references": [{"verified": true}],
		"nameMatches": true, "datesConsistent": true, "addressesMatch": true,
		"dataCompleteness": 100
	}`

	rec := do(t, newTestRouter(t, nil), http.MethodPost, "/v1/verification/score", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res calculateverificationscore.ScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 100, res.FinalScore)
}

func TestCalculateScore_InvalidInput(t *testing.T) {
	h := newTestRouter(t, nil)

	for _, body := range []string{`{"facialScore":"high"}`, `not json`, ``} {
		rec := do(t, h, http.MethodPost, "/v1/verification/score", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
