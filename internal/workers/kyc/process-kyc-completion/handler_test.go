package processkyccompletion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/models"
	"kyc-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockStore struct {
	GetDriverFunc        func(ctx context.Context, driverID string) (*models.Driver, error)
	ListActiveAdminsFunc func(ctx context.Context) ([]models.Admin, error)
	MarkReviewingFunc    func(ctx context.Context, driverID string) (bool, error)

	mu          sync.Mutex
	transitions int
}

func (m *MockStore) GetDriver(ctx context.Context, driverID string) (*models.Driver, error) {
	return m.GetDriverFunc(ctx, driverID)
}

func (m *MockStore) ListActiveAdmins(ctx context.Context) ([]models.Admin, error) {
	return m.ListActiveAdminsFunc(ctx)
}

func (m *MockStore) MarkReviewing(ctx context.Context, driverID string) (bool, error) {
	m.mu.Lock()
	m.transitions++
	m.mu.Unlock()
	return m.MarkReviewingFunc(ctx, driverID)
}

type MockAudit struct {
	IndexDocumentFunc func(ctx context.Context, index, id string, doc interface{}) error
}

func (m *MockAudit) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	return m.IndexDocumentFunc(ctx, index, id, doc)
}

type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, n *models.NotificationDispatch) error

	mu   sync.Mutex
	sent []*models.NotificationDispatch
}

func (m *MockDispatcher) Dispatch(ctx context.Context, n *models.NotificationDispatch) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	if m.DispatchFunc == nil {
		return nil
	}
	return m.DispatchFunc(ctx, n)
}

func (m *MockDispatcher) Channel() string { return "mock" }

type MockMailer struct {
	SendTextFunc func(ctx context.Context, to []string, subject, body string) (string, error)
	calls        [][]string
}

func (m *MockMailer) SendText(ctx context.Context, to []string, subject, body string) (string, error) {
	m.calls = append(m.calls, to)
	return m.SendTextFunc(ctx, to, subject, body)
}

type MockFailures struct {
	records []*models.CompletionFailure
	err     error
}

func (m *MockFailures) RecordCompletionFailure(_ context.Context, f *models.CompletionFailure) error {
	m.records = append(m.records, f)
	return m.err
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.AdminBaseURL = "https://ops.example.com/"
	cfg.MaxConcurrency = 2
	cfg.EmailEnabled = true
	cfg.AdminDistributionList = []string{"kyc-team@example.com"}
	return cfg
}

func pendingDriver() *models.Driver {
	return &models.Driver{
		ID:                 "drv-1",
		FirstName:          "Jane",
		LastName:           "Doe",
		Email:              "jane@example.com",
		VerificationStatus: models.VerificationPending,
		KYCStatus:          models.KYCCompleted,
	}
}

func newStore(transitioned bool) *MockStore {
	return &MockStore{
		GetDriverFunc: func(context.Context, string) (*models.Driver, error) { return pendingDriver(), nil },
		ListActiveAdminsFunc: func(context.Context) ([]models.Admin, error) {
			return []models.Admin{{ID: "adm-1"}, {ID: "adm-2"}, {ID: "adm-3"}}, nil
		},
		MarkReviewingFunc: func(context.Context, string) (bool, error) { return transitioned, nil },
	}
}

func okAudit() *MockAudit {
	return &MockAudit{IndexDocumentFunc: func(context.Context, string, string, interface{}) error { return nil }}
}

func okMailer() *MockMailer {
	return &MockMailer{SendTextFunc: func(context.Context, []string, string, string) (string, error) { return "msg-1", nil }}
}

func newOrchestrator(t *testing.T, store DriverStore, audit AuditRecorder, d Dispatcher, m Mailer) *Orchestrator {
	o := NewOrchestrator(createTestConfig(), store, audit, d, m, logger.NewTestLogger(t))
	o.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return o
}

func job(vars string, retries int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 99, Type: TaskType, Retries: retries, Variables: vars}}
}

// ==========================
// Orchestrator
// ==========================

func TestOrchestrator_Process_HappyPath(t *testing.T) {
	var auditIndex, auditID string
	audit := &MockAudit{IndexDocumentFunc: func(_ context.Context, index, id string, _ interface{}) error {
		auditIndex, auditID = index, id
		return nil
	}}
	dispatcher := &MockDispatcher{}
	mailer := okMailer()

	report, err := newOrchestrator(t, newStore(true), audit, dispatcher, mailer).
		Process(context.Background(), models.CompletionEvent{DriverID: "drv-1", EventID: "evt-7"})
	require.NoError(t, err)

	assert.Equal(t, "kyc-completion-audit", auditIndex)
	assert.Equal(t, "drv-1-evt-7", auditID)
	assert.Equal(t, 3, report.AdminsNotified)
	assert.Empty(t, report.NotificationFailures)
	assert.Equal(t, 2, report.EmailsSent)
	assert.True(t, report.Transitioned)

	require.Len(t, dispatcher.sent, 3)
	n := dispatcher.sent[0]
	assert.Equal(t, models.RecipientAdmin, n.RecipientType)
	assert.Equal(t, models.CategoryKYCReview, n.Category)
	assert.Equal(t, models.PriorityHigh, n.Priority)
	assert.Equal(t, "https://ops.example.com/admin/drivers/drv-1/review", n.ActionURL)
	assert.Contains(t, n.Message, "Jane Doe")
	assert.Equal(t, "drv-1", n.Data["driverId"])

	require.Len(t, mailer.calls, 2)
	assert.Equal(t, []string{"jane@example.com"}, mailer.calls[0])
	assert.Equal(t, []string{"kyc-team@example.com"}, mailer.calls[1])
}

func TestOrchestrator_NotificationFailuresAreIsolated(t *testing.T) {
	dispatcher := &MockDispatcher{DispatchFunc: func(_ context.Context, n *models.NotificationDispatch) error {
		switch n.RecipientID {
		case "adm-1":
			return errors.New("inbox unavailable")
		case "adm-2":
			panic("nil pointer in template")
		}
		return nil
	}}
	mailer := &MockMailer{SendTextFunc: func(_ context.Context, to []string, _, _ string) (string, error) {
		if to[0] == "jane@example.com" {
			return "", errors.New("ses throttled")
		}
		return "msg", nil
	}}
	store := newStore(true)

	report, err := newOrchestrator(t, store, okAudit(), dispatcher, mailer).
		Process(context.Background(), models.CompletionEvent{DriverID: "drv-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.AdminsNotified)
	require.Len(t, report.NotificationFailures, 2)
	recipients := []string{report.NotificationFailures[0].Recipient, report.NotificationFailures[1].Recipient}
	sort.Strings(recipients)
	assert.Equal(t, []string{"adm-1", "adm-2"}, recipients)

	assert.Equal(t, 1, report.EmailsSent)
	require.Len(t, report.EmailFailures, 1)
	assert.Equal(t, "driver", report.EmailFailures[0].Recipient)

	assert.True(t, report.Transitioned)
	assert.Equal(t, 1, store.transitions)
}

func TestOrchestrator_ReplayLeavesStatusUnchanged(t *testing.T) {
	dispatcher := &MockDispatcher{}
	report, err := newOrchestrator(t, newStore(false), okAudit(), dispatcher, okMailer()).
		Process(context.Background(), models.CompletionEvent{DriverID: "drv-1"})
	require.NoError(t, err)
	assert.False(t, report.Transitioned)
	// notifications legitimately repeat on replay
	assert.Len(t, dispatcher.sent, 3)
}

func TestOrchestrator_EmailDisabled(t *testing.T) {
	o := newOrchestrator(t, newStore(true), okAudit(), &MockDispatcher{}, okMailer())
	o.config.EmailEnabled = false
	report, err := o.Process(context.Background(), models.CompletionEvent{DriverID: "drv-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.EmailsSent)
}

func TestOrchestrator_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	dispatcher := &MockDispatcher{DispatchFunc: func(context.Context, *models.NotificationDispatch) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}}
	store := newStore(true)
	store.ListActiveAdminsFunc = func(context.Context) ([]models.Admin, error) {
		admins := make([]models.Admin, 10)
		for i := range admins {
			admins[i] = models.Admin{ID: fmt.Sprintf("adm-%d", i)}
		}
		return admins, nil
	}

	report, err := newOrchestrator(t, store, okAudit(), dispatcher, nil).
		Process(context.Background(), models.CompletionEvent{DriverID: "drv-1"})
	require.NoError(t, err)
	assert.Equal(t, 10, report.AdminsNotified)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestOrchestrator_PropagatedFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *MockStore, a *MockAudit)
		wantCode  kycerrors.ErrorCode
		retryable bool
		wantMoves int
	}{
		{
			name: "driver not found",
			mutate: func(s *MockStore, _ *MockAudit) {
				s.GetDriverFunc = func(context.Context, string) (*models.Driver, error) { return nil, repository.ErrDriverNotFound }
			},
			wantCode: kycerrors.ErrCodeDriverNotFound,
		},
		{
			name: "driver lookup error",
			mutate: func(s *MockStore, _ *MockAudit) {
				s.GetDriverFunc = func(context.Context, string) (*models.Driver, error) { return nil, errors.New("conn reset") }
			},
			wantCode:  kycerrors.ErrCodeDriverLookupFailed,
			retryable: true,
		},
		{
			name: "audit failure",
			mutate: func(_ *MockStore, a *MockAudit) {
				a.IndexDocumentFunc = func(context.Context, string, string, interface{}) error { return errors.New("es 503") }
			},
			wantCode:  kycerrors.ErrCodeAuditRecordFailed,
			retryable: true,
		},
		{
			name: "admin lookup failure",
			mutate: func(s *MockStore, _ *MockAudit) {
				s.ListActiveAdminsFunc = func(context.Context) ([]models.Admin, error) { return nil, errors.New("timeout") }
			},
			wantCode:  kycerrors.ErrCodeAdminLookupFailed,
			retryable: true,
		},
		{
			name: "transition failure",
			mutate: func(s *MockStore, _ *MockAudit) {
				s.MarkReviewingFunc = func(context.Context, string) (bool, error) { return false, errors.New("deadlock") }
			},
			wantCode:  kycerrors.ErrCodeStatusTransitionFailed,
			retryable: true,
			wantMoves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, audit := newStore(true), okAudit()
			tt.mutate(store, audit)

			_, err := newOrchestrator(t, store, audit, &MockDispatcher{}, nil).
				Process(context.Background(), models.CompletionEvent{DriverID: "drv-1"})
			require.Error(t, err)
			stdErr, ok := kycerrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Equal(t, tt.wantMoves, store.transitions)
		})
	}
}

func TestReviewURL(t *testing.T) {
	assert.Equal(t, "https://a.b/admin/drivers/drv%2F1/review", ReviewURL("https://a.b", "drv/1"))
	assert.Equal(t, "/admin/drivers/d/review", ReviewURL("", "d"))
}

// ==========================
// Dispatchers
// ==========================

type MockNotificationStore struct {
	got *models.NotificationDispatch
}

func (m *MockNotificationStore) InsertNotification(_ context.Context, n *models.NotificationDispatch) error {
	m.got = n
	return nil
}

type MockPublisher struct {
	PublishJSONFunc func(ctx context.Context, subject string, payload interface{}, attrs map[string]string) (string, error)
}

func (m *MockPublisher) PublishJSON(ctx context.Context, subject string, payload interface{}, attrs map[string]string) (string, error) {
	return m.PublishJSONFunc(ctx, subject, payload, attrs)
}

func TestDispatchers(t *testing.T) {
	n := &models.NotificationDispatch{RecipientID: "adm-1", RecipientType: "admin", Category: "kyc_review", Priority: "high", Title: "t"}

	store := &MockNotificationStore{}
	db := NewDatabaseDispatcher(store)
	require.NoError(t, db.Dispatch(context.Background(), n))
	assert.Same(t, n, store.got)
	assert.Equal(t, "database", db.Channel())

	var attrs map[string]string
	sns := NewSNSDispatcher(&MockPublisher{PublishJSONFunc: func(_ context.Context, subject string, _ interface{}, a map[string]string) (string, error) {
		attrs = a
		return "mid", nil
	}})
	require.NoError(t, sns.Dispatch(context.Background(), n))
	assert.Equal(t, "high", attrs["priority"])
	assert.Equal(t, "sns", sns.Channel())

	failing := NewSNSDispatcher(&MockPublisher{PublishJSONFunc: func(context.Context, string, interface{}, map[string]string) (string, error) {
		return "", errors.New("throttled")
	}})
	assert.ErrorContains(t, failing.Dispatch(context.Background(), n), "adm-1")
}

// ==========================
// Retry envelope
// ==========================

func TestRetryPolicy_Decide(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Delay: 300 * time.Second}
	retryable := kycerrors.NewAuditRecordFailedError(errors.New("es down"))
	permanent := kycerrors.NewDriverNotFoundError("drv-1")

	tests := []struct {
		name        string
		attempt     int
		jobRetries  int32
		cause       error
		wantRetry   bool
		wantRetries int32
	}{
		{name: "first failure", attempt: 1, jobRetries: 3, cause: retryable, wantRetry: true, wantRetries: 2},
		{name: "second failure", attempt: 2, jobRetries: 2, cause: retryable, wantRetry: true, wantRetries: 1},
		{name: "third failure exhausts", attempt: 3, jobRetries: 1, cause: retryable, wantRetry: false},
		{name: "attempt budget wins over broker retries", attempt: 3, jobRetries: 10, cause: retryable, wantRetry: false},
		{name: "broker budget wins over attempts", attempt: 1, jobRetries: 1, cause: retryable, wantRetry: false},
		{name: "non-retryable", attempt: 1, jobRetries: 3, cause: permanent, wantRetry: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.decide("drv-1", tt.attempt, tt.jobRetries, tt.cause)
			assert.Equal(t, tt.wantRetry, d.retry)
			assert.Equal(t, tt.wantRetries, d.retries)
			assert.Equal(t, tt.attempt, d.envelope.AttemptCount)
			assert.Equal(t, 300*time.Second, d.envelope.RetryDelay)
			assert.NotEmpty(t, d.envelope.FailureReason)
		})
	}
}

func newTestHandler(t *testing.T, store DriverStore, audit AuditRecorder, failures FailureStore) *Handler {
	cfg := createTestConfig()
	cfg.EmailEnabled = false
	return NewHandler(HandlerOptions{
		Config:     cfg,
		Store:      store,
		Failures:   failures,
		Audit:      audit,
		Dispatcher: &MockDispatcher{},
		Logger:     logger.NewTestLogger(t),
	})
}

func TestHandler_Process_Success(t *testing.T) {
	h := newTestHandler(t, newStore(true), okAudit(), &MockFailures{})
	res := h.process(context.Background(), job(`{"driverId":"drv-1","eventId":"e1"}`, 3))
	require.NotNil(t, res.output)
	assert.Equal(t, 3, res.output.AdminsNotified)
	assert.True(t, res.output.StatusTransitioned)
	assert.Equal(t, 1, res.output.KYCCompletionAttempts)
}

func TestHandler_Process_SchedulesDelayedRetry(t *testing.T) {
	audit := &MockAudit{IndexDocumentFunc: func(context.Context, string, string, interface{}) error { return errors.New("es 503") }}
	failures := &MockFailures{}
	h := newTestHandler(t, newStore(true), audit, failures)

	res := h.process(context.Background(), job(`{"driverId":"drv-1"}`, 3))
	assert.Nil(t, res.output)
	assert.Equal(t, int32(2), res.retries)
	assert.Equal(t, 300*time.Second, res.backoff)
	assert.Equal(t, 1, res.attempts)
	assert.Equal(t, string(kycerrors.ErrCodeAuditRecordFailed), res.errorCode)
	assert.Empty(t, failures.records)
}

func TestHandler_Process_ExhaustedIsTerminal(t *testing.T) {
	audit := &MockAudit{IndexDocumentFunc: func(context.Context, string, string, interface{}) error { return errors.New("es 503") }}
	failures := &MockFailures{}
	h := newTestHandler(t, newStore(true), audit, failures)

	res := h.process(context.Background(), job(`{"driverId":"drv-1","kycCompletionAttempts":2}`, 1))
	assert.Nil(t, res.output)
	assert.Equal(t, int32(0), res.retries)
	assert.Zero(t, res.backoff)
	assert.Equal(t, 3, res.attempts)
	assert.Equal(t, string(kycerrors.ErrCodeCompletionExhausted), res.errorCode)

	require.Len(t, failures.records, 1)
	assert.Equal(t, "drv-1", failures.records[0].DriverID)
	assert.Equal(t, 3, failures.records[0].Attempts)
	assert.Equal(t, int64(99), failures.records[0].JobKey)
	assert.Contains(t, failures.records[0].FailureReason, "es 503")
}

func TestHandler_Process_DriverNotFoundIsTerminal(t *testing.T) {
	store := newStore(true)
	store.GetDriverFunc = func(context.Context, string) (*models.Driver, error) { return nil, repository.ErrDriverNotFound }
	failures := &MockFailures{err: errors.New("db down")}
	h := newTestHandler(t, store, okAudit(), failures)

	res := h.process(context.Background(), job(`{"driverId":"ghost"}`, 3))
	assert.Equal(t, int32(0), res.retries)
	assert.Len(t, failures.records, 1)
}

func TestHandler_Process_InvalidPayloadIsTerminal(t *testing.T) {
	failures := &MockFailures{}
	h := newTestHandler(t, newStore(true), okAudit(), failures)

	res := h.process(context.Background(), job(`{"completionData":{}}`, 3))
	assert.Nil(t, res.output)
	assert.Equal(t, int32(0), res.retries)
	require.Len(t, failures.records, 1)
	assert.Contains(t, failures.records[0].FailureReason, "driverId")
}

func TestOrchestrator_MailerPanicIsIsolated(t *testing.T) {
	mailer := &MockMailer{SendTextFunc: func(_ context.Context, to []string, _, _ string) (string, error) {
		if to[0] == "jane@example.com" {
			panic("ses client nil")
		}
		return "msg", nil
	}}
	store := newStore(true)

	report, err := newOrchestrator(t, store, okAudit(), &MockDispatcher{}, mailer).
		Process(context.Background(), models.CompletionEvent{DriverID: "drv-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.EmailsSent)
	require.Len(t, report.EmailFailures, 1)
	assert.Equal(t, "driver", report.EmailFailures[0].Recipient)
	assert.Contains(t, report.EmailFailures[0].Error, "ses client nil")
	assert.True(t, report.Transitioned)
	assert.Equal(t, 1, store.transitions)
}

func TestHandler_Process_PanicSchedulesRetry(t *testing.T) {
	store := newStore(true)
	store.GetDriverFunc = func(context.Context, string) (*models.Driver, error) { panic("nil row scanner") }
	failures := &MockFailures{}
	h := newTestHandler(t, store, okAudit(), failures)

	var res result
	require.NotPanics(t, func() {
		res = h.process(context.Background(), job(`{"driverId":"drv-1"}`, 3))
	})
	assert.Nil(t, res.output)
	assert.Equal(t, int32(2), res.retries)
	assert.Equal(t, 300*time.Second, res.backoff)
	assert.Equal(t, string(kycerrors.ErrCodeUnexpectedPanic), res.errorCode)
	assert.Empty(t, failures.records)
}

func TestHandler_Process_TerminalWithConsoleLogger(t *testing.T) {
	store := newStore(true)
	store.GetDriverFunc = func(context.Context, string) (*models.Driver, error) { return nil, repository.ErrDriverNotFound }
	failures := &MockFailures{}
	cfg := createTestConfig()
	cfg.EmailEnabled = false
	h := NewHandler(HandlerOptions{
		Config:     cfg,
		Store:      store,
		Failures:   failures,
		Audit:      okAudit(),
		Dispatcher: &MockDispatcher{},
		Logger:     logger.NewZapAdapter(logger.New("info", "console")),
	})

	var res result
	require.NotPanics(t, func() {
		res = h.process(context.Background(), job(`{"driverId":"ghost"}`, 3))
	})
	assert.Equal(t, int32(0), res.retries)
	assert.Equal(t, string(kycerrors.ErrCodeCompletionExhausted), res.errorCode)
	require.Len(t, failures.records, 1)
	assert.Equal(t, "ghost", failures.records[0].DriverID)
}
