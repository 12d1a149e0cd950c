package camunda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type nopJobClient struct{}

func (nopJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 { return nil }
func (nopJobClient) NewFailJobCommand() commands.FailJobCommandStep1         { return nil }
func (nopJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1   { return nil }

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *fakeRecorder) RecordJob(_ context.Context, _ string, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func newJob(key int64) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: key, Type: "test-task", Retries: 3}}
}

// ==========================
// Instrument
// ==========================

func TestInstrument_RecordsOutcome(t *testing.T) {
	tests := []struct {
		name    string
		handler worker.JobHandler
		want    string
	}{
		{
			name:    "completed",
			handler: func(c worker.JobClient, _ entities.Job) { c.NewCompleteJobCommand() },
			want:    OutcomeCompleted,
		},
		{
			name:    "failed",
			handler: func(c worker.JobClient, _ entities.Job) { c.NewFailJobCommand() },
			want:    OutcomeFailed,
		},
		{
			name:    "bpmn error",
			handler: func(c worker.JobClient, _ entities.Job) { c.NewThrowErrorCommand() },
			want:    OutcomeError,
		},
		{
			name:    "no command",
			handler: func(worker.JobClient, entities.Job) {},
			want:    OutcomeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			taskType := "instrument-" + tt.name
			Instrument(taskType, tt.handler, rec)(nopJobClient{}, newJob(1))

			require.Len(t, rec.statuses, 1)
			assert.Equal(t, tt.want, rec.statuses[0])
			assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues(taskType)))
			if tt.want == OutcomeCompleted {
				assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues(taskType)))
			} else {
				assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerJobsFailed.WithLabelValues(taskType, tt.want)))
			}
		})
	}
}

func TestInstrument_NilRecorder(t *testing.T) {
	assert.NotPanics(t, func() {
		Instrument("nil-recorder", func(c worker.JobClient, _ entities.Job) { c.NewCompleteJobCommand() }, nil)(nopJobClient{}, newJob(2))
	})
}

// ==========================
// Retry
// ==========================

var fastRetry = &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestExecuteWithRetry_RecoversFromTransientError(t *testing.T) {
	calls := 0
	res, err := executeWithRetry(context.Background(), fastRetry, func(context.Context) (interface{}, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("rpc error: code = Unavailable")
		}
		return "ok", nil
	}, "create-instance")

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithRetry_Exhausted(t *testing.T) {
	calls := 0
	_, err := executeWithRetry(context.Background(), fastRetry, func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("connection refused")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	stdErr, ok := kycerrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, kycerrors.ErrCodeWorkflowEngineUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestExecuteWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	_, err := executeWithRetry(context.Background(), fastRetry, func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("NOT_FOUND: process 'x' not deployed")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	stdErr, ok := kycerrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, kycerrors.ErrCodeWorkflowEngineRejected, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	_, err := executeWithRetry(ctx, slow, func(context.Context) (interface{}, error) {
		return nil, errors.New("deadline exceeded")
	}, "op")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
