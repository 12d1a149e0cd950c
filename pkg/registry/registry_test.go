package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry_ShippedFile(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)

	assert.Empty(t, reg.Validate())
	assert.Equal(t, []string{
		"calculate-verification-score",
		"extract-document-data",
		"match-facial-identity",
		"process-kyc-completion",
		"validate-document",
	}, reg.TaskTypes())

	a, ok := reg.Find("process-kyc-completion")
	require.True(t, ok)
	assert.Equal(t, FailRetry, a.FailureMode)
	assert.Contains(t, a.ErrorCodes, "KYC_COMPLETION_EXHAUSTED")
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"activities":`), 0o600))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}

func TestFind_Unknown(t *testing.T) {
	reg := &ActivityRegistry{}
	_, ok := reg.Find("nope")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		activity []Activity
		want     []string
	}{
		{
			name:     "clean",
			activity: []Activity{{ID: "a", TaskType: "a", Timeout: "5s", FailureMode: FailSoft, InputSchema: "score-input"}},
		},
		{
			name:     "missing task type",
			activity: []Activity{{ID: "a"}},
			want:     []string{"a: taskType is required"},
		},
		{
			name:     "duplicate",
			activity: []Activity{{ID: "a", TaskType: "x"}, {ID: "b", TaskType: "x"}},
			want:     []string{"b: duplicate taskType x"},
		},
		{
			name:     "bad fields",
			activity: []Activity{{TaskType: "x", Timeout: "soon", Retries: -1, InputSchema: "nope", FailureMode: "explode"}},
			want: []string{
				`activities[0]: invalid timeout "soon"`,
				"activities[0]: retries cannot be negative",
				`activities[0]: unknown input schema "nope"`,
				`activities[0]: unknown failure mode "explode"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: tt.activity}
			assert.Equal(t, tt.want, reg.Validate())
		})
	}
}

func TestUpdateAndSave(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{{ID: "validate-document", TaskType: "validate-document", Timeout: "5s"}}}
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	require.NoError(t, reg.Update("validate-document", "retries", "2", now))
	require.NoError(t, reg.Update("validate-document", "status", "verified", now))
	assert.Equal(t, 2, reg.Activities[0].Retries)
	assert.Equal(t, "verified", reg.Activities[0].ImplementationStatus)
	assert.Equal(t, "2026-03-04", reg.LastUpdated)

	assert.Error(t, reg.Update("validate-document", "retries", "many", now))
	assert.Error(t, reg.Update("validate-document", "timeout", "soon", now))
	assert.Error(t, reg.Update("validate-document", "colour", "red", now))
	assert.Error(t, reg.Update("missing", "status", "x", now))

	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	require.NoError(t, Save(reg, path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg, loaded)
}
