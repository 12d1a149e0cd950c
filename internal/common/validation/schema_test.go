package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemasCompile(t *testing.T) {
	for _, name := range []string{
		SchemaCompletionEvent,
		SchemaDocumentValidationRequest,
		SchemaScoreInput,
		SchemaExtractDocumentInput,
		SchemaFacialMatchInput,
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Get(name)
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
	assert.Contains(t, Names(), SchemaScoreInput)
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("nope")
	assert.Error(t, err)
}

func TestCompletionEventSchema(t *testing.T) {
	s := MustGet(SchemaCompletionEvent)

	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantField string
	}{
		{name: "valid", doc: `{"driverId":"drv-1","completionData":{"step":"selfie"}}`, wantValid: true},
		{name: "missing driver", doc: `{"completionData":{}}`, wantValid: false, wantField: "(root)"},
		{name: "empty driver", doc: `{"driverId":""}`, wantValid: false, wantField: "driverId"},
		{name: "wrong type", doc: `{"driverId":42}`, wantValid: false, wantField: "driverId"},
		{name: "malformed", doc: `{"driverId":`, wantValid: false, wantField: "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateJSON([]byte(tt.doc))
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.NoError(t, res.Error())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.wantField, res.Errors[0].Field)
			assert.Error(t, res.Error())
		})
	}
}

func TestScoreInputSchema_AllowsNullFacialScore(t *testing.T) {
	s := MustGet(SchemaScoreInput)
	assert.True(t, s.ValidateJSON([]byte(`{"facialScore":null,"references":[{"verified":true}]}`)).Valid)
	assert.False(t, s.ValidateJSON([]byte(`{"facialScore":"high"}`)).Valid)
	assert.False(t, s.ValidateGo(map[string]interface{}{"licenseVerified": "yes"}).Valid)
}
