package api

import (
	"encoding/json"
	"io"
	"net/http"

	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/validation"
	calculateverificationscore "kyc-workers/internal/workers/kyc/calculate-verification-score"
	validatedocument "kyc-workers/internal/workers/kyc/validate-document"
)

const maxBodyBytes = 1 << 20

type DocumentValidator interface {
	ValidateJSON(raw []byte) validatedocument.ValidationResult
}

type ScoreCalculator interface {
	Calculate(in calculateverificationscore.ScoreInput) calculateverificationscore.ScoreResult
}

type handlers struct {
	validator DocumentValidator
	scorer    ScoreCalculator
	log       logger.Logger
}

// validateDocument always answers 200 with the validation outcome; only an
// unreadable body is a client error.
func (h *handlers) validateDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	res := h.validator.ValidateJSON(raw)
	if !res.Valid {
		h.log.Debug("Document rejected", map[string]interface{}{
			"errors": res.Errors,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// calculateScore is a dry run of the aggregator. Nothing is persisted.
func (h *handlers) calculateScore(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	if sr := validation.MustGet(validation.SchemaScoreInput).ValidateJSON(raw); !sr.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid score input",
			"details": sr.Messages(),
		})
		return
	}

	var in calculateverificationscore.ScoreInput
	if err := json.Unmarshal(raw, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.scorer.Calculate(in))
}
