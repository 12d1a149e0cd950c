// internal/workers/kyc/calculate-verification-score/aggregator.go
package calculateverificationscore

import (
	"fmt"
	"math"

	"kyc-workers/internal/common/config"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
	"kyc-workers/internal/models"
)

const (
	// NeutralScore is the only value returned when aggregation itself fails.
	NeutralScore = 50
	// DefaultFacialComponent stands in for a facial score that was never
	// supplied. An empty payload therefore scores 25: 50*0.30 from the facial
	// default plus 100*0.10 from an untouched consistency component.
	DefaultFacialComponent = 50.0

	// perfectThreshold absorbs float error in an all-maximum payload.
	perfectThreshold = 99.99

	ReasonFacialDefaulted = "facial_score_absent"
	ReasonAggregation     = "aggregation_failed"
)

type Aggregator struct {
	Weights       config.ScoringWeights
	DefaultFacial float64
	logger        logger.Logger
}

// NewAggregator falls back to the standard weights unless the supplied set
// sums to 100.
func NewAggregator(weights config.ScoringWeights, defaultFacial float64, log logger.Logger) *Aggregator {
	if math.Abs(weights.Sum()-100) > 1e-9 {
		weights = config.DefaultWeights
	}
	if defaultFacial <= 0 || defaultFacial > 100 || math.IsNaN(defaultFacial) {
		defaultFacial = DefaultFacialComponent
	}
	return &Aggregator{Weights: weights, DefaultFacial: defaultFacial, logger: log}
}

// Calculate never panics. Internal failure yields NeutralScore with
// Substituted set.
func (a *Aggregator) Calculate(in ScoreInput) (res ScoreResult) {
	defer func() {
		if r := recover(); r != nil {
			res = a.neutral(fmt.Errorf("panic: %v", r))
		}
	}()

	facial, facialDefaulted, err := a.facialComponent(in.FacialScore)
	if err != nil {
		return a.neutral(err)
	}
	consistency, err := consistencyComponent(in)
	if err != nil {
		return a.neutral(err)
	}

	c := models.VerificationScoreComponents{
		Facial:      facial,
		Document:    documentComponent(in),
		Background:  backgroundComponent(in),
		Reference:   referenceComponent(in.References),
		Consistency: consistency,
	}

	w := a.Weights
	raw := c.Facial*w.Facial/100 +
		c.Document*w.Document/100 +
		c.Background*w.Background/100 +
		c.Reference*w.Reference/100 +
		c.Consistency*w.Consistency/100
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return a.neutral(fmt.Errorf("non-finite aggregate %v", raw))
	}

	final := 100
	if raw < perfectThreshold {
		final = int(math.Round(raw))
	}
	final = clampInt(final, 0, 100)

	res = ScoreResult{FinalScore: final, Components: c}
	if facialDefaulted {
		res.Reason = ReasonFacialDefaulted
	}
	return res
}

func (a *Aggregator) neutral(cause error) ScoreResult {
	if a.logger != nil {
		a.logger.Error("verification score aggregation failed, using neutral score", map[string]interface{}{
			"error":        cause,
			"neutralScore": NeutralScore,
		})
	}
	metrics.KYCSubstitutions.WithLabelValues("aggregate", ReasonAggregation).Inc()
	return ScoreResult{FinalScore: NeutralScore, Substituted: true, Reason: ReasonAggregation}
}

func (a *Aggregator) facialComponent(score *float64) (float64, bool, error) {
	if score == nil {
		return a.DefaultFacial, true, nil
	}
	v := *score
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("facial score is not finite: %v", v)
	}
	return clamp(v*100, 0, 100), false, nil
}

func documentComponent(in ScoreInput) float64 {
	s := 0.0
	if in.LicenseVerified {
		s += 40
	}
	if in.IDVerified {
		s += 30
	}
	if in.AddressVerified {
		s += 20
	}
	if in.DocumentsValid {
		s += 10
	}
	return math.Min(s, 100)
}

func backgroundComponent(in ScoreInput) float64 {
	s := 0.0
	if in.CriminalCheckPassed {
		s += 40
	}
	if in.DrivingRecordGood {
		s += 30
	}
	if in.EmploymentVerified {
		s += 30
	}
	return math.Min(s, 100)
}

func referenceComponent(refs []Reference) float64 {
	if len(refs) == 0 {
		return 0
	}
	positive := 0
	for _, r := range refs {
		if r.Verified {
			positive++
		}
	}
	return float64(positive) / float64(len(refs)) * 100
}

func consistencyComponent(in ScoreInput) (float64, error) {
	s := 100.0
	if in.NameMatches != nil && !*in.NameMatches {
		s -= 30
	}
	if in.DatesConsistent != nil && !*in.DatesConsistent {
		s -= 20
	}
	if in.AddressesMatch != nil && !*in.AddressesMatch {
		s -= 20
	}
	if in.DataCompleteness != nil {
		dc := *in.DataCompleteness
		if math.IsNaN(dc) || math.IsInf(dc, 0) {
			return 0, fmt.Errorf("data completeness is not finite: %v", dc)
		}
		s *= clamp(dc, 0, 100) / 100
	}
	return math.Max(s, 0), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
