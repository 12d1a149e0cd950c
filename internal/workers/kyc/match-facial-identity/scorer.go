// internal/workers/kyc/match-facial-identity/scorer.go
package matchfacialidentity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
	"kyc-workers/internal/models"
	"kyc-workers/internal/repository"
)

// FaceComparisonEngine reports whether two images show the same person.
type FaceComparisonEngine interface {
	Compare(ctx context.Context, sourcePath, targetPath string) (bool, error)
}

type DriverImages interface {
	GetDriver(ctx context.Context, driverID string) (*models.Driver, error)
	GetReferenceDocument(ctx context.Context, driverID string) (*models.DriverDocument, error)
}

// FailClosedScore is returned whenever a comparison cannot be made.
const FailClosedScore = 0.0

const (
	ReasonMissingProfile    = "missing_profile_image"
	ReasonMissingReference  = "missing_reference_image"
	ReasonDriverLookup      = "driver_lookup_failed"
	ReasonEngineUnavailable = "engine_unavailable"
	ReasonEngineError       = "engine_error"
	ReasonEngineTimeout     = "engine_timeout"
)

// Bands maps the boolean engine verdict to a confidence.
type Bands struct {
	Match    float64
	Mismatch float64
}

var DefaultBands = Bands{Match: 0.85, Mismatch: 0.15}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

type Scorer struct {
	engine  FaceComparisonEngine
	images  DriverImages
	bands   Bands
	timeout time.Duration
	logger  logger.Logger
}

func NewScorer(engine FaceComparisonEngine, images DriverImages, bands Bands, timeout time.Duration, log logger.Logger) *Scorer {
	return &Scorer{
		engine:  engine,
		images:  images,
		bands:   Bands{Match: clamp01(bands.Match), Mismatch: clamp01(bands.Mismatch)},
		timeout: timeout,
		logger:  log,
	}
}

// Match compares the driver's profile photo with their oldest license or
// photo document. It fails closed to 0.0.
func (s *Scorer) Match(ctx context.Context, driverID string) MatchResult {
	driver, err := s.images.GetDriver(ctx, driverID)
	if err != nil {
		return s.failClosed(driverID, ReasonDriverLookup, err, false)
	}
	if driver.ProfilePhotoPath == "" {
		return s.failClosed(driverID, ReasonMissingProfile, nil, true)
	}

	ref, err := s.images.GetReferenceDocument(ctx, driverID)
	if errors.Is(err, repository.ErrNoReference) || (err == nil && ref.FilePath == "") {
		return s.failClosed(driverID, ReasonMissingReference, nil, true)
	}
	if err != nil {
		return s.failClosed(driverID, ReasonDriverLookup, err, false)
	}

	if s.engine == nil {
		return s.failClosed(driverID, ReasonEngineUnavailable, nil, false)
	}

	same, err := s.compare(ctx, driver.ProfilePhotoPath, ref.FilePath)
	if err != nil {
		reason := ReasonEngineError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonEngineTimeout
		}
		return s.failClosed(driverID, reason, err, false)
	}

	score := s.bands.Mismatch
	if same {
		score = s.bands.Match
	}
	s.logger.Info("facial match scored", map[string]interface{}{
		"driverId":    driverID,
		"match":       same,
		"score":       score,
		"referenceId": ref.ID,
	})
	return MatchResult{Score: score}
}

type compareResult struct {
	same bool
	err  error
}

// compare bounds the engine call by the timeout whether or not the engine
// watches ctx. A verdict that arrives after the deadline is discarded.
func (s *Scorer) compare(ctx context.Context, source, target string) (bool, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ch := make(chan compareResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- compareResult{err: fmt.Errorf("face comparison engine panic: %v", r)}
			}
		}()
		same, err := s.engine.Compare(ctx, source, target)
		ch <- compareResult{same: same, err: err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && ctx.Err() != nil {
			return false, ctx.Err()
		}
		return r.same, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Scorer) failClosed(driverID, reason string, cause error, warn bool) MatchResult {
	fields := map[string]interface{}{
		"driverId": driverID,
		"reason":   reason,
	}
	if cause != nil {
		fields["error"] = cause
	}
	if warn {
		s.logger.Warn("facial match input missing, failing closed", fields)
	} else {
		s.logger.Error("facial match unavailable, failing closed", fields)
	}
	metrics.KYCSubstitutions.WithLabelValues("facial", reason).Inc()
	return MatchResult{Score: FailClosedScore, Substituted: true, Reason: reason}
}
