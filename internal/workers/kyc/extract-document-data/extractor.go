// internal/workers/kyc/extract-document-data/extractor.go
package extractdocumentdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/metrics"
)

// TextExtractionEngine turns a document image into raw text.
type TextExtractionEngine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// TextCache stores engine output keyed by image content hash.
type TextCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// FallbackText stands in for engine output when the engine is unavailable.
// It carries no field labels, so parsing it yields empty fields.
const FallbackText = "[text extraction unavailable] document image could not be read"

const (
	ReasonInputMissing      = "input_missing"
	ReasonEngineUnavailable = "engine_unavailable"
	ReasonEngineError       = "engine_error"
	ReasonEngineTimeout     = "engine_timeout"
)

type Extractor struct {
	engine  TextExtractionEngine
	cache   TextCache
	timeout time.Duration
	logger  logger.Logger
}

// NewExtractor accepts a nil engine (OCR disabled) and a nil cache.
func NewExtractor(engine TextExtractionEngine, cache TextCache, timeout time.Duration, log logger.Logger) *Extractor {
	return &Extractor{engine: engine, cache: cache, timeout: timeout, logger: log}
}

// ExtractText never fails. A missing image yields empty text and an engine
// problem yields FallbackText.
func (e *Extractor) ExtractText(ctx context.Context, imagePath string) TextResult {
	if imagePath == "" {
		e.logger.Error("document image path is empty", nil)
		return TextResult{Reason: ReasonInputMissing}
	}
	content, err := os.ReadFile(imagePath)
	if err != nil {
		e.logger.Error("document image not readable", map[string]interface{}{
			"imagePath": imagePath,
			"error":     err,
		})
		return TextResult{Reason: ReasonInputMissing}
	}

	sum := sha256.Sum256(content)
	key := hex.EncodeToString(sum[:])
	if cached, ok := e.fromCache(ctx, key); ok {
		return TextResult{Text: cached}
	}

	if e.engine == nil {
		return e.fallback(imagePath, ReasonEngineUnavailable, nil)
	}

	text, err := e.runEngine(ctx, imagePath)
	if err != nil {
		reason := ReasonEngineError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonEngineTimeout
		}
		return e.fallback(imagePath, reason, err)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, text); err != nil {
			e.logger.Warn("ocr cache write failed", map[string]interface{}{"error": err})
		}
	}
	return TextResult{Text: text}
}

// ExtractDocumentData runs extraction and parsing together.
func (e *Extractor) ExtractDocumentData(ctx context.Context, imagePath string) (TextResult, ParsedFields) {
	res := e.ExtractText(ctx, imagePath)
	return res, ParseDocumentText(res.Text)
}

func (e *Extractor) fromCache(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	var text string
	hit, err := e.cache.Get(ctx, key, &text)
	if err != nil {
		e.logger.Warn("ocr cache read failed", map[string]interface{}{"error": err})
		return "", false
	}
	return text, hit
}

type engineResult struct {
	text string
	err  error
}

// runEngine bounds the call by the configured timeout even when the engine
// ignores ctx, and turns engine panics into errors.
func (e *Extractor) runEngine(ctx context.Context, imagePath string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ch := make(chan engineResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- engineResult{err: fmt.Errorf("text extraction engine panic: %v", r)}
			}
		}()
		text, err := e.engine.ExtractText(ctx, imagePath)
		ch <- engineResult{text: text, err: err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Extractor) fallback(imagePath, reason string, cause error) TextResult {
	fields := map[string]interface{}{
		"imagePath": imagePath,
		"reason":    reason,
	}
	if cause != nil {
		fields["error"] = cause
	}
	e.logger.Error("text extraction failed, using fallback text", fields)
	metrics.KYCSubstitutions.WithLabelValues("ocr", reason).Inc()
	return TextResult{Text: FallbackText, Fallback: true, Reason: reason}
}
