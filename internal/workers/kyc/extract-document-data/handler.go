// internal/workers/kyc/extract-document-data/handler.go
package extractdocumentdata

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	kycerrors "kyc-workers/internal/common/errors"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "extract-document-data"
)

type Handler struct {
	config       *Config
	extractor    *Extractor
	logger       logger.Logger
	errorHandler *kycerrors.ErrorHandler
	schema       *validation.Schema
}

func NewHandler(config *Config, engine TextExtractionEngine, cache TextCache, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		extractor:    NewExtractor(engine, cache, config.OCRTimeout, l),
		logger:       l,
		errorHandler: kycerrors.NewErrorHandler(l),
		schema:       validation.MustGet(validation.SchemaExtractDocumentInput),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if res := h.schema.ValidateJSON([]byte(job.Variables)); !res.Valid {
		h.errorHandler.HandleJobError(ctx, client, job, kycerrors.NewInvalidInputError(res.Error().Error()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, kycerrors.NewInvalidInputError(err.Error()))
		return
	}

	output := h.execute(ctx, &input)
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	path, ok := h.resolvePath(input.ImagePath)
	if !ok {
		h.logger.Error("image path outside document base path", map[string]interface{}{
			"driverId":  input.DriverID,
			"imagePath": input.ImagePath,
			"basePath":  h.config.BasePath,
		})
		return &Output{Reason: ReasonInputMissing}
	}

	res, fields := h.extractor.ExtractDocumentData(ctx, path)

	h.logger.Info("document text extracted", map[string]interface{}{
		"driverId":     input.DriverID,
		"documentType": input.DocumentType,
		"chars":        len(res.Text),
		"fallback":     res.Fallback,
		"reason":       res.Reason,
	})

	return &Output{
		ExtractedText: res.Text,
		Fields:        fields,
		TextFallback:  res.Fallback,
		Reason:        res.Reason,
	}
}

// resolvePath joins relative paths onto BasePath. With a BasePath set, any
// path that cleans to a location outside it is rejected.
func (h *Handler) resolvePath(p string) (string, bool) {
	if p == "" || h.config.BasePath == "" {
		return p, true
	}
	base := filepath.Clean(h.config.BasePath)
	full := filepath.Clean(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, full)
	}
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}
