package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyOutput is returned when the engine ran but recognised nothing.
var ErrEmptyOutput = errors.New("ocr produced no text")

type TesseractConfig struct {
	Binary      string // default "tesseract"
	Language    string // default "eng"
	TessdataDir string
	PSM         int // page segmentation mode, 0 leaves the engine default
}

// TesseractEngine shells out to the tesseract CLI.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
}

func NewTesseractEngine(cfg TesseractConfig, runner Runner) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractEngine{cfg: cfg, runner: runner}
}

// ExtractText returns normalized text recognised in the image at path.
func (e *TesseractEngine) ExtractText(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprint(e.cfg.PSM))
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("tesseract: %w", ctxErr)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 2<<10))
	}

	txt := Normalize(string(out))
	if txt == "" {
		return "", ErrEmptyOutput
	}
	return txt, nil
}
