package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/ocr"
	extractdocumentdata "kyc-workers/internal/workers/kyc/extract-document-data"
)

var (
	extractBinary   string
	extractLanguage string
	extractTimeout  time.Duration
)

var parseTextCmd = &cobra.Command{
	Use:   "parse-text [file|-]",
	Short: "Parse fields out of already recognised document text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		fields := extractdocumentdata.ParseDocumentText(ocr.Normalize(string(raw)))
		return printJSON(cmd, fields)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Run OCR over a document image and parse its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
			Binary:   extractBinary,
			Language: extractLanguage,
		}, nil)
		extractor := extractdocumentdata.NewExtractor(engine, nil, extractTimeout, logger.NewNoOpLogger())

		res, fields := extractor.ExtractDocumentData(context.Background(), args[0])
		return printJSON(cmd, extractdocumentdata.Output{
			ExtractedText: res.Text,
			Fields:        fields,
			TextFallback:  res.Fallback,
			Reason:        res.Reason,
		})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractBinary, "tesseract", "tesseract", "tesseract binary")
	extractCmd.Flags().StringVar(&extractLanguage, "lang", "eng", "OCR language")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 15*time.Second, "OCR timeout")
	rootCmd.AddCommand(parseTextCmd)
	rootCmd.AddCommand(extractCmd)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
