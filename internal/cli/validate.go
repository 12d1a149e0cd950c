package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	validatedocument "kyc-workers/internal/workers/kyc/validate-document"
)

var errDocumentInvalid = errors.New("document is invalid")

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate-document [file|-]",
	Short: "Validate a document validation request",
	Long: `Reads a document validation request as JSON and prints the result.
With --strict the command fails when the document is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "exit non-zero when the document is invalid")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	res := validatedocument.NewValidator().ValidateJSON(raw)
	if err := printJSON(cmd, res); err != nil {
		return err
	}

	if validateStrict && !res.Valid {
		return errDocumentInvalid
	}
	return nil
}
