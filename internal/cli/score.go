package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"kyc-workers/internal/common/config"
	"kyc-workers/internal/common/logger"
	"kyc-workers/internal/common/validation"
	calculateverificationscore "kyc-workers/internal/workers/kyc/calculate-verification-score"
)

var scoreConfigPath string

var scoreCmd = &cobra.Command{
	Use:   "score [file|-]",
	Short: "Compute a verification score without storing it",
	Long: `Reads score input as JSON and prints the final score with its components.
Weights come from --config when given, otherwise the built-in defaults.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreConfigPath, "config", "", "config file supplying scoring weights")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	weights := config.DefaultWeights
	defaultFacial := calculateverificationscore.DefaultFacialComponent
	if scoreConfigPath != "" {
		cfg, err := config.LoadFromFile(scoreConfigPath)
		if err != nil {
			return err
		}
		weights = cfg.KYC.Scoring.Weights
		defaultFacial = cfg.KYC.Scoring.DefaultFacialComponent
	}

	raw, err := readInput(cmd, args)
	if err != nil {
		return fmt.Errorf("read score input: %w", err)
	}
	if sr := validation.MustGet(validation.SchemaScoreInput).ValidateJSON(raw); !sr.Valid {
		return sr.Error()
	}
	var in calculateverificationscore.ScoreInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode score input: %w", err)
	}

	agg := calculateverificationscore.NewAggregator(weights, defaultFacial, logger.NewNoOpLogger())
	return printJSON(cmd, agg.Calculate(in))
}
