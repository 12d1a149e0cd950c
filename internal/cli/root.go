package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "kycctl",
	Short: "Operator tooling for the driver KYC workers",
	Long: `kycctl runs the KYC validation, scoring and text parsing rules locally,
without a workflow engine, and checks the activity registry.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the version reported by "kycctl version".
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("kycctl version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// readInput reads a file argument, or stdin when the argument is absent or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
