package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kyc-workers/pkg/registry"
)

var registryPath string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the activity registry",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered KYC activities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return err
		}
		if len(reg.Activities) == 0 {
			cmd.Println("No activities registered.")
			return nil
		}
		for _, a := range reg.Activities {
			cmd.Printf("  %-30s %-22s %-8s %s\n", a.TaskType, a.FailureMode, a.Timeout, a.ImplementationStatus)
		}
		return nil
	},
}

var registryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the activity registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return err
		}
		problems := reg.Validate()
		if len(problems) == 0 {
			cmd.Printf("Registry OK: %d activities\n", len(reg.Activities))
			return nil
		}
		for _, p := range problems {
			cmd.Println("  - " + p)
		}
		return errors.New("registry has problems: " + strings.Join(problems, "; "))
	},
}

var (
	updateID    string
	updateField string
	updateValue string
)

var registryUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update one field of a registered activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return err
		}
		if err := reg.Update(updateID, updateField, updateValue, time.Now()); err != nil {
			return err
		}
		if err := registry.Save(reg, registryPath); err != nil {
			return err
		}
		cmd.Printf("Updated activity %s, field %s to %s\n", updateID, updateField, updateValue)
		return nil
	},
}

func init() {
	registryUpdateCmd.Flags().StringVar(&updateID, "id", "", "activity id")
	registryUpdateCmd.Flags().StringVar(&updateField, "field", "", "field to update (status, version, timeout, retries, ...)")
	registryUpdateCmd.Flags().StringVar(&updateValue, "value", "", "new value")
	_ = registryUpdateCmd.MarkFlagRequired("id")
	_ = registryUpdateCmd.MarkFlagRequired("field")
	_ = registryUpdateCmd.MarkFlagRequired("value")
	registryCmd.AddCommand(registryUpdateCmd)

	registryCmd.PersistentFlags().StringVar(&registryPath, "path", "configs/activity-registry.json", "path to registry file")
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryCheckCmd)
	rootCmd.AddCommand(registryCmd)
}
