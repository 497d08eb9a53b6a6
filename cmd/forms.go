package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Manage tracked CRM forms",
}

var formsAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List forms available in the CRM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "crm")
		if err != nil {
			return err
		}
		defer env.Close()

		forms, err := env.crm.ListForms(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(forms)
	},
}

var trackedFormName string

var formsTrackCmd = &cobra.Command{
	Use:   "track <form-guid>",
	Short: "Track a form's submissions in future reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		f := model.TrackedForm{GUID: args[0], Name: trackedFormName}
		if f.Name == "" {
			return eris.New("--name is required")
		}
		if err := env.store.AddTrackedForm(ctx, f); err != nil {
			return err
		}
		zap.L().Info("form tracked", zap.String("guid", f.GUID), zap.String("name", f.Name))
		return nil
	},
}

var formsUntrackCmd = &cobra.Command{
	Use:   "untrack <form-guid>",
	Short: "Stop tracking a form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.RemoveTrackedForm(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("form untracked", zap.String("guid", args[0]))
		return nil
	},
}

var formsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked forms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		forms, err := env.store.ListTrackedForms(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(forms)
	},
}

func init() {
	formsTrackCmd.Flags().StringVar(&trackedFormName, "name", "", "display name used in report rows")
	formsCmd.AddCommand(formsAvailableCmd, formsTrackCmd, formsUntrackCmd, formsListCmd)
	rootCmd.AddCommand(formsCmd)
}
