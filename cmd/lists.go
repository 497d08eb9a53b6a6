package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage tracked CRM contact lists",
}

var listsAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List contact lists available in the CRM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "crm")
		if err != nil {
			return err
		}
		defer env.Close()

		lists, err := env.crm.ListLists(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lists)
	},
}

var trackedListName string

var listsTrackCmd = &cobra.Command{
	Use:   "track <list-id>",
	Short: "Track a contact list's size in future reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		l := model.TrackedList{ListID: args[0], Name: trackedListName}
		if l.Name == "" {
			return eris.New("--name is required")
		}
		if err := env.store.AddTrackedList(ctx, l); err != nil {
			return err
		}
		zap.L().Info("list tracked", zap.String("list_id", l.ListID), zap.String("name", l.Name))
		return nil
	},
}

var listsUntrackCmd = &cobra.Command{
	Use:   "untrack <list-id>",
	Short: "Stop tracking a contact list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.RemoveTrackedList(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("list untracked", zap.String("list_id", args[0]))
		return nil
	},
}

var listsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked contact lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		lists, err := env.store.ListTrackedLists(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lists)
	},
}

func init() {
	listsTrackCmd.Flags().StringVar(&trackedListName, "name", "", "display name used in report rows")
	listsCmd.AddCommand(listsAvailableCmd, listsTrackCmd, listsUntrackCmd, listsListCmd)
	rootCmd.AddCommand(listsCmd)
}
