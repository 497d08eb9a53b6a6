package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var proofreadCmd = &cobra.Command{
	Use:   "proofread",
	Short: "Review recent marketing emails for copy problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "proofread")
		if err != nil {
			return err
		}
		defer env.Close()

		reviews, err := newReviewer(env).Run(ctx)
		if err != nil {
			return err
		}
		if len(reviews) == 0 {
			zap.L().Info("no marketing emails to review")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reviews)
	},
}

func init() {
	rootCmd.AddCommand(proofreadCmd)
}
