package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage quarterly goals",
}

var (
	goalKind        string
	goalTarget      string
	goalYear        int
	goalQuarters    []int
	goalValueCount  int
	goalValueAmount float64
)

var goalsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set quarterly targets for a metric, form, or pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind := model.GoalKind(goalKind)
		if kind != model.GoalKindMetric && kind != model.GoalKindForm && kind != model.GoalKindPipeline {
			return eris.Errorf("kind must be metric, form, or pipeline, got %q", goalKind)
		}
		if goalTarget == "" {
			return eris.New("--target is required")
		}
		if len(goalQuarters) != 4 {
			return eris.Errorf("--quarters needs exactly 4 values, got %d", len(goalQuarters))
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		g := model.Goal{
			Kind:        kind,
			TargetID:    goalTarget,
			Year:        goalYear,
			Q1:          goalQuarters[0],
			Q2:          goalQuarters[1],
			Q3:          goalQuarters[2],
			Q4:          goalQuarters[3],
			ValueCount:  goalValueCount,
			ValueAmount: goalValueAmount,
		}
		if err := env.store.UpsertGoal(ctx, g); err != nil {
			return err
		}

		zap.L().Info("goal saved",
			zap.String("kind", string(g.Kind)),
			zap.String("target", g.TargetID),
			zap.Int("year", g.Year),
			zap.Int("year_target", g.QuarterlyTotal()),
		)
		return nil
	},
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals for a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		goals, err := env.store.ListGoals(ctx, goalYear)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(goals)
	},
}

var projectionValue int

var goalsProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Save a legacy year-end projection for a metric without quarterly goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if goalTarget == "" {
			return eris.New("--target is required")
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.SaveProjection(ctx, goalTarget, goalYear, projectionValue); err != nil {
			return err
		}
		zap.L().Info("projection saved",
			zap.String("target", goalTarget),
			zap.Int("year", goalYear),
			zap.Int("value", projectionValue),
		)
		return nil
	},
}

func init() {
	goalsSetCmd.Flags().StringVar(&goalKind, "kind", "metric", "goal kind: metric, form, or pipeline")
	goalsSetCmd.Flags().StringVar(&goalTarget, "target", "", "metric id, form guid, or pipeline id")
	goalsSetCmd.Flags().IntVar(&goalYear, "year", 0, "calendar year")
	goalsSetCmd.Flags().IntSliceVar(&goalQuarters, "quarters", nil, "four quarterly targets, Q1 through Q4")
	goalsSetCmd.Flags().IntVar(&goalValueCount, "value-count", 0, "optional deal-count component of a value goal")
	goalsSetCmd.Flags().Float64Var(&goalValueAmount, "value-amount", 0, "optional deal-value component of a value goal")
	_ = goalsSetCmd.MarkFlagRequired("year")
	_ = goalsSetCmd.MarkFlagRequired("quarters")

	goalsListCmd.Flags().IntVar(&goalYear, "year", 0, "calendar year")
	_ = goalsListCmd.MarkFlagRequired("year")

	goalsProjectCmd.Flags().StringVar(&goalTarget, "target", "", "metric id")
	goalsProjectCmd.Flags().IntVar(&goalYear, "year", 0, "calendar year")
	goalsProjectCmd.Flags().IntVar(&projectionValue, "value", 0, "projected year-end value")
	_ = goalsProjectCmd.MarkFlagRequired("year")
	_ = goalsProjectCmd.MarkFlagRequired("value")

	goalsCmd.AddCommand(goalsSetCmd, goalsListCmd, goalsProjectCmd)
	rootCmd.AddCommand(goalsCmd)
}
