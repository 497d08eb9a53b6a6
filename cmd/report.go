package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/report"
)

var (
	reportYear        int
	reportTitle       string
	reportSubtitle    string
	reportFocusAreas  []string
	reportTerminology []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a quarterly KPI report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		start := time.Now()
		rep, err := newReportEngine(env).Generate(ctx, report.Request{
			Year:        reportYear,
			Title:       reportTitle,
			Subtitle:    reportSubtitle,
			FocusAreas:  reportFocusAreas,
			Terminology: reportTerminology,
		})
		if err != nil {
			return err
		}

		zap.L().Info("report generated",
			zap.String("id", rep.ID),
			zap.Int("year", rep.Year),
			zap.Duration("took", time.Since(start)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportYear, "year", time.Now().UTC().Year(), "calendar year to report on")
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "report title (default derived from year)")
	reportCmd.Flags().StringVar(&reportSubtitle, "subtitle", "", "report subtitle")
	reportCmd.Flags().StringSliceVar(&reportFocusAreas, "focus", nil, "focus areas for the narrative")
	reportCmd.Flags().StringSliceVar(&reportTerminology, "terminology", nil, "preferred terminology for the narrative")
	rootCmd.AddCommand(reportCmd)
}
