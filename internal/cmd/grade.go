package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/metrics"
	"github.com/quizai/quizai/internal/observability"
	"github.com/quizai/quizai/internal/output"
)

var (
	gradeRoomID    string
	gradeAccountID string
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade every pending submission in a room",
	Long: `Grade every pending submission in a room with one model call.

Without --account the room owner's quota is still charged but ownership is
not checked. Result emails are sent before the command exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		roomID := strings.TrimSpace(gradeRoomID)
		if roomID == "" {
			return cmd.Usage()
		}

		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}

		logger := observability.CLILogger
		app, err := buildGrading(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(context.Background()); err != nil {
				logger.Warn("Shutdown drain incomplete", zap.Error(err))
			}
		}()

		summary, err := app.Grader.RunBatch(ctx, roomID, strings.TrimSpace(gradeAccountID))
		metrics.RecordOperation("grade_batch", err == nil)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatSummary(summary)
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "grade."+sanitizeFilename(roomID))
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		return writeOutput(sink.writer, rendered)
	},
}

func init() {
	rootCmd.AddCommand(gradeCmd)
	addOutputFlags(gradeCmd)
	gradeCmd.Flags().StringVar(&gradeRoomID, "room", "", "Room id to grade (required)")
	gradeCmd.Flags().StringVar(&gradeAccountID, "account", "", "Grade on behalf of this host account (checks ownership)")
}
