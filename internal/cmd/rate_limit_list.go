package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quizai/quizai/internal/core"
	"github.com/quizai/quizai/internal/core/store"
	"github.com/quizai/quizai/internal/output"
)

var (
	rateLimitListAll    bool
	rateLimitListKey    string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit records",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		query := store.RateLimitQuery{
			All:    rateLimitListAll,
			Key:    strings.TrimSpace(rateLimitListKey),
			Prefix: strings.TrimSpace(rateLimitListPrefix),
		}
		if query.Key == "" && query.Prefix == "" {
			query.All = true
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		records := make([]core.RateLimitRecord, 0, len(entries))
		for _, entry := range entries {
			records = append(records, entry.Record)
		}

		rendered, err := output.NewFormatter(format).FormatRateLimits(records, time.Now())
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, format, "rate-limit.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		return writeOutput(sink.writer, rendered)
	},
}

func init() {
	addOutputFlags(rateLimitListCmd)
	rateLimitListCmd.Flags().BoolVar(&rateLimitListAll, "all", false, "List all records (default when no filter is given)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListKey, "key", "", "List a single record (exact key)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List records whose key starts with prefix")
}
