package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and clear failed-attempt lockouts",
	Long: `Inspect and clear failed-attempt lockouts.

Records are keyed "<action>:<identifier>", for example "login:ada@example.com".
Use --prefix login: to select every login record.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
