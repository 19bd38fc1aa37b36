package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/store"
)

var (
	statsJSON  bool
	statsUsers int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics from the audit store",
	Long: `Summarize the usage audit store: message outcomes, token totals and
the heaviest users. Requires store.enabled in the relay configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if !cfg.Store.Enabled {
			return fmt.Errorf("usage store is disabled; set store.enabled to collect statistics")
		}

		db, err := store.Open(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		totals, err := db.UsageTotals(cmd.Context())
		if err != nil {
			return err
		}
		outcomes, err := db.OutcomeSummary(cmd.Context())
		if err != nil {
			return err
		}
		users, err := db.TopUsers(cmd.Context(), statsUsers)
		if err != nil {
			return err
		}

		if statsJSON {
			payload, err := json.MarshalIndent(map[string]any{
				"totals":   totals,
				"outcomes": outcomes,
				"users":    users,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		fmt.Printf("Messages: %d   Users: %d   Tokens: %d   Failed: %d\n\n",
			totals.Messages, totals.Users, totals.TotalTokens, totals.ErrorCount)

		if len(outcomes) > 0 {
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Outcome", "Count", "Tokens"})
			for _, oc := range outcomes {
				t.AppendRow(table.Row{oc.Outcome, oc.Count, oc.TotalTokens})
			}
			fmt.Println(t.Render())
		}

		if len(users) > 0 {
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"User", "Messages", "Tokens", "Last Seen"})
			for _, u := range users {
				t.AppendRow(table.Row{u.UserID, u.Messages, u.TotalTokens, u.LastSeen})
			}
			fmt.Println(t.Render())
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit JSON instead of tables")
	statsCmd.Flags().IntVar(&statsUsers, "users", 10, "number of top users to show")
}
