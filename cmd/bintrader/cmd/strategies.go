package cmd

import (
	"fmt"

	"github.com/rustyeddy/bintrader/strategies"
	"github.com/spf13/cobra"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the registered entry strategies",
	Long: `Print the strategy names accepted in trading.strategies.

Strategies are evaluated in the configured order and the first one that
signals places the trade for the round.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range strategies.Default().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
