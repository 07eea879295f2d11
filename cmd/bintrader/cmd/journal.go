package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/bintrader/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade audit log",
	Long: `Read the trade audit log written by the run command.

Subcommands:
  summary - Per asset totals of trades, wins, losses and P/L

Examples:
  bintrader journal summary -f trades.csv
  bintrader journal summary --db trades.db --day 2026-10-14`,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize trades per asset",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var (
	journalCSVPath string
	journalDBPath  string
	journalDay     string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalSummaryCmd)

	journalCmd.PersistentFlags().StringVarP(&journalCSVPath, "file", "f", "", "CSV audit log (defaults to journal.trades_file)")
	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "", "SQLite audit log, read instead of the CSV")
	journalSummaryCmd.Flags().StringVar(&journalDay, "day", "", "only trades on this day (YYYY-MM-DD, local time)")
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	recs, err := loadRecords()
	if err != nil {
		return err
	}

	perAsset, total := journal.Summarize(recs)
	if total.Trades == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no trades")
		return nil
	}
	renderSummary(cmd.OutOrStdout(), perAsset, total)
	return nil
}

func loadRecords() ([]journal.TradeRecord, error) {
	var start, end time.Time
	if journalDay != "" {
		var err error
		start, end, err = dayBounds(time.Local, journalDay)
		if err != nil {
			return nil, fmt.Errorf("date: %w", err)
		}
	}

	if journalDBPath != "" {
		j, err := journal.NewSQLite(journalDBPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		defer j.Close()

		if journalDay == "" {
			start, end = time.Unix(0, 0), time.Now().AddDate(100, 0, 0)
		}
		recs, err := j.ListBetween(start, end)
		if err != nil {
			return nil, fmt.Errorf("query trades: %w", err)
		}
		return recs, nil
	}

	path := journalCSVPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.TradesFile
	}
	recs, err := journal.ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if journalDay == "" {
		return recs, nil
	}

	out := recs[:0]
	for _, r := range recs {
		if !r.Time.Before(start) && r.Time.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
