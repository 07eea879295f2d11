package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rustyeddy/bintrader/bot"
	"github.com/rustyeddy/bintrader/journal"
)

func renderSummary(w io.Writer, perAsset []journal.Summary, total journal.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Trade Journal")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Asset", "Trades", "Wins", "Losses", "Draws", "Win %", "Staked", "P/L"})
	for _, s := range perAsset {
		t.AppendRow(summaryRow(s.Asset, s))
	}
	t.AppendFooter(summaryRow("TOTAL", total))
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

func summaryRow(label string, s journal.Summary) table.Row {
	return table.Row{
		label, s.Trades, s.Wins, s.Losses, s.Draws,
		fmt.Sprintf("%.2f", s.Assertiveness()),
		s.Staked.StringFixed(2),
		s.PnL.StringFixed(2),
	}
}

func renderResult(w io.Writer, res bot.Result) {
	snap := res.Snapshot
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Session Summary")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Session", res.SessionID},
		{"Stop reason", res.Reason},
		{"Operations", snap.Operations},
		{"Wins / Losses", fmt.Sprintf("%d / %d", snap.Wins, snap.Losses)},
		{"Assertiveness", fmt.Sprintf("%.2f%%", snap.Assertiveness)},
		{"Daily P/L", snap.DailyPnL.StringFixed(2)},
		{"Balance", snap.Balance.StringFixed(2)},
		{"Capital strategy", snap.Policy},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 28, Align: text.AlignLeft},
	})
	t.Render()
}
