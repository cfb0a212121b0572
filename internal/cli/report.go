package cli

import (
	"time"

	"stockalerts/internal/engine"
	"stockalerts/pkg/utils"
)

func printReport(output *Output, report *engine.Report) {
	output.Bold("Run %s", report.RunID)
	if report.EventType != "" {
		output.Printf("  Event:            %s\n", report.EventType)
	}
	output.Printf("  Stocks checked:   %d\n", report.StocksChecked)
	output.Printf("  Stocks updated:   %d\n", report.StocksUpdated)
	output.Printf("  Move alerts sent: %d\n", report.MoveNotifications)
	output.Printf("  Alerts checked:   %d\n", report.AlertsChecked)
	output.Printf("  Alerts triggered: %d (%d cleared)\n", report.AlertsTriggered, report.AlertsCleared)
	output.Printf("  Duration:         %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Failures) == 0 {
		output.Success("No failures")
		return
	}
	output.Println()
	output.Warning("%d failures", len(report.Failures))
	table := NewTable(output, "KIND", "SYMBOL", "STAGE", "ERROR")
	for _, f := range report.Failures {
		table.AddRow(string(f.Kind), f.Symbol, string(f.Stage), output.Red(f.Err.Error()))
	}
	table.Render()
}

func printPlan(output *Output, actions []engine.PlannedAction) {
	output.Println()
	if len(actions) == 0 {
		output.Dim("Dry run: nothing would change")
		return
	}
	output.Warning("Dry run: %d actions skipped", len(actions))
	table := NewTable(output, "ACTION", "SYMBOL", "DETAIL")
	for _, a := range actions {
		detail := ""
		switch a.Op {
		case "update":
			detail = "lastprice " + utils.FormatDollars(a.Price)
		case "delete":
			detail = "target " + utils.FormatDollars(a.Price)
		case "notify":
			detail = a.Title + ": " + a.Body
		}
		table.AddRow(output.Yellow(a.Op), a.Symbol, detail)
	}
	table.Render()
}
