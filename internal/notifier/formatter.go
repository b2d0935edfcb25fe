package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"ETFSentinel/internal/analysis"
	"ETFSentinel/internal/display"
	"ETFSentinel/internal/model"
)

var severityIcon = map[model.Severity]string{
	model.SeverityGreen:  "🟢",
	model.SeverityYellow: "🟡",
	model.SeverityRed:    "🔴",
}

// FormatDiscrepancies formats flagged reconciliation records of one fund.
func FormatDiscrepancies(ticker string, records []model.ValidationRecord, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>Reconciliation alert</b> | %s | %s\n\n", html.EscapeString(ticker), at.Format("2006-01-02 15:04")))
	for _, r := range records {
		sev, ok := r.Severity()
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%s <b>%s</b>: ours %s vs %s (%s), diff %s\n",
			severityIcon[sev],
			display.Label(r.Metric),
			display.Value(r.Metric, r.Our),
			display.Value(r.Metric, r.External),
			html.EscapeString(r.Source),
			display.Difference(r),
		))
		if note := r.Note(); note != "" {
			b.WriteString(fmt.Sprintf("   <i>%s</i>\n", html.EscapeString(note)))
		}
	}
	return b.String()
}

// FormatReport formats a condensed fund report.
func FormatReport(r *analysis.Report) string {
	var b strings.Builder
	m := r.Metrics

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s vs %s\n\n", html.EscapeString(r.Symbol), r.Period, html.EscapeString(r.Benchmark)))
	b.WriteString(fmt.Sprintf("Volatility: %s\n", display.Percent(m.Volatility, 2)))
	b.WriteString(fmt.Sprintf("Sharpe: %.2f | Sortino: %.2f\n", m.Sharpe, m.Sortino))
	b.WriteString(fmt.Sprintf("Max drawdown: %s\n", display.Percent(m.MaxDrawdown, 2)))
	b.WriteString(fmt.Sprintf("Tracking error: %s | Beta: %.2f\n", display.Percent(m.TrackingError, 2), m.Beta))
	b.WriteString(fmt.Sprintf("Liquidity: %.1f/100\n", m.Liquidity.Total))
	if r.Costs != nil {
		b.WriteString(fmt.Sprintf("Round-trip cost: %s\n", display.Percent(r.Costs.Total.RoundTrip, 3)))
	}
	if r.Premium != nil && r.Premium.Percent.Valid {
		b.WriteString(fmt.Sprintf("Premium/discount: %+.2f%%\n", r.Premium.Percent.Float64))
	}

	if len(r.Validation) > 0 {
		b.WriteString("\n<b>Reconciliation</b>\n")
		for _, rec := range r.Validation {
			icon := "⚪"
			if sev, ok := rec.Severity(); ok {
				icon = severityIcon[sev]
			}
			b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, display.Label(rec.Metric), display.Difference(rec)))
		}
	}
	if r.ValidationWarning != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", html.EscapeString(r.ValidationWarning)))
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "<b>ETFSentinel commands</b>\n\n" +
		"/check TICKER - analyse and reconcile a fund\n" +
		"/help - show this message"
}
