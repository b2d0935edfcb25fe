package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guregu/null/v6"

	"ETFSentinel/internal/analysis"
	"ETFSentinel/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			MarginTop(1)

	headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell       = lipgloss.NewStyle().Padding(0, 1)
	noteStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6B7280"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	severityStyles = map[model.Severity]lipgloss.Style{
		model.SeverityGreen:  lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		model.SeverityYellow: lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
		model.SeverityRed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	}
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#4B5563"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return cell
		})
}

// Report renders a full single-fund report.
func Report(r *analysis.Report) string {
	var b strings.Builder

	name := r.Symbol
	if r.Info != nil && r.Info.Name != "" {
		name = fmt.Sprintf("%s (%s)", r.Info.Name, r.Symbol)
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("ETF Analysis: %s", name)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Period: %s | Benchmark: %s | Observations: %d | %s\n",
		r.Period, r.Benchmark, r.Metrics.Observations, r.GeneratedAt.Format("2006-01-02 15:04"))
	if r.Info != nil && r.Info.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", r.Info.Category)
	}

	b.WriteString(sectionStyle.Render("Performance"))
	b.WriteString("\n")
	m := r.Metrics
	perf := newTable("Metric", "Value").
		Row("Volatility", Percent(m.Volatility, 2)).
		Row("Sharpe Ratio", fmt.Sprintf("%.2f", m.Sharpe)).
		Row("Sortino Ratio", fmt.Sprintf("%.2f", m.Sortino)).
		Row("Max Drawdown", Percent(m.MaxDrawdown, 2)).
		Row("Tracking Error", Percent(m.TrackingError, 2)).
		Row("Alpha", Percent(m.Alpha, 2)).
		Row("Beta", fmt.Sprintf("%.2f", m.Beta)).
		Row("Information Ratio", fmt.Sprintf("%.2f", m.InformationRatio)).
		Row("Up / Down Capture", fmt.Sprintf("%.2f / %.2f", m.UpCapture, m.DownCapture))
	b.WriteString(perf.String())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Liquidity"))
	b.WriteString("\n")
	liq := newTable("Score", "Volume", "Spread", "Assets", "Avg Volume", "High-Low Spread").
		Row(
			fmt.Sprintf("%.1f / 100", m.Liquidity.Total),
			fmt.Sprintf("%.1f", m.Liquidity.VolumeScore),
			fmt.Sprintf("%.1f", m.Liquidity.SpreadScore),
			fmt.Sprintf("%.1f", m.Liquidity.AssetScore),
			Compact(m.AvgVolume),
			Percent(m.HighLowSpreadPct, 2),
		)
	b.WriteString(liq.String())
	b.WriteString("\n")

	if r.Costs != nil {
		b.WriteString(sectionStyle.Render("Trading Costs"))
		b.WriteString("\n")
		c := r.Costs
		ct := newTable("Component", "Value").
			Row("Expense Ratio", Value(model.MetricExpenseRatio, c.Explicit.ExpenseRatio)).
			Row("Spread Cost", percentOrNA(c.Implicit.SpreadCost, 3)).
			Row("Market Impact", percentOrNA(c.Implicit.MarketImpact, 3)).
			Row("One-way Total", Percent(c.Total.OneWay, 3)).
			Row("Round-trip Total", Percent(c.Total.RoundTrip, 3))
		b.WriteString(ct.String())
		b.WriteString("\n")
		for _, a := range c.Alerts {
			b.WriteString(warnStyle.Render("! " + a.Message))
			b.WriteString("\n")
		}
	}

	if r.Premium != nil {
		if r.Premium.Percent.Valid {
			fmt.Fprintf(&b, "Premium/Discount: %+.2f%% (last %.2f vs IIV %.2f)\n",
				r.Premium.Percent.Float64, r.Premium.LastPrice, r.Premium.Indicative.Float64)
		}
		for _, a := range r.Premium.Alerts {
			b.WriteString(warnStyle.Render("! " + a.Message))
			b.WriteString("\n")
		}
	}
	if r.QuoteWarning != "" {
		b.WriteString(warnStyle.Render("! quote: " + r.QuoteWarning))
		b.WriteString("\n")
	}

	if len(r.Validation) > 0 || r.ValidationWarning != "" {
		b.WriteString(sectionStyle.Render("Reconciliation"))
		b.WriteString("\n")
		if r.ValidationWarning != "" {
			b.WriteString(warnStyle.Render("! " + r.ValidationWarning))
			b.WriteString("\n")
		}
		if len(r.Validation) > 0 {
			b.WriteString(Validation(r.Validation))
		}
	}
	return b.String()
}

// Validation renders reconciliation records with colored severities and
// the explanatory notes of flagged rows.
func Validation(records []model.ValidationRecord) string {
	var b strings.Builder
	t := newTable("Metric", "Ours", "External", "Difference", "Severity", "Source")
	var notes []string
	for _, rec := range records {
		t.Row(
			Label(rec.Metric),
			Value(rec.Metric, rec.Our),
			Value(rec.Metric, rec.External),
			Difference(rec),
			severityCell(rec),
			rec.Source,
		)
		if note := rec.Note(); note != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", Label(rec.Metric), note))
		}
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	for _, n := range notes {
		b.WriteString(noteStyle.Render(n))
		b.WriteString("\n")
	}
	return b.String()
}

func severityCell(rec model.ValidationRecord) string {
	sev, ok := rec.Severity()
	if !ok {
		return na
	}
	return severityStyles[sev].Render(SeverityText(rec))
}

// Comparison renders a side-by-side table of several funds. Failed
// entries keep their row with the error in place of the figures.
func Comparison(results []analysis.CompareResult) string {
	t := newTable("Ticker", "Volatility", "Sharpe", "Max DD", "Tracking Err", "Beta", "Liquidity", "Expense", "One-way Cost")
	var errs []string
	for _, res := range results {
		if res.Err != nil || res.Report == nil {
			t.Row(res.Ticker, "error", "", "", "", "", "", "", "")
			errs = append(errs, fmt.Sprintf("%s: %v", res.Ticker, res.Err))
			continue
		}
		m := res.Report.Metrics
		expense := null.Float{}
		if res.Report.Info != nil {
			expense = res.Report.Info.ExpenseRatio
		}
		oneWay := na
		if res.Report.Costs != nil {
			oneWay = Percent(res.Report.Costs.Total.OneWay, 3)
		}
		t.Row(
			res.Ticker,
			Percent(m.Volatility, 2),
			fmt.Sprintf("%.2f", m.Sharpe),
			Percent(m.MaxDrawdown, 2),
			Percent(m.TrackingError, 2),
			fmt.Sprintf("%.2f", m.Beta),
			fmt.Sprintf("%.1f", m.Liquidity.Total),
			Value(model.MetricExpenseRatio, expense),
			oneWay,
		)
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("ETF Comparison"))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	for _, e := range errs {
		b.WriteString(warnStyle.Render("! " + e))
		b.WriteString("\n")
	}
	return b.String()
}

// History renders per-period tracking metrics.
func History(ticker string, rows []analysis.HistoryRow) string {
	t := newTable("Period", "Obs", "Volatility", "Sharpe", "Max DD", "Tracking Err")
	for _, row := range rows {
		if row.Err != nil {
			t.Row(string(row.Period), "-", "insufficient data", "", "", "")
			continue
		}
		t.Row(
			string(row.Period),
			fmt.Sprintf("%d", row.Observations),
			Percent(row.Volatility, 2),
			fmt.Sprintf("%.2f", row.Sharpe),
			Percent(row.MaxDrawdown, 2),
			Percent(row.TrackingError, 2),
		)
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Historical Tracking: " + ticker))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

func percentOrNA(v null.Float, decimals int) string {
	if !v.Valid {
		return na
	}
	return Percent(v.Float64, decimals)
}
