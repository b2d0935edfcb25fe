// Package reference fetches independently published fund figures used to
// reconcile computed metrics.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// ErrNoData is returned when a page rendered but no field could be read.
var ErrNoData = errors.New("no reference fields found")

// Field names a value a reference page may publish.
type Field string

const (
	FieldExpenseRatio Field = "expense_ratio"
	FieldAUM          Field = "aum"
	FieldAvgVolume    Field = "avg_volume"
	FieldSpread       Field = "spread"
	FieldVolatility   Field = "volatility"
)

// DefaultLabels are the captions fund data pages commonly use.
var DefaultLabels = map[Field][]string{
	FieldExpenseRatio: {"Expense Ratio", "Net Expense Ratio", "Expense ratio (net)"},
	FieldAUM:          {"Assets Under Management", "AUM", "Total Assets", "Net Assets"},
	FieldAvgVolume:    {"Average Daily Volume", "Avg. Volume", "Avg Daily Volume", "Average Volume"},
	FieldSpread:       {"Bid/Ask Spread", "Avg. Spread", "Spread"},
	FieldVolatility:   {"Volatility", "Standard Deviation", "Annualized Volatility"},
}

// Source yields best-effort reference data for a ticker.
type Source interface {
	Name() string
	Fetch(ctx context.Context, ticker string) (*model.ReferenceData, error)
}

// Scraper reads labelled figures from a rendered fund page.
type Scraper struct {
	name        string
	urlTemplate string
	labels      map[Field][]string
	renderer    Renderer
	logger      *slog.Logger
}

// NewScraper creates a Scraper. urlTemplate contains one %s for the ticker.
// A nil labels map uses DefaultLabels.
func NewScraper(name, urlTemplate string, labels map[Field][]string, r Renderer, logger *slog.Logger) *Scraper {
	if labels == nil {
		labels = DefaultLabels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{name: name, urlTemplate: urlTemplate, labels: labels, renderer: r, logger: logger}
}

func (s *Scraper) Name() string { return s.name }

// Fetch renders the fund page and extracts the configured fields.
func (s *Scraper) Fetch(ctx context.Context, ticker string) (*model.ReferenceData, error) {
	url := fmt.Sprintf(s.urlTemplate, strings.ToLower(ticker))
	html, err := s.renderer.Render(ctx, url)
	if err != nil {
		return nil, err
	}
	data, err := Extract(html, s.labels)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.name, ticker, err)
	}
	s.logger.Debug("reference page scraped", "source", s.name, "ticker", ticker)
	return data, nil
}

// Extract finds each label in the document and parses the figure next to it.
func Extract(html string, labels map[Field][]string) (*model.ReferenceData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	get := func(f Field) null.Float {
		for _, label := range labels[f] {
			if v, ok := findLabelled(doc, label); ok {
				return v
			}
		}
		return null.Float{}
	}
	data := &model.ReferenceData{
		ExpenseRatio: get(FieldExpenseRatio),
		AUM:          get(FieldAUM),
		AvgVolume:    get(FieldAvgVolume),
		Spread:       get(FieldSpread),
		Volatility:   get(FieldVolatility),
	}
	if data.Empty() {
		return nil, ErrNoData
	}
	return data, nil
}

const labelSelector = "th, td, dt, dd, span, div, li, label, p, strong, b"

// findLabelled matches an element whose own text equals label and reads the
// value from its next sibling, or from its parent's next sibling.
func findLabelled(doc *goquery.Document, label string) (null.Float, bool) {
	var out null.Float
	found := false
	doc.Find(labelSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 || !sameLabel(sel.Text(), label) {
			return true
		}
		for _, cand := range []*goquery.Selection{sel.Next(), sel.Parent().Next()} {
			if cand.Length() == 0 {
				continue
			}
			if v, err := parseValue(cand.First().Text()); err == nil {
				out, found = v, true
				return false
			}
		}
		return true
	})
	return out, found
}

func sameLabel(text, label string) bool {
	t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ":"))
	return strings.EqualFold(t, label)
}
