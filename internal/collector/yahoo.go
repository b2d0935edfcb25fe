package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/guregu/null/v6"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"

	"ETFSentinel/internal/model"
)

const (
	yahooChartBase   = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooSummaryBase = "https://query2.finance.yahoo.com/v10/finance/quoteSummary"
)

// YahooProvider implements Provider using Yahoo Finance. History and fund
// profile come from the public JSON endpoints; quotes come from finance-go.
type YahooProvider struct {
	Client     *http.Client
	ChartURL   string
	SummaryURL string
	SymbolMap  map[string]string // maps internal symbol to Yahoo ticker
	GetQuote   func(symbol string) (*finance.Quote, error)
}

// NewYahooProvider creates a Yahoo provider with optional proxy support.
func NewYahooProvider(proxyURL string) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooProvider{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		ChartURL:   yahooChartBase,
		SummaryURL: yahooSummaryBase,
		SymbolMap: map[string]string{
			"SPX":   "^GSPC",
			"SP500": "^GSPC",
			"NDX":   "^NDX",
		},
		GetQuote: quote.Get,
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) yahooSymbol(symbol string) string {
	if mapped, ok := p.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []any `json:"open"`
					High   []any `json:"high"`
					Low    []any `json:"low"`
					Close  []any `json:"close"`
					Volume []any `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []any, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

func (p *YahooProvider) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// History fetches daily bars for the period. Bars without prices (holidays,
// partial sessions) are skipped.
func (p *YahooProvider) History(ctx context.Context, symbol string, period Period) ([]model.OHLCV, error) {
	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", p.ChartURL, url.PathEscape(p.yahooSymbol(symbol)), period)
	body, err := p.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	q := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(q.Close, i)
		if c <= 0 {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  c,
			Volume: at(q.Volume, i),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return dedupeDays(bars), nil
}

// dedupeDays keeps the last bar of each trading day. The chart API appends a
// live bar for the current session that can share a date with the daily close.
func dedupeDays(bars []model.OHLCV) []model.OHLCV {
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].DateKey() == b.DateKey() {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// Info reads the fund profile. Fields Yahoo does not report stay invalid.
func (p *YahooProvider) Info(ctx context.Context, symbol string) (*model.BasicInfo, error) {
	u := fmt.Sprintf("%s/%s?modules=price,summaryDetail,fundProfile", p.SummaryURL, url.PathEscape(p.yahooSymbol(symbol)))
	body, err := p.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}

	info := &model.BasicInfo{Symbol: symbol}
	const root = "$.quoteSummary.result[0]"
	info.Name, _ = lookupString(doc, root+".price.longName")
	if info.Name == "" {
		info.Name, _ = lookupString(doc, root+".price.shortName")
	}
	info.Category, _ = lookupString(doc, root+".fundProfile.categoryName")
	info.ExpenseRatio = lookupFloat(doc, root+".fundProfile.feesExpensesInvestment.annualReportExpenseRatio.raw")
	info.TotalAssets = lookupFloat(doc, root+".summaryDetail.totalAssets.raw")
	return info, nil
}

// lookup evaluates a JSONPath expression and unwraps single-element results.
func lookup(doc any, path string) (any, bool) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		v = list[0]
	}
	return v, v != nil
}

func lookupString(doc any, path string) (string, bool) {
	v, ok := lookup(doc, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupFloat(doc any, path string) null.Float {
	v, ok := lookup(doc, path)
	if !ok {
		return null.Float{}
	}
	f, ok := v.(float64)
	if !ok {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// Quote returns the latest quote. Yahoo reports zero for an absent bid or
// ask; those become invalid values.
func (p *YahooProvider) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	q, err := p.GetQuote(p.yahooSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil {
		return nil, fmt.Errorf("yahoo quote %s: not found", symbol)
	}
	status := model.MarketClosed
	if string(q.MarketState) == "REGULAR" {
		status = model.MarketOpen
	}
	out := &model.Quote{
		Symbol:       symbol,
		Bid:          positive(q.Bid),
		Ask:          positive(q.Ask),
		LastPrice:    q.RegularMarketPrice,
		Timestamp:    time.Unix(int64(q.RegularMarketTime), 0),
		MarketStatus: status,
	}
	if q.RegularMarketVolume > 0 {
		out.Volume = null.FloatFrom(float64(q.RegularMarketVolume))
	}
	return out, nil
}

// AverageVolume returns the three-month average daily volume Yahoo reports.
func (p *YahooProvider) AverageVolume(_ context.Context, symbol string) (null.Float, error) {
	q, err := p.GetQuote(p.yahooSymbol(symbol))
	if err != nil {
		return null.Float{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil || q.AverageDailyVolume3Month <= 0 {
		return null.Float{}, nil
	}
	return null.FloatFrom(float64(q.AverageDailyVolume3Month)), nil
}

func positive(v float64) null.Float {
	if v <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(v)
}
