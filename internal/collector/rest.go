package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// RESTProvider implements Provider against a generic market-data REST API
// exposing /api/v1/bars/daily, /api/v1/info and /api/v1/quote.
type RESTProvider struct {
	client *resty.Client
}

// NewRESTProvider creates a provider for baseURL with optional bearer auth and proxy.
func NewRESTProvider(baseURL, apiKey, proxyURL string) *RESTProvider {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err == nil {
			client.SetProxy(proxyURL)
		}
	}
	return &RESTProvider{client: client}
}

func (p *RESTProvider) Name() string { return "rest" }

// restBar is the expected JSON shape of a daily bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type restInfo struct {
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	ExpenseRatio null.Float `json:"expense_ratio"`
	TotalAssets  null.Float `json:"total_assets"`
}

type restQuote struct {
	Bid        null.Float `json:"bid"`
	Ask        null.Float `json:"ask"`
	Price      float64    `json:"price"`
	IIV        null.Float `json:"iiv"`
	Volume     null.Float `json:"volume"`
	Timestamp  int64      `json:"timestamp"`
	MarketOpen bool       `json:"market_open"`
}

func (p *RESTProvider) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("GET %s: status %d, body: %s", path, resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (p *RESTProvider) History(ctx context.Context, symbol string, period Period) ([]model.OHLCV, error) {
	var raw []restBar
	err := p.getJSON(ctx, "/api/v1/bars/daily", map[string]string{
		"symbol": symbol,
		"limit":  strconv.Itoa(period.TradingDays()),
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	bars := make([]model.OHLCV, len(raw))
	for i, b := range raw {
		bars[i] = model.OHLCV{
			Time:   time.Unix(b.Timestamp, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (p *RESTProvider) Info(ctx context.Context, symbol string) (*model.BasicInfo, error) {
	var raw restInfo
	if err := p.getJSON(ctx, "/api/v1/info", map[string]string{"symbol": symbol}, &raw); err != nil {
		return nil, fmt.Errorf("fetch info: %w", err)
	}
	return &model.BasicInfo{
		Symbol:       symbol,
		Name:         raw.Name,
		Category:     raw.Category,
		ExpenseRatio: raw.ExpenseRatio,
		TotalAssets:  raw.TotalAssets,
	}, nil
}

func (p *RESTProvider) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	var raw restQuote
	if err := p.getJSON(ctx, "/api/v1/quote", map[string]string{"symbol": symbol}, &raw); err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	status := model.MarketClosed
	if raw.MarketOpen {
		status = model.MarketOpen
	}
	return &model.Quote{
		Symbol:          symbol,
		Bid:             raw.Bid,
		Ask:             raw.Ask,
		LastPrice:       raw.Price,
		IndicativeValue: raw.IIV,
		Volume:          raw.Volume,
		Timestamp:       time.Unix(raw.Timestamp, 0),
		MarketStatus:    status,
	}, nil
}
