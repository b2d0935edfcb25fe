package reference

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
)

// Renderer turns a URL into the HTML a reader would see.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// HTTPRenderer fetches pages without running scripts.
type HTTPRenderer struct {
	client *resty.Client
}

// NewHTTPRenderer creates an HTTPRenderer with the given timeout.
func NewHTTPRenderer(timeout time.Duration) *HTTPRenderer {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; ETFSentinel/1.0)")
	return &HTTPRenderer{client: client}
}

func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}

// ChromeRenderer renders pages in a headless Chrome. The browser is started
// on first use and shared by later renders until Close.
type ChromeRenderer struct {
	Headless bool
	Timeout  time.Duration

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeRenderer creates a renderer; no browser is launched yet.
func NewChromeRenderer(headless bool, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChromeRenderer{Headless: headless, Timeout: timeout}
}

func (r *ChromeRenderer) browser() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx != nil {
		return r.browserCtx
	}
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", r.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	return browserCtx
}

// Render opens url in a new tab and returns the document HTML once the body is ready.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(r.browser())
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the browser down.
func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCancel != nil {
		r.browserCancel()
		r.allocCancel()
		r.browserCtx = nil
		r.browserCancel = nil
		r.allocCancel = nil
	}
}
