package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/model"
	"ETFSentinel/internal/reconcile"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []map[string]string
	failures int32
	updates  string
}

func (f *fakeBot) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if atomic.AddInt32(&f.failures, -1) >= 0 {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			var payload map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.mu.Lock()
			f.sent = append(f.sent, payload)
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			w.Write([]byte(f.updates))
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeBot) messages() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	srv := httptest.NewServer(bot.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	n.RetryDelay = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	bot := &fakeBot{}
	n := newTestNotifier(t, bot)

	require.NoError(t, n.Send(context.Background(), "hello"))
	msgs := bot.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "42", msgs[0]["chat_id"])
	assert.Equal(t, "hello", msgs[0]["text"])
	assert.Equal(t, "HTML", msgs[0]["parse_mode"])
}

func TestSendWithRetry(t *testing.T) {
	bot := &fakeBot{failures: 2}
	n := newTestNotifier(t, bot)

	require.NoError(t, n.SendWithRetry(context.Background(), "hi", 3))
	assert.Len(t, bot.messages(), 1)
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	bot := &fakeBot{failures: 10}
	n := newTestNotifier(t, bot)

	err := n.SendWithRetry(context.Background(), "hi", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestPollOnce(t *testing.T) {
	bot := &fakeBot{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /help ","chat":{"id":42}}},
		{"update_id":8,"message":{"text":"/check SPY","chat":{"id":99}}},
		{"update_id":9}
	]}`}
	n := newTestNotifier(t, bot)

	var got []string
	next, err := n.PollOnce(context.Background(), 0, 0, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})
	require.NoError(t, err)
	assert.Equal(t, 10, next)
	assert.Equal(t, []string{"/help"}, got)

	msgs := bot.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "reply to /help", msgs[0]["text"])
}

func TestPollOnce_NotOK(t *testing.T) {
	bot := &fakeBot{updates: `{"ok":false}`}
	n := newTestNotifier(t, bot)

	next, err := n.PollOnce(context.Background(), 5, 0, func(context.Context, string) string { return "" })
	require.Error(t, err)
	assert.Equal(t, 5, next)
}

func TestFormatDiscrepancies(t *testing.T) {
	var aum model.Rule
	for _, r := range reconcile.DefaultRules() {
		if r.Metric == model.MetricAUM {
			aum = r
		}
	}
	records := []model.ValidationRecord{
		{Metric: model.MetricAUM, Rule: aum, Source: "etf<db>", Our: null.FloatFrom(1e9), External: null.FloatFrom(1.2e9), Difference: null.FloatFrom(0.2 / 1.2)},
		{Metric: model.MetricVolatility, Rule: aum, Our: null.FloatFrom(0.1)},
	}

	msg := FormatDiscrepancies("SPY", records, time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC))
	assert.Contains(t, msg, "SPY | 2026-03-02 16:30")
	assert.Contains(t, msg, "🟡 <b>AUM</b>: ours $1.00B vs $1.20B (etf&lt;db&gt;), diff 16.7%")
	assert.Contains(t, msg, aum.YellowNote)
	assert.NotContains(t, msg, "Volatility")
}

func TestFormatHelp(t *testing.T) {
	assert.Contains(t, FormatHelp(), "/check TICKER")
}
