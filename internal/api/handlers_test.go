package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewgator/blink-relay/internal/bitcoin"
	"github.com/brewgator/blink-relay/internal/blink"
	"github.com/brewgator/blink-relay/internal/metrics"
	"github.com/brewgator/blink-relay/internal/notify"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Deposit
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, d notify.Deposit) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, d)
	return n.err
}

func setupTestServer(t *testing.T, opts blink.FilterOptions) (*Server, *recordingNotifier, *metrics.Metrics) {
	t.Helper()

	if opts.EventTypes == nil {
		opts.EventTypes = []string{blink.EventReceiveLightning, blink.EventReceiveOnchain}
	}
	if opts.Currency == "" {
		opts.Currency = "BTC"
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	notifier := &recordingNotifier{}
	s := NewServer(Options{Addr: ":0", Gatherer: reg}, blink.NewFilter(opts), notifier,
		zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel), m)
	return s, notifier, m
}

func postWebhook(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, Ack) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var ack Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack), "body: %s", w.Body.String())
	return w, ack
}

const lightningPayload = `{
	"eventType": "receive.lightning",
	"transaction": {
		"id": "6650ae1b",
		"status": "success",
		"settlementCurrency": "BTC",
		"settlementAmount": 10000,
		"memo": "pizza"
	}
}`

func TestBlinkWebhookLightning(t *testing.T) {
	s, notifier, m := setupTestServer(t, blink.FilterOptions{IncludeMemo: true})

	w, ack := postWebhook(t, s, lightningPayload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, Ack{OK: true}, ack)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notify.Deposit{
		Amount: 10000,
		Kind:   notify.KindLightning,
		Fields: []notify.Field{{Name: "Memo", Value: "pizza"}},
	}, notifier.sent[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues(metrics.OutcomeNotified)))
}

func TestBlinkWebhookIgnored(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"unrecognized type", `{"eventType":"send.lightning","transaction":{"status":"success","settlementCurrency":"BTC","settlementAmount":1}}`},
		{"missing type", `{"transaction":{"status":"success","settlementCurrency":"BTC"}}`},
		{"missing transaction", `{"eventType":"receive.lightning"}`},
		{"pending", `{"eventType":"receive.lightning","transaction":{"status":"pending","settlementCurrency":"BTC","settlementAmount":1}}`},
		{"usd wallet", `{"eventType":"receive.lightning","transaction":{"status":"success","settlementCurrency":"USD","settlementAmount":1}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, notifier, _ := setupTestServer(t, blink.FilterOptions{})

			w, ack := postWebhook(t, s, tc.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, Ack{OK: true, Ignored: true}, ack)
			assert.Empty(t, notifier.sent)
		})
	}
}

func TestBlinkWebhookMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `[]`, ``, `{"eventType":"receive.lightning","transaction":{"status":"success","settlementCurrency":"BTC","settlementAmount":1}} x`} {
		s, notifier, m := setupTestServer(t, blink.FilterOptions{})

		w, ack := postWebhook(t, s, body)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.False(t, ack.OK)
		assert.Equal(t, "malformed payload", ack.Error)
		assert.Empty(t, notifier.sent)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues(metrics.OutcomeMalformed)))
	}
}

func TestBlinkWebhookNonNumericAmount(t *testing.T) {
	s, notifier, _ := setupTestServer(t, blink.FilterOptions{})

	w, ack := postWebhook(t, s, `{"eventType":"receive.lightning","transaction":{"status":"success","settlementCurrency":"BTC","settlementAmount":"abc"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Ack{OK: true}, ack)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, int64(0), notifier.sent[0].Amount)
}

func TestBlinkWebhookDeliveryFailureStillAcks(t *testing.T) {
	s, notifier, _ := setupTestServer(t, blink.FilterOptions{})
	notifier.err = errors.New("discord unreachable")

	w, ack := postWebhook(t, s, lightningPayload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Ack{OK: true}, ack)
}

func TestBlinkWebhookRepeatedDelivery(t *testing.T) {
	s, notifier, _ := setupTestServer(t, blink.FilterOptions{})

	postWebhook(t, s, lightningPayload)
	postWebhook(t, s, lightningPayload)

	assert.Len(t, notifier.sent, 2, "repeated deliveries are not deduplicated")
}

func TestBlinkWebhookAddressAllowlist(t *testing.T) {
	allow, err := bitcoin.NewAddressSet([]string{"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	s, notifier, _ := setupTestServer(t, blink.FilterOptions{Allowlist: allow})

	payload := func(address string) string {
		return `{"eventType":"receive.onchain","transaction":{"status":"success","settlementCurrency":"BTC","settlementAmount":"25000",` +
			`"initiationVia":{"type":"OnChain","address":"` + address + `"}}}`
	}

	_, ack := postWebhook(t, s, payload("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
	assert.Equal(t, Ack{OK: true, Ignored: true}, ack)
	assert.Empty(t, notifier.sent)

	_, ack = postWebhook(t, s, payload("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	assert.Equal(t, Ack{OK: true}, ack)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notify.Deposit{Amount: 25000, Kind: notify.KindOnchain}, notifier.sent[0])
}

func TestBlinkWebhookMethodNotAllowed(t *testing.T) {
	s, _, _ := setupTestServer(t, blink.FilterOptions{})

	req := httptest.NewRequest(http.MethodGet, WebhookPath, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := setupTestServer(t, blink.FilterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t, blink.FilterOptions{})
	postWebhook(t, s, lightningPayload)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `blink_relay_webhook_events_total{outcome="notified"} 1`)
}

func TestCORS(t *testing.T) {
	s := NewServer(Options{CORSAllowedOrigins: []string{"https://dash.example"}},
		blink.NewFilter(blink.FilterOptions{}), &recordingNotifier{}, zerolog.Nop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dash.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "https://dash.example", w.Header().Get("Access-Control-Allow-Origin"))
}
