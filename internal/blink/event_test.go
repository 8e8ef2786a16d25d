package blink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"eventType": "receive.onchain",
		"transaction": {
			"id": "tx-1",
			"status": "success",
			"settlementCurrency": "BTC",
			"settlementAmount": 10000,
			"memo": " coffee ",
			"note": "tip",
			"initiationVia": {"type": "OnChain", "address": "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"}
		}
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, &Event{
		Type:               EventReceiveOnchain,
		TransactionID:      "tx-1",
		Status:             StatusSuccess,
		SettlementCurrency: "BTC",
		Amount:             10000,
		Memo:               "coffee",
		Note:               "tip",
		Address:            "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	}, ev)
}

func TestParseEventMissingFields(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"null transaction", `{"eventType": "receive.lightning", "transaction": null}`},
		{"transaction is a string", `{"eventType": "receive.lightning", "transaction": "oops"}`},
		{"mistyped fields", `{"eventType": 7, "transaction": {"status": true, "initiationVia": []}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tc.body))
			require.NoError(t, err)
			assert.Empty(t, ev.Status)
			assert.Empty(t, ev.Address)
			assert.Equal(t, int64(0), ev.Amount)
		})
	}
}

func TestParseEventAddressFallback(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"transaction": {"settlementVia": {"address": "bc1qexample"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "bc1qexample", ev.Address)
}

func TestParseEventMalformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2,3]`, `"string"`, `null`, `{"eventType":`, `{"a":1} x`, `{"a":1}{"b":2}`} {
		_, err := ParseEvent([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPayload, "body %q", body)
	}
}

func TestParseEventKeepsMatchFieldsVerbatim(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"eventType": "receive.lightning",
		"transaction": {"status": " success ", "settlementCurrency": "BTC ", "note": "  hi  "}
	}`))
	require.NoError(t, err)
	assert.Equal(t, " success ", ev.Status)
	assert.Equal(t, "BTC ", ev.SettlementCurrency)
	assert.Equal(t, "hi", ev.Note)

	_, _, ok := NewFilter(FilterOptions{
		EventTypes: []string{EventReceiveLightning},
		Currency:   "BTC",
	}).Evaluate(ev)
	assert.False(t, ok)
}

func TestCoerceAmount(t *testing.T) {
	testCases := []struct {
		name string
		in   any
		want int64
	}{
		{"json integer", json.Number("10000"), 10000},
		{"json float truncates", json.Number("100.9"), 100},
		{"json exponent", json.Number("1e3"), 1000},
		{"numeric string", "2500", 2500},
		{"padded string", " 42 ", 42},
		{"non-numeric string", "abc", 0},
		{"fractional string", "100.5", 0},
		{"empty string", "", 0},
		{"negative number", json.Number("-5"), 0},
		{"negative string", "-5", 0},
		{"float64", float64(77.7), 77},
		{"int", 12, 12},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"object", map[string]any{}, 0},
		{"overflow", json.Number("1e30"), 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CoerceAmount(tc.in))
		})
	}
}
