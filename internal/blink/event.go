// Package blink decodes Blink wallet webhook payloads and decides which of
// them are worth a notification.
//
// The payload schema belongs to Blink and is treated as untrusted: every
// field is optional and extraction never fails on a missing or mistyped value.
package blink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned when the body is not a JSON object
var ErrMalformedPayload = errors.New("malformed payload")

// Blink event types
const (
	EventReceiveLightning   = "receive.lightning"
	EventReceiveOnchain     = "receive.onchain"
	EventReceiveIntraledger = "receive.intraledger"
)

// StatusSuccess is the only actionable transaction status
const StatusSuccess = "success"

// Event is the subset of a Blink webhook the relay looks at
type Event struct {
	Type               string
	TransactionID      string
	Status             string
	SettlementCurrency string
	Amount             int64
	Memo               string
	Note               string
	Address            string
}

// ParseEvent decodes a webhook body. Only a body that is not a JSON object is
// an error; everything inside the object is extracted best-effort.
func ParseEvent(body []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is null", ErrMalformedPayload)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedPayload)
	}

	tx := object(raw["transaction"])

	ev := &Event{
		Type:               str(raw["eventType"]),
		TransactionID:      str(tx["id"]),
		Status:             str(tx["status"]),
		SettlementCurrency: str(tx["settlementCurrency"]),
		Amount:             CoerceAmount(tx["settlementAmount"]),
		Memo:               trimmed(tx["memo"]),
		Note:               trimmed(tx["note"]),
		Address:            trimmed(object(tx["initiationVia"])["address"]),
	}
	if ev.Address == "" {
		ev.Address = trimmed(object(tx["settlementVia"])["address"])
	}

	return ev, nil
}

// CoerceAmount turns a settlement amount into non-negative sats. Numbers are
// truncated toward zero, strings must hold an integer. Anything else,
// including negatives and overflow, yields 0.
func CoerceAmount(v any) int64 {
	var n int64

	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			n = i
		} else if f, err := val.Float64(); err == nil {
			n = truncate(f)
		}
	case float64:
		n = truncate(val)
	case int64:
		n = val
	case int:
		n = int64(val)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			n = i
		}
	}

	if n < 0 {
		return 0
	}
	return n
}

func truncate(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}

func object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// str returns v as sent. Matching fields such as status are compared exactly.
func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func trimmed(v any) string {
	return strings.TrimSpace(str(v))
}
