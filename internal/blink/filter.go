package blink

import (
	"github.com/brewgator/blink-relay/internal/bitcoin"
	"github.com/brewgator/blink-relay/internal/notify"
)

// Reasons an event is ignored
const (
	ReasonEventType = "unrecognized event type"
	ReasonStatus    = "status is not success"
	ReasonCurrency  = "unexpected settlement currency"
	ReasonAddress   = "address not in allowlist"
)

// Filter decides which events produce a notification
type Filter struct {
	eventTypes  map[string]struct{}
	currency    string
	allowlist   *bitcoin.AddressSet
	includeMemo bool
	includeNote bool
}

// FilterOptions configures a Filter
type FilterOptions struct {
	EventTypes  []string
	Currency    string
	Allowlist   *bitcoin.AddressSet // nil or empty disables address filtering
	IncludeMemo bool
	IncludeNote bool
}

// NewFilter builds a filter from options
func NewFilter(opts FilterOptions) *Filter {
	f := &Filter{
		eventTypes:  make(map[string]struct{}, len(opts.EventTypes)),
		currency:    opts.Currency,
		allowlist:   opts.Allowlist,
		includeMemo: opts.IncludeMemo,
		includeNote: opts.IncludeNote,
	}
	for _, t := range opts.EventTypes {
		f.eventTypes[t] = struct{}{}
	}
	return f
}

// Evaluate returns the deposit to announce, or the reason the event is ignored
func (f *Filter) Evaluate(ev *Event) (notify.Deposit, string, bool) {
	if _, ok := f.eventTypes[ev.Type]; !ok {
		return notify.Deposit{}, ReasonEventType, false
	}
	if ev.Status != StatusSuccess {
		return notify.Deposit{}, ReasonStatus, false
	}
	if ev.SettlementCurrency != f.currency {
		return notify.Deposit{}, ReasonCurrency, false
	}

	if ev.Type == EventReceiveOnchain && f.allowlist.Len() > 0 && !f.allowlist.Contains(ev.Address) {
		return notify.Deposit{}, ReasonAddress, false
	}

	dep := notify.Deposit{
		Amount: ev.Amount,
		Kind:   KindLabel(ev.Type),
	}
	if f.includeMemo {
		dep.Fields = append(dep.Fields, notify.Field{Name: "Memo", Value: ev.Memo})
	}
	if f.includeNote {
		dep.Fields = append(dep.Fields, notify.Field{Name: "Note", Value: ev.Note})
	}

	return dep, "", true
}

// KindLabel maps an event type to the label used in notifications
func KindLabel(eventType string) string {
	switch eventType {
	case EventReceiveLightning:
		return notify.KindLightning
	case EventReceiveOnchain:
		return notify.KindOnchain
	case EventReceiveIntraledger:
		return notify.KindIntraledger
	default:
		return eventType
	}
}
