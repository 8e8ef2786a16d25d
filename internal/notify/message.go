package notify

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// BitcoinOrange is the embed accent color
	BitcoinOrange = 0xF7931A

	// Placeholder is shown for metadata fields the payment did not carry
	Placeholder = "none"

	footerText = "blink-relay"
)

// Payment kind labels
const (
	KindLightning   = "Lightning"
	KindOnchain     = "On-chain"
	KindIntraledger = "Intraledger"
)

// Field is a named piece of payment metadata
type Field struct {
	Name  string
	Value string
}

// Deposit is one detected incoming payment
type Deposit struct {
	Amount int64 // sats
	Kind   string
	Fields []Field
}

// WebhookMessage is the Discord execute-webhook body
type WebhookMessage struct {
	Content         string          `json:"content,omitempty"`
	Embeds          []Embed         `json:"embeds"`
	AllowedMentions AllowedMentions `json:"allowed_mentions"`
}

// Embed is a Discord rich embed
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one name/value row of an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter is the small text under an embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// AllowedMentions restricts who a message may ping. Parse stays empty so
// only the explicitly listed roles can be mentioned.
type AllowedMentions struct {
	Parse []string `json:"parse"`
	Roles []string `json:"roles"`
}

// FormatAmount renders sats with the bitcoin glyph and grouped thousands,
// e.g. 10000 -> "₿10,000".
func FormatAmount(sats int64) string {
	return "₿" + humanize.Comma(sats)
}

// BuildMessage formats a deposit. roleID may be empty.
func BuildMessage(d Deposit, roleID string, now time.Time) WebhookMessage {
	amount := FormatAmount(d.Amount)

	content := fmt.Sprintf("%s deposit detected.", d.Kind)
	roles := []string{}
	if roleID != "" {
		content = fmt.Sprintf("<@&%s> %s", roleID, content)
		roles = []string{roleID}
	}

	embed := Embed{
		Title:       fmt.Sprintf("⚡ %s deposit detected", d.Kind),
		Description: fmt.Sprintf("%s received via %s", amount, d.Kind),
		Color:       BitcoinOrange,
		Footer:      &EmbedFooter{Text: footerText},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	for _, f := range d.Fields {
		value := f.Value
		if value == "" {
			value = Placeholder
		}
		embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: value})
	}

	return WebhookMessage{
		Content: content,
		Embeds:  []Embed{embed},
		AllowedMentions: AllowedMentions{
			Parse: []string{},
			Roles: roles,
		},
	}
}
