package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/brewgator/blink-relay/internal/blink"
	"github.com/brewgator/blink-relay/internal/metrics"
)

// Ack is the response body returned to Blink
type Ack struct {
	OK      bool   `json:"ok"`
	Ignored bool   `json:"ignored,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleBlinkWebhook always acknowledges with 200 unless the body cannot be
// parsed. Notification failures are logged and never reach Blink.
func (s *Server) handleBlinkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read webhook body")
		s.metrics.Webhook(metrics.OutcomeMalformed)
		s.writeJSON(w, http.StatusBadRequest, Ack{OK: false, Error: blink.ErrMalformedPayload.Error()})
		return
	}

	s.logger.Debug().RawJSON("payload", rawOrQuoted(body)).Msg("Blink webhook received")

	ev, err := blink.ParseEvent(body)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rejecting webhook")
		s.metrics.Webhook(metrics.OutcomeMalformed)
		s.writeJSON(w, http.StatusBadRequest, Ack{OK: false, Error: blink.ErrMalformedPayload.Error()})
		return
	}

	deposit, reason, ok := s.filter.Evaluate(ev)
	if !ok {
		s.logger.Debug().
			Str("event_type", ev.Type).
			Str("transaction_id", ev.TransactionID).
			Str("reason", reason).
			Msg("Ignoring webhook")
		s.metrics.Webhook(metrics.OutcomeIgnored)
		s.writeJSON(w, http.StatusOK, Ack{OK: true, Ignored: true})
		return
	}

	s.logger.Info().
		Str("event_type", ev.Type).
		Str("transaction_id", ev.TransactionID).
		Int64("amount_sats", deposit.Amount).
		Msg("Deposit received")

	// Blink may hang up before Discord answers; the delivery attempt still completes.
	ctx := context.WithoutCancel(r.Context())
	if err := s.notifier.Send(ctx, deposit); err != nil {
		s.logger.Error().Err(err).Str("transaction_id", ev.TransactionID).Msg("Failed to send notification")
	}

	s.metrics.Webhook(metrics.OutcomeNotified)
	s.writeJSON(w, http.StatusOK, Ack{OK: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"status":    "healthy",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// rawOrQuoted keeps unparsable bodies loggable as a JSON string
func rawOrQuoted(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
