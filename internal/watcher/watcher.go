// Package watcher polls the explorer for one on-chain address and announces
// every increase of its funded sum.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/rs/zerolog"

	"github.com/brewgator/blink-relay/internal/bitcoin"
	"github.com/brewgator/blink-relay/internal/mempool"
	"github.com/brewgator/blink-relay/internal/metrics"
	"github.com/brewgator/blink-relay/internal/notify"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// ErrAlreadyRunning is returned by Run when the watcher is already polling
var ErrAlreadyRunning = errors.New("watcher already running")

var errNoStats = errors.New("explorer returned no stats")

// StatsFetcher reads address statistics from an explorer
type StatsFetcher interface {
	GetAddressStats(ctx context.Context, address string) (*mempool.AddressStats, error)
}

// TipFetcher is optionally implemented by a StatsFetcher to probe reachability at start
type TipFetcher interface {
	GetTipHeight(ctx context.Context) (int64, error)
}

// Config configures a Watcher
type Config struct {
	Address      string
	Interval     time.Duration
	FetchTimeout time.Duration
}

// Watcher owns the funded-sum watermark of one address. Only the Run
// goroutine touches the watermark, so it carries no lock.
type Watcher struct {
	cfg      Config
	fetcher  StatsFetcher
	notifier notify.Notifier
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	running atomic.Bool

	lastFunded  int64
	hasBaseline bool
}

// New creates a watcher. Zero durations fall back to the defaults.
func New(cfg Config, fetcher StatsFetcher, notifier notify.Notifier, logger zerolog.Logger, m *metrics.Metrics) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	return &Watcher{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger.With().Str("component", "watcher").Logger(),
		metrics:  m,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately and
// each wait starts only after the previous poll, including its notification,
// has finished. With no address configured Run logs once and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Address == "" {
		w.logger.Info().Msg("WATCH_ADDRESS not set, on-chain watcher disabled")
		return nil
	}

	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	w.logger.Info().
		Str("address", w.cfg.Address).
		Dur("interval", w.cfg.Interval).
		Msg("Watching address")
	w.probe(ctx)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Watcher stopped")
			return nil
		case <-timer.C:
		}

		if err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("Poll failed")
		}

		timer.Reset(w.cfg.Interval)
	}
}

// Poll runs a single tick: fetch, compare with the watermark, maybe notify.
// The watermark only changes after a successful fetch and never decreases.
func (w *Watcher) Poll(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	stats, err := w.fetcher.GetAddressStats(fetchCtx, w.cfg.Address)
	cancel()
	if err != nil {
		w.metrics.Poll(metrics.OutcomeError)
		return fmt.Errorf("failed to fetch %s: %w", bitcoin.TruncateAddress(w.cfg.Address), err)
	}
	if stats == nil {
		w.metrics.Poll(metrics.OutcomeError)
		return fmt.Errorf("failed to fetch %s: %w", bitcoin.TruncateAddress(w.cfg.Address), errNoStats)
	}

	total := stats.TotalFunded()

	switch {
	case !w.hasBaseline:
		w.lastFunded = total
		w.hasBaseline = true
		w.metrics.Poll(metrics.OutcomeBaseline)
		w.metrics.Watermark(total)
		w.logger.Info().Int64("funded_sats", total).Msg("Initial funded sum")

	case total > w.lastFunded:
		delta := total - w.lastFunded
		w.lastFunded = total
		w.metrics.Poll(metrics.OutcomeDeposit)
		w.metrics.Watermark(total)
		w.logger.Info().
			Int64("delta_sats", delta).
			Str("delta", btcutil.Amount(delta).String()).
			Int64("funded_sats", total).
			Int64("balance_sats", stats.Balance()).
			Msg("New deposit detected")

		if err := w.notifier.Send(ctx, notify.Deposit{Amount: delta, Kind: notify.KindOnchain}); err != nil {
			// The deposit is already accounted for; a lost notification is not re-sent.
			w.logger.Error().Err(err).Int64("delta_sats", delta).Msg("Failed to send deposit notification")
		}

	case total < w.lastFunded:
		w.metrics.Poll(metrics.OutcomeNoChange)
		w.logger.Warn().
			Int64("funded_sats", total).
			Int64("watermark_sats", w.lastFunded).
			Msg("Funded sum decreased, keeping watermark")

	default:
		w.metrics.Poll(metrics.OutcomeNoChange)
	}

	return nil
}

// Watermark returns the last observed funded sum and whether a baseline
// exists. Not safe to call while Run is active.
func (w *Watcher) Watermark() (int64, bool) {
	return w.lastFunded, w.hasBaseline
}

func (w *Watcher) probe(ctx context.Context) {
	tips, ok := w.fetcher.(TipFetcher)
	if !ok {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	height, err := tips.GetTipHeight(probeCtx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Explorer tip height unavailable")
		return
	}
	w.logger.Info().Int64("tip_height", height).Msg("Explorer reachable")
}
