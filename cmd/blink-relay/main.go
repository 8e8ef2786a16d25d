package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/brewgator/blink-relay/internal/api"
	"github.com/brewgator/blink-relay/internal/blink"
	"github.com/brewgator/blink-relay/internal/config"
	"github.com/brewgator/blink-relay/internal/logger"
	"github.com/brewgator/blink-relay/internal/mempool"
	"github.com/brewgator/blink-relay/internal/metrics"
	"github.com/brewgator/blink-relay/internal/notify"
	"github.com/brewgator/blink-relay/internal/watcher"
)

const shutdownGrace = 5 * time.Second

func main() {
	var (
		envFile = flag.String("env-file", ".env", "Path to .env file (optional)")
		listen  = flag.String("listen", "", "Listen address, overrides LISTEN_ADDR")
	)
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Bool("memo", cfg.Features.IncludeMemo).
		Bool("note", cfg.Features.IncludeNote).
		Bool("mention", cfg.Features.Mention).
		Bool("address_filter", cfg.Features.AddressFilter).
		Bool("onchain_watch", cfg.Features.OnchainWatch).
		Str("event_types", strings.Join(cfg.EventTypes, ",")).
		Str("network", cfg.Network.Name).
		Msg("Starting blink-relay")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("blink-relay stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	notifier := notify.NewDiscord(cfg.DiscordWebhookURL, cfg.DiscordRoleID, log, m)

	filter := blink.NewFilter(blink.FilterOptions{
		EventTypes:  cfg.EventTypes,
		Currency:    cfg.SettlementCurrency,
		Allowlist:   cfg.AddressAllowlist,
		IncludeMemo: cfg.Features.IncludeMemo,
		IncludeNote: cfg.Features.IncludeNote,
	})

	server := api.NewServer(api.Options{
		Addr:               cfg.ListenAddr,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:           reg,
	}, filter, notifier, log, m)

	explorer := mempool.NewClient(cfg.MempoolAPIBase, mempool.WithTimeout(cfg.FetchTimeout))
	w := watcher.New(watcher.Config{
		Address:      cfg.WatchAddress,
		Interval:     cfg.WatchInterval,
		FetchTimeout: cfg.FetchTimeout,
	}, explorer, notifier, log, m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Watcher exited")
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal, exiting...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}

	wg.Wait()
	return nil
}
