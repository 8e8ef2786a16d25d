package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/brewgator/blink-relay/internal/bitcoin"
)

const (
	DefaultListenAddr     = ":8000"
	DefaultMempoolAPIBase = "https://mempool.space"
	DefaultWatchInterval  = 30 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultCurrency       = "BTC"
)

// DefaultEventTypes are the Blink event types relayed when BLINK_EVENT_TYPES is unset
var DefaultEventTypes = []string{"receive.lightning", "receive.onchain"}

// Features switches the optional behaviours of the relay
type Features struct {
	IncludeMemo   bool // memo field on the notification
	IncludeNote   bool // note field on the notification
	Mention       bool // role mention, set when DISCORD_ROLE_ID is present
	AddressFilter bool // on-chain allowlist, set when ONCHAIN_ADDRESS_ALLOWLIST is present
	OnchainWatch  bool // explorer polling, set when WATCH_ADDRESS is present
}

// Config holds the relay configuration, read once at startup
type Config struct {
	ListenAddr         string
	CORSAllowedOrigins []string

	DiscordWebhookURL string
	DiscordRoleID     string

	WatchAddress   string
	MempoolAPIBase string
	WatchInterval  time.Duration
	FetchTimeout   time.Duration

	Network          *chaincfg.Params
	AddressAllowlist *bitcoin.AddressSet

	EventTypes         []string
	SettlementCurrency string

	Features Features

	LogLevel  zerolog.Level
	LogFormat string
}

// LoadEnvFile loads a .env file into the process environment. Variables
// already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		ListenAddr:         env("LISTEN_ADDR", DefaultListenAddr),
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS")),
		DiscordWebhookURL:  env("DISCORD_WEBHOOK_URL", ""),
		DiscordRoleID:      env("DISCORD_ROLE_ID", ""),
		WatchAddress:       env("WATCH_ADDRESS", ""),
		MempoolAPIBase:     strings.TrimSuffix(env("MEMPOOL_API_BASE", DefaultMempoolAPIBase), "/"),
		EventTypes:         splitList(getenv("BLINK_EVENT_TYPES")),
		SettlementCurrency: env("SETTLEMENT_CURRENCY", DefaultCurrency),
		LogFormat:          strings.ToLower(env("LOG_FORMAT", "console")),
	}
	if len(cfg.EventTypes) == 0 {
		cfg.EventTypes = append([]string(nil), DefaultEventTypes...)
	}

	var err error
	if cfg.WatchInterval, err = parseDuration("WATCH_INTERVAL", env("WATCH_INTERVAL", ""), DefaultWatchInterval); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parseDuration("EXPLORER_TIMEOUT", env("EXPLORER_TIMEOUT", ""), DefaultFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.Features.IncludeMemo, err = parseBool("INCLUDE_MEMO", env("INCLUDE_MEMO", "")); err != nil {
		return nil, err
	}
	if cfg.Features.IncludeNote, err = parseBool("INCLUDE_NOTE", env("INCLUDE_NOTE", "")); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(env("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", cfg.LogFormat)
	}

	if cfg.Network, err = bitcoin.NetworkParams(env("BITCOIN_NETWORK", "mainnet")); err != nil {
		return nil, err
	}

	if cfg.WatchAddress != "" {
		canonical, err := bitcoin.NormalizeAddress(cfg.WatchAddress, cfg.Network)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_ADDRESS: %w", err)
		}
		cfg.WatchAddress = canonical
	}

	if allow := splitList(getenv("ONCHAIN_ADDRESS_ALLOWLIST")); len(allow) > 0 {
		if cfg.AddressAllowlist, err = bitcoin.NewAddressSet(allow, cfg.Network); err != nil {
			return nil, fmt.Errorf("invalid ONCHAIN_ADDRESS_ALLOWLIST: %w", err)
		}
	}

	cfg.Features.Mention = cfg.DiscordRoleID != ""
	cfg.Features.AddressFilter = cfg.AddressAllowlist.Len() > 0
	cfg.Features.OnchainWatch = cfg.WatchAddress != ""

	return cfg, nil
}

func parseDuration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		// Plain integers are seconds
		secs, intErr := strconv.Atoi(value)
		if intErr != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}

func parseBool(key, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
