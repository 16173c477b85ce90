package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/spf13/pflag"

	"shopsync/internal/shopsync/everstox"
	"shopsync/internal/shopsync/filter"
	"shopsync/internal/shopsync/pipeline"
	"shopsync/internal/shopsync/shopify"
)

// Arguments are the environment defaults; every value can be overridden on
// the command line. The core packages receive plain structs and never read
// the environment themselves.
type Arguments struct {
	ShopURL       string        `env:"SHOPIFY_SHOP_URL" envDefault:""`
	APIToken      string        `env:"SHOPIFY_API_TOKEN" envDefault:""`
	APIVersion    string        `env:"SHOPIFY_API_VERSION" envDefault:"2024-01"`
	EverstoxURL   string        `env:"EVERSTOX_API_URL" envDefault:"https://api.demo.everstox.com"`
	EverstoxShop  string        `env:"EVERSTOX_SHOP_ID" envDefault:""`
	EverstoxToken string        `env:"EVERSTOX_API_TOKEN" envDefault:""`
	TagWhitelist  string        `env:"TAG_WHITELIST" envDefault:""`
	TagBlacklist  string        `env:"TAG_BLACKLIST" envDefault:""`
	TagMatchMode  string        `env:"TAG_MATCH_MODE" envDefault:"exact"`
	LookbackDays  int           `env:"LOOKBACK_DAYS" envDefault:"14"`
	Workers       int           `env:"SYNC_WORKERS" envDefault:"1"`
	RunTimeout    time.Duration `env:"RUN_TIMEOUT" envDefault:"10m"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

type Config struct {
	Shopify      shopify.Config
	Everstox     everstox.Config
	Pipeline     pipeline.Config
	TagWhitelist []string
	TagBlacklist []string
	TagMatchMode filter.MatchMode
	LookbackDays int
	RunTimeout   time.Duration
	LogLevel     string
	Output       string
}

func Load() (*Config, error) {
	var args Arguments
	if err := env.Parse(&args); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var (
		shopURL       = pflag.String("shop-url", args.ShopURL, "Shopify shop URL (myshop.myshopify.com)")
		apiToken      = pflag.String("shopify-token", args.APIToken, "Shopify Admin API access token")
		apiVersion    = pflag.String("api-version", args.APIVersion, "Shopify API version")
		everstoxURL   = pflag.String("everstox-url", args.EverstoxURL, "Everstox API base URL")
		everstoxShop  = pflag.String("everstox-shop", args.EverstoxShop, "Everstox shop instance id")
		everstoxToken = pflag.String("everstox-token", args.EverstoxToken, "Everstox API token")
		whitelist     = pflag.String("tag-whitelist", args.TagWhitelist, "Comma-separated tags to include (empty: no constraint)")
		blacklist     = pflag.String("tag-blacklist", args.TagBlacklist, "Comma-separated tags to exclude")
		matchMode     = pflag.String("tag-match-mode", args.TagMatchMode, "Tag match mode: exact, contains or regex")
		lookbackDays  = pflag.IntP("days", "n", args.LookbackDays, "Days to look back for orders")
		workers       = pflag.Int("workers", args.Workers, "Concurrent transform workers")
		runTimeout    = pflag.Duration("timeout", args.RunTimeout, "Overall run deadline")
		logLevel      = pflag.StringP("log-level", "l", args.LogLevel, "Log level")
		output        = pflag.StringP("output", "o", "", "File to write payloads and summary to (JSON)")
		armed         = pflag.Bool("armed", false, "Actually send orders to Everstox instead of dry-run")
	)
	pflag.Parse()

	mode, err := filter.ParseMatchMode(*matchMode)
	if err != nil {
		return nil, err
	}
	if *shopURL == "" {
		return nil, fmt.Errorf("shop URL is required (--shop-url or SHOPIFY_SHOP_URL)")
	}
	if *lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback days must be positive, got %d", *lookbackDays)
	}

	return &Config{
		Shopify: shopify.Config{
			ShopURL:    *shopURL,
			APIToken:   *apiToken,
			APIVersion: *apiVersion,
		},
		Everstox: everstox.Config{
			BaseURL:  *everstoxURL,
			ShopID:   *everstoxShop,
			APIToken: *everstoxToken,
			DryRun:   !*armed,
		},
		Pipeline:     pipeline.Config{Workers: *workers},
		TagWhitelist: splitList(*whitelist),
		TagBlacklist: splitList(*blacklist),
		TagMatchMode: mode,
		LookbackDays: *lookbackDays,
		RunTimeout:   *runTimeout,
		LogLevel:     *logLevel,
		Output:       *output,
	}, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
