package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shopsync/cmd/shopsync/config"
	"shopsync/internal/shopsync/everstox"
	"shopsync/internal/shopsync/filter"
	"shopsync/internal/shopsync/pipeline"
	"shopsync/internal/shopsync/shopify"
	"shopsync/internal/shopsync/transform"
	"shopsync/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewZapLogger(level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	rootCtx, cancelCtx := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancelCtx()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.ErrorCtx(rootCtx, "sync failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(rootCtx context.Context, cfg *config.Config, logger *logging.ZapLogger) error {
	ctx, cancel := context.WithTimeout(rootCtx, cfg.RunTimeout)
	defer cancel()

	tagFilter, warnings := filter.NewTagFilter(cfg.TagWhitelist, cfg.TagBlacklist, cfg.TagMatchMode, logger)
	transformer, err := transform.New(transform.Options{ShopInstanceID: cfg.Everstox.ShopID}, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(
		cfg.Pipeline,
		shopify.NewClient(cfg.Shopify, logger),
		tagFilter,
		transformer,
		everstox.NewPreparer(cfg.Everstox, logger),
		logger,
	)

	now := time.Now().UTC()
	opts := shopify.FetchOptions{
		WindowStart: now.AddDate(0, 0, -cfg.LookbackDays),
		WindowEnd:   now,
	}

	summary, prepared, err := p.Run(ctx, opts)
	if err != nil {
		return err
	}
	summary.Warnings = append(warnings, summary.Warnings...)

	logger.InfoCtx(ctx, "sync summary",
		zap.Bool("dry_run", cfg.Everstox.DryRun),
		zap.Int("fetched", summary.Fetched),
		zap.Int("prepared", summary.Prepared),
		zap.Int("valid", summary.Valid),
		zap.Int("invalid", summary.Invalid),
		zap.String("total_gross", summary.TotalGross.StringFixed(2)),
		zap.String("currency", summary.Currency),
	)
	if len(prepared) > 0 {
		logger.DebugCtx(ctx, "sample request", zap.String("curl", prepared[0].AsCurl()))
	}

	if cfg.Output != "" {
		if err := writeOutput(cfg.Output, summary, prepared); err != nil {
			return err
		}
	}

	if cfg.Everstox.DryRun {
		logger.InfoCtx(ctx, "dry run complete, nothing was sent")
		return nil
	}
	return send(ctx, prepared, logger)
}

// send transmits valid prepared requests in armed mode. Invalid ones are
// reported and held back.
func send(ctx context.Context, prepared []*everstox.PreparedRequest, logger *logging.ZapLogger) error {
	client := everstox.NewClient(logger)
	var failed int
	for _, request := range prepared {
		if !request.Valid() {
			logger.WarnCtx(ctx, "holding back invalid request",
				zap.String("order_number", request.OrderNumber),
				zap.Strings("issues", request.ValidationIssues),
			)
			continue
		}
		if _, err := client.Send(ctx, request); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.ErrorCtx(ctx, "order creation failed",
				zap.String("order_number", request.OrderNumber),
				zap.Error(err),
			)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d orders failed to transmit", failed)
	}
	return nil
}

type outputDocument struct {
	Summary  *pipeline.Summary          `json:"summary"`
	Requests []*everstox.PreparedRequest `json:"requests"`
}

func writeOutput(path string, summary *pipeline.Summary, prepared []*everstox.PreparedRequest) error {
	document := outputDocument{Summary: summary, Requests: prepared}
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
