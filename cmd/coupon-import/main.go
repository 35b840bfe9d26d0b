// Command coupon-import bulk-creates coupons from gzip-compressed JSON lines
// files, one coupon draft per line.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/course-coupons/internal/ecommerce"
)

func main() {
	var (
		ecommerceURL string
		concurrency  int
		timeout      time.Duration
		dryRun       bool
		verbose      bool
	)

	flag.StringVar(&ecommerceURL, "ecommerce-url", "", "e-commerce API base URL (or COUPONS_ECOMMERCE_URL env)")
	flag.IntVar(&concurrency, "concurrency", 8, "parallel coupon creations")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "timeout of a single API request")
	flag.BoolVar(&dryRun, "dry-run", false, "validate drafts without creating coupons")
	flag.BoolVar(&verbose, "v", false, "log every created coupon")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		lg.Error("load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if ecommerceURL == "" {
		ecommerceURL = os.Getenv("COUPONS_ECOMMERCE_URL")
	}
	if ecommerceURL == "" && !dryRun {
		lg.Error("e-commerce URL is required: set --ecommerce-url or COUPONS_ECOMMERCE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		lg.Error("usage: coupon-import [flags] drafts.jsonl.gz...")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Credentials of an authenticated staff session.
	ctx = ecommerce.WithSession(ctx, ecommerce.Session{
		Cookie:    os.Getenv("COUPONS_SESSION_COOKIE"),
		CSRFToken: os.Getenv("COUPONS_CSRF_TOKEN"),
	})

	if err := run(ctx, lg, ecommerceURL, timeout, concurrency, dryRun, flag.Args()); err != nil {
		lg.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *slog.Logger, baseURL string, timeout time.Duration, concurrency int, dryRun bool, files []string) error {
	// Dry runs never create, so they need no client.
	var creator Creator
	if !dryRun {
		client, err := ecommerce.New(ecommerce.Config{BaseURL: baseURL, Timeout: timeout})
		if err != nil {
			return errors.Wrap(err, "create client")
		}
		if err := client.Ping(ctx); err != nil {
			return errors.Wrap(err, "e-commerce API unavailable")
		}
		creator = client
	}

	im := NewImporter(creator, concurrency, dryRun, lg)
	start := time.Now()
	err := im.ImportFiles(ctx, files)

	s := im.Stats()
	lg.Info("coupon import finished",
		slog.Int64("read", s.Read),
		slog.Int64("invalid", s.Invalid),
		slog.Int64("duplicate", s.Duplicate),
		slog.Int64("created", s.Created),
		slog.Int64("failed", s.Failed),
		slog.Duration("took", time.Since(start)),
	)
	if err != nil {
		return err
	}
	if s.Failed > 0 {
		return errors.Errorf("%d coupons could not be created", s.Failed)
	}
	return nil
}
