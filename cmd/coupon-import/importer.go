package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/course-coupons/internal/domain/coupon"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000
	maxLineBytes  = 1 << 20
)

// Creator creates coupons upstream.
type Creator interface {
	CreateCoupon(ctx context.Context, p coupon.CreatePayload) (coupon.Coupon, error)
}

// Source is a stream of coupon drafts, one JSON object per line. It is
// opened once per pass.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileSource string

// FileSource reads a gzip-compressed JSON lines file.
func FileSource(path string) Source { return fileSource(path) }

func (f fileSource) Name() string { return string(f) }

func (f fileSource) Open() (io.ReadCloser, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	gz, err := pgzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "create gzip reader")
	}
	return &gzipFile{Reader: gz, file: file}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// Stats summarizes an import run.
type Stats struct {
	Read      int64
	Invalid   int64
	Duplicate int64
	Created   int64
	Failed    int64
}

// Importer turns coupon drafts into created coupons.
//
// Codes are deduplicated in two passes. The first pass adds every code to a
// bloom filter and keeps the codes that were already in it as suspects. A
// code that is not a suspect occurs once, so the second pass tracks only
// suspects exactly.
type Importer struct {
	creator     Creator
	validator   *coupon.Validator
	concurrency int
	dryRun      bool
	lg          *slog.Logger

	seen     *bloom.BloomFilter
	suspects map[string]struct{}
	claimed  map[string]struct{}

	stats struct {
		read, invalid, duplicate, created, failed atomic.Int64
	}
}

// NewImporter creates an Importer. concurrency bounds parallel creations.
func NewImporter(creator Creator, concurrency int, dryRun bool, lg *slog.Logger) *Importer {
	return &Importer{
		creator:     creator,
		validator:   coupon.NewValidator(nil),
		concurrency: max(concurrency, 1),
		dryRun:      dryRun,
		lg:          lg,
		seen:        bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		suspects:    make(map[string]struct{}),
		claimed:     make(map[string]struct{}),
	}
}

// Stats returns the counters of the run so far.
func (im *Importer) Stats() Stats {
	return Stats{
		Read:      im.stats.read.Load(),
		Invalid:   im.stats.invalid.Load(),
		Duplicate: im.stats.duplicate.Load(),
		Created:   im.stats.created.Load(),
		Failed:    im.stats.failed.Load(),
	}
}

// ImportFiles imports gzip JSON lines files in order.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) error {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource(p))
	}
	return im.Import(ctx, sources...)
}

// Import indexes the codes of all sources, then derives, validates and
// deduplicates every draft in input order and creates the valid ones
// concurrently. Per-draft failures are logged and counted; only read errors
// and cancellation fail the import.
func (im *Importer) Import(ctx context.Context, sources ...Source) error {
	im.lg.Info("pass 1: indexing codes", slog.Int("sources", len(sources)))
	for _, src := range sources {
		if err := im.each(ctx, src, im.index); err != nil {
			return errors.Wrapf(err, "index %s", src.Name())
		}
	}
	im.lg.Info("pass 1 complete", slog.Int("suspects", len(im.suspects)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for _, src := range sources {
		im.lg.Info("pass 2: importing", slog.String("source", src.Name()))
		err := im.each(gctx, src, func(line int, raw []byte) {
			n := im.stats.read.Add(1)
			if n%progressEvery == 0 {
				im.lg.Info("import progress", slog.Int64("read", n))
			}

			p, ok := im.prepare(line, raw)
			if !ok || im.dryRun {
				return
			}
			g.Go(func() error {
				im.create(gctx, line, p)
				return nil
			})
		})
		if err != nil {
			_ = g.Wait()
			return errors.Wrapf(err, "import %s", src.Name())
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// each calls fn for every non-empty line of src.
func (im *Importer) each(ctx context.Context, src Source, fn func(line int, raw []byte)) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var line int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if raw := scanner.Bytes(); len(raw) > 0 {
			fn(line, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}

// index records the code of a draft in the bloom filter. Codes the filter
// already holds become suspects.
func (im *Importer) index(_ int, raw []byte) {
	c, err := im.derive(raw)
	if err != nil || c.Code == "" {
		return
	}
	if im.seen.TestAndAddString(c.Code) {
		im.suspects[c.Code] = struct{}{}
	}
}

func (im *Importer) derive(raw []byte) (coupon.Coupon, error) {
	c := coupon.New()
	if err := json.Unmarshal(raw, &c); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "malformed draft")
	}
	derived, err := coupon.Derive(c, coupon.Submitted(c))
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "derive")
	}
	return derived, nil
}

// prepare derives and validates one draft and claims its code.
func (im *Importer) prepare(line int, raw []byte) (coupon.CreatePayload, bool) {
	c, err := im.derive(raw)
	if err != nil {
		im.reject(line, "cannot read draft", slog.String("error", err.Error()))
		return coupon.CreatePayload{}, false
	}
	if errs := im.validator.Validate(c); !errs.Valid() {
		im.reject(line, "invalid draft", slog.String("errors", errs.Error()))
		return coupon.CreatePayload{}, false
	}

	if c.Code != "" && !im.claim(c.Code) {
		im.stats.duplicate.Add(1)
		im.lg.Warn("duplicate code skipped", slog.Int("line", line), slog.String("code", c.Code))
		return coupon.CreatePayload{}, false
	}

	p, err := coupon.NewCreatePayload(c)
	if err != nil {
		im.reject(line, "cannot build payload", slog.String("error", err.Error()))
		return coupon.CreatePayload{}, false
	}
	return p, true
}

func (im *Importer) reject(line int, msg string, attrs ...any) {
	im.stats.invalid.Add(1)
	im.lg.Warn(msg, append([]any{slog.Int("line", line)}, attrs...)...)
}

// claim reports whether code is imported for the first time. Only suspects
// can repeat.
func (im *Importer) claim(code string) bool {
	if _, ok := im.suspects[code]; !ok {
		return true
	}
	if _, dup := im.claimed[code]; dup {
		return false
	}
	im.claimed[code] = struct{}{}
	return true
}

func (im *Importer) create(ctx context.Context, line int, p coupon.CreatePayload) {
	created, err := im.creator.CreateCoupon(ctx, p)
	if err != nil {
		im.stats.failed.Add(1)
		im.lg.Error("create failed",
			slog.Int("line", line),
			slog.String("title", p.Coupon.Title),
			slog.String("error", err.Error()),
		)
		return
	}
	im.stats.created.Add(1)
	im.lg.Debug("coupon created", slog.Int("line", line), slog.Int("id", created.ID))
}
