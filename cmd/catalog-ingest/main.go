// Command catalog-ingest bulk-imports products from gzipped JSONL supplier
// dumps. Each line is one product record. Dumps are processed in argument
// order; a product id already present in an earlier dump is not overwritten
// by a later one. Per-file bloom filters make the cross-file duplicate check
// cheap enough for very large dumps, with an ON CONFLICT guard catching the
// filters' false positives.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/reseller-orders/internal/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

type productRecord struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ServiceID uuid.UUID       `json:"service_id"`
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, unit_cost, unit_price, service_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_cost = EXCLUDED.unit_cost,
			unit_price = EXCLUDED.unit_price,
			service_id = EXCLUDED.service_id`

	insertProductIfAbsentSQL = `INSERT INTO products (id, name, unit_cost, unit_price, service_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no dump files given: pass one or more products-*.jsonl.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build per-file bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: stream each dump again and write rows.
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for i, f := range files {
		if err := ingestFile(ctx, pool, f, filters[:i]); err != nil {
			return errors.Wrapf(err, "ingest file %s", f)
		}
	}
	return nil
}

// buildBloomFilters creates one bloom filter of product ids per file,
// concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(rec productRecord) error {
			filter.AddString(rec.ID.String())
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("records", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

// ingestFile writes one dump. Records whose id may already have been written
// by an earlier dump (per that dump's bloom filter) are inserted only if
// absent, so the earlier dump wins; everything else is a plain upsert.
func ingestFile(ctx context.Context, pool *pgxpool.Pool, path string, earlier []*bloom.BloomFilter) error {
	slog.Info("pass 2: ingesting", slog.String("file", path))

	var written, deferred uint64
	err := streamGzFile(ctx, path, func(rec productRecord) error {
		query := upsertProductSQL
		if seenInEarlierDump(rec.ID, earlier) {
			query = insertProductIfAbsentSQL
			deferred++
		}
		if _, err := pool.Exec(ctx, query,
			rec.ID, rec.Name, rec.UnitCost, rec.UnitPrice, rec.ServiceID,
		); err != nil {
			return errors.Wrapf(err, "write product %s", rec.ID)
		}
		written++
		if written%progressEvery == 0 {
			slog.Info("pass 2 progress", slog.String("file", path), slog.Uint64("records", written))
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("pass 2 complete",
		slog.String("file", path),
		slog.Uint64("records", written),
		slog.Uint64("cross_file_duplicates", deferred),
	)
	return nil
}

func seenInEarlierDump(id uuid.UUID, earlier []*bloom.BloomFilter) bool {
	for _, f := range earlier {
		if f.TestString(id.String()) {
			return true
		}
	}
	return false
}

// streamGzFile decompresses path and invokes fn for each JSONL record.
func streamGzFile(ctx context.Context, path string, fn func(productRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)

	var line uint64
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var rec productRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return errors.Wrapf(err, "parse line %d", line)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "scan")
}
