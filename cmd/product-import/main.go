// Command product-import bulk-loads supplier price lists into the catalog.
// Lists are gzipped CSV files, one product per line:
//
//	codeBar;name;category;subCategory;brand;unitMeasure;priceBuy;priceSell;stock
//
// A barcode present in more than one list is ambiguous (two suppliers quote
// the same product) and is skipped. Detection runs in two passes: pass 1
// builds one bloom filter of barcodes per file, pass 2 re-streams each file
// and checks every barcode against the other files' filters.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/distriplus/backend/internal/domain/product"
	"github.com/distriplus/backend/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
	minBarcodeLen = 8
	maxBarcodeLen = 14
	recordFields  = 9
)

// record is one parsed price list line.
type record struct {
	codeBar     string
	name        string
	category    string
	subCategory string
	brand       string
	unitMeasure string
	priceBuy    decimal.Decimal
	priceSell   decimal.Decimal
	stock       int
}

// fileResult holds the importable records found in a single file during pass 2.
type fileResult struct {
	records   []record
	conflicts int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz price lists")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("product import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("product import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob price lists")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files found in %s", dataDir)
	}

	// Pass 1: build one bloom filter of barcodes per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect records whose barcode appears in exactly one file.
	slog.Info("pass 2: collecting importable records")

	records, err := findImportable(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find importable records")
	}

	slog.Info("importable records found", slog.Int("count", len(records)))

	if len(records) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	products := product.NewService(repository.NewProductRepository(pool))
	if err := writeProducts(ctx, products, records); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
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

		if err := streamGzFile(ctx, path, func(line string) {
			code := barcodeOf(line)
			if code == "" {
				return
			}
			filter.AddString(code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("records", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for %s", path)
		}

		slog.Info("pass 1 complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findImportable re-streams each file and drops records whose barcode appears
// in another file's bloom filter.
func findImportable(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]record, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(scanFileForRecords(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []record
	for _, r := range results {
		merged = append(merged, r.records...)
	}

	return merged, nil
}

func scanFileForRecords(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		var res fileResult
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			rec, err := parseRecord(line)
			if err != nil {
				slog.Warn("skipping malformed line",
					slog.String("file", filepath.Base(path)),
					slog.String("error", err.Error()),
				)
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("records", count),
				)
			}

			// A barcode in any OTHER file's filter is ambiguous.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(rec.codeBar) {
					res.conflicts++
					return
				}
			}
			res.records = append(res.records, rec)
		}); err != nil {
			return errors.Wrapf(err, "scan %s for records", path)
		}

		slog.Info("pass 2 complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("total_records", count),
			slog.Int("importable", len(res.records)),
			slog.Int("conflicts", res.conflicts),
		)

		results[idx] = res
		return nil
	}
}

// barcodeOf extracts and validates the first CSV field without parsing the
// whole line. Used by pass 1, which only needs barcodes.
func barcodeOf(line string) string {
	code, _, ok := strings.Cut(line, ";")
	if !ok {
		return ""
	}
	code = strings.TrimSpace(code)
	if len(code) < minBarcodeLen || len(code) > maxBarcodeLen {
		return ""
	}
	return code
}

func parseRecord(line string) (record, error) {
	fields := strings.Split(line, ";")
	if len(fields) != recordFields {
		return record{}, errors.Errorf("expected %d fields, got %d", recordFields, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	code := fields[0]
	if len(code) < minBarcodeLen || len(code) > maxBarcodeLen {
		return record{}, errors.Errorf("invalid barcode %q", code)
	}

	priceBuy, err := decimal.NewFromString(fields[6])
	if err != nil {
		return record{}, errors.Wrapf(err, "parse priceBuy for %s", code)
	}
	priceSell, err := decimal.NewFromString(fields[7])
	if err != nil {
		return record{}, errors.Wrapf(err, "parse priceSell for %s", code)
	}
	stock, err := strconv.Atoi(fields[8])
	if err != nil {
		return record{}, errors.Wrapf(err, "parse stock for %s", code)
	}

	return record{
		codeBar:     code,
		name:        fields[1],
		category:    fields[2],
		subCategory: fields[3],
		brand:       fields[4],
		unitMeasure: fields[5],
		priceBuy:    priceBuy,
		priceSell:   priceSell,
		stock:       stock,
	}, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeProducts creates the imported products, skipping barcodes already in
// the catalog.
func writeProducts(ctx context.Context, products *product.Service, records []record) error {
	slog.Info("writing products to database", slog.Int("count", len(records)))

	var created, skipped int
	for i, rec := range records {
		_, err := products.Create(ctx, product.CreateRequest{
			Name:        rec.name,
			Category:    rec.category,
			SubCategory: rec.subCategory,
			CodeBar:     rec.codeBar,
			PriceBuy:    rec.priceBuy,
			PriceSell:   rec.priceSell,
			Stock:       rec.stock,
			UnitMeasure: rec.unitMeasure,
			Brand:       rec.brand,
		}, "import")

		var dup *product.DuplicateBarcodeError
		switch {
		case errors.As(err, &dup):
			skipped++
		case err != nil:
			return errors.Wrapf(err, "create product %s", rec.codeBar)
		default:
			created++
		}

		if (i+1)%1000 == 0 || i+1 == len(records) {
			slog.Info("write progress",
				slog.Int("written", i+1),
				slog.Int("total", len(records)),
			)
		}
	}

	slog.Info("write complete", slog.Int("created", created), slog.Int("skipped_existing", skipped))
	return nil
}
