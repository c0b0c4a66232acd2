package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/receiptscan/receiptscan/constants"
	"github.com/receiptscan/receiptscan/internal/analytics"
	"github.com/receiptscan/receiptscan/internal/async"
	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
	"github.com/receiptscan/receiptscan/internal/export"
	"github.com/receiptscan/receiptscan/internal/fields"
	"github.com/receiptscan/receiptscan/internal/imgproc"
	"github.com/receiptscan/receiptscan/internal/ocr"
	"github.com/receiptscan/receiptscan/internal/pipeline"
	"github.com/receiptscan/receiptscan/internal/repository"
)

const usage = `receiptscan - receipt OCR extraction and tracking

Usage:
  receiptscan <command> [flags] [args]

Commands:
  process <file>   run the extraction pipeline on one document
  batch <dir>      process every supported file under a directory
  search           query stored receipts
  stats            print the analytics report
  export           write stored receipts to xlsx, csv or json

Run 'receiptscan <command> -h' for command flags.
`

// printError prints to stderr, falling back to stdout if stderr fails.
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// .env is optional; real environment variables win when both define a key.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		printError(usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "process":
		err = runProcess(cfg, logger, os.Args[2:])
	case "batch":
		err = runBatch(cfg, logger, os.Args[2:])
	case "search":
		err = runSearch(cfg, logger, os.Args[2:])
	case "stats":
		err = runStats(cfg, logger, os.Args[2:])
	case "export":
		err = runExport(cfg, logger, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		printError("unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildProcessor wires the extraction pipeline from configuration.
func buildProcessor(cfg *common.Config, logger *slog.Logger) (*pipeline.Processor, error) {
	rules, err := fields.LoadRules(cfg.Pipeline.RulesPath)
	if err != nil {
		return nil, err
	}
	fieldExtractor, err := fields.NewExtractor(rules, logger)
	if err != nil {
		return nil, err
	}

	norm := imgproc.NewNormalizer(imgproc.Config{MinSize: cfg.Pipeline.MinImageSize}, logger)
	textExtractor := ocr.NewExtractor(ocr.Config{
		Tesseract:         cfg.OCR.Tesseract,
		Language:          cfg.OCR.Language,
		TessdataDir:       cfg.OCR.TessdataDir,
		PSM:               cfg.OCR.PSM,
		OEM:               cfg.OCR.OEM,
		DPI:               cfg.OCR.DPI,
		MaxPages:          cfg.OCR.MaxPages,
		MinTextLayerChars: cfg.Pipeline.MinTextLayerChars,
	}, norm, logger)

	return pipeline.NewProcessor(textExtractor, fieldExtractor, logger,
		pipeline.WithMinConfidence(cfg.Pipeline.LowConfidenceThreshold)), nil
}

// openRepository opens the database, runs migrations and returns the receipt
// store plus a cleanup func.
func openRepository(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.ReceiptRepository, func(), error) {
	db, err := repository.Open(ctx, repository.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		repository.Close(db, logger)
		return nil, nil, err
	}
	return repository.NewReceiptRepository(db, logger), func() { repository.Close(db, logger) }, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func parseDateFlag(value, name string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s date %q, use YYYY-MM-DD", name, value)
	}
	return &parsed, nil
}

func runProcess(cfg *common.Config, logger *slog.Logger, args []string) error {
	fsFlags := flag.NewFlagSet("process", flag.ExitOnError)
	save := fsFlags.Bool("save", false, "persist the extracted receipt")
	if err := fsFlags.Parse(args); err != nil {
		return err
	}
	if fsFlags.NArg() != 1 {
		return fmt.Errorf("process needs exactly one file argument")
	}
	path := fsFlags.Arg(0)

	proc, err := buildProcessor(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	result := proc.ProcessPath(ctx, path)
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("processing failed: %s", result.FailureReason)
	}

	if *save {
		repo, cleanup, err := openRepository(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		rec := result.ToReceipt(filepath.Base(path))
		if err := repo.Save(ctx, rec); err != nil {
			return err
		}
		fmt.Printf("saved receipt %s\n", rec.ID)
	}
	return nil
}

func runBatch(cfg *common.Config, logger *slog.Logger, args []string) error {
	fsFlags := flag.NewFlagSet("batch", flag.ExitOnError)
	save := fsFlags.Bool("save", false, "persist successfully extracted receipts")
	workers := fsFlags.Int("workers", cfg.Batch.Workers, "concurrent workers")
	if err := fsFlags.Parse(args); err != nil {
		return err
	}
	if fsFlags.NArg() != 1 {
		return fmt.Errorf("batch needs exactly one directory argument")
	}
	dir := fsFlags.Arg(0)

	proc, err := buildProcessor(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var repo repository.ReceiptRepository
	if *save {
		var cleanup func()
		repo, cleanup, err = openRepository(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	var saved atomic.Int64
	onResult := func(job async.Job, res *entity.ProcessingResult) {
		if repo == nil || !res.Success {
			return
		}
		rec := res.ToReceipt(filepath.Base(job.Path))
		if err := repo.Save(ctx, rec); err != nil {
			logger.Error("could not save receipt", "path", job.Path, "error", err)
			return
		}
		saved.Add(1)
	}

	jobID := uuid.NewString()
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.ProcessTimeout),
		async.WithJobID(jobID),
		async.WithResultHandler(onResult),
	)

	logger.Info("starting batch run", "dir", dir, "job_id", jobID, "workers", *workers)
	var queued, skipped int
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !constants.IsAllowedExtension(filepath.Ext(d.Name())) {
			logger.Debug("skipping unsupported file", "path", path)
			skipped++
			return nil
		}
		queued++
		return queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()})
	})
	queue.Shutdown(ctx)
	if walkErr != nil {
		return walkErr
	}

	processed, failed := queue.Stats()
	logger.Info("batch run complete",
		"job_id", jobID, "queued", queued, "processed", processed,
		"failed", failed, "skipped", skipped, "saved", saved.Load())

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files queued: %d\n", queued)
	fmt.Printf("- Processed: %d\n", processed)
	fmt.Printf("- Failed: %d\n", failed)
	fmt.Printf("- Skipped: %d\n", skipped)
	if *save {
		fmt.Printf("- Saved: %d\n", saved.Load())
	}
	return nil
}

func runSearch(cfg *common.Config, logger *slog.Logger, args []string) error {
	fsFlags := flag.NewFlagSet("search", flag.ExitOnError)
	vendor := fsFlags.String("vendor", "", "vendor substring to match")
	fuzzy := fsFlags.Bool("fuzzy", false, "also match misspelled vendor names")
	category := fsFlags.String("category", "", "category filter")
	currency := fsFlags.String("currency", "", "currency filter")
	fromStr := fsFlags.String("from", "", "transaction date from (YYYY-MM-DD)")
	toStr := fsFlags.String("to", "", "transaction date to (YYYY-MM-DD)")
	minAmount := fsFlags.Float64("min-amount", 0, "minimum amount, 0 means no bound")
	maxAmount := fsFlags.Float64("max-amount", 0, "maximum amount, 0 means no bound")
	minConfidence := fsFlags.Float64("min-confidence", 0, "minimum extraction confidence, 0 means no bound")
	sortBy := fsFlags.String("sort", "date", "sort field: "+strings.Join(analytics.SortFields(), ", "))
	asc := fsFlags.Bool("asc", false, "sort ascending instead of descending")
	if err := fsFlags.Parse(args); err != nil {
		return err
	}

	from, err := parseDateFlag(*fromStr, "from")
	if err != nil {
		return err
	}
	to, err := parseDateFlag(*toStr, "to")
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, cleanup, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := analytics.NewEngine(logger)

	var receipts []*entity.Receipt
	if *fuzzy {
		// Fuzzy vendor matching happens in memory; fetch everything and let
		// the analytics engine filter.
		all, err := repo.List(ctx)
		if err != nil {
			return err
		}
		f := analytics.Filter{
			VendorQuery:   *vendor,
			Fuzzy:         true,
			DateFrom:      from,
			DateTo:        to,
			Category:      *category,
			Currency:      *currency,
			MinConfidence: *minConfidence,
		}
		if *minAmount > 0 {
			f.AmountMin = minAmount
		}
		if *maxAmount > 0 {
			f.AmountMax = maxAmount
		}
		receipts = engine.Search(all, f)
	} else {
		f := repository.SearchFilter{
			Vendor:   *vendor,
			DateFrom: from,
			DateTo:   to,
			Category: *category,
			Currency: *currency,
		}
		if *minAmount > 0 {
			f.AmountMin = minAmount
		}
		if *maxAmount > 0 {
			f.AmountMax = maxAmount
		}
		if *minConfidence > 0 {
			f.MinConfidence = minConfidence
		}
		receipts, err = repo.Search(ctx, f)
		if err != nil {
			return err
		}
	}

	sorted, err := engine.Sort(receipts, *sortBy, *asc)
	if err != nil {
		return err
	}
	logger.Info("search complete", "matched", len(sorted))
	return printJSON(sorted)
}

func runStats(cfg *common.Config, logger *slog.Logger, args []string) error {
	fsFlags := flag.NewFlagSet("stats", flag.ExitOnError)
	top := fsFlags.Int("top", 10, "how many top vendors to include")
	velocityDays := fsFlags.Int("velocity-days", 30, "trailing window for spending velocity")
	if err := fsFlags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	repo, cleanup, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	receipts, err := repo.List(ctx)
	if err != nil {
		return err
	}

	engine := analytics.NewEngine(logger)
	out := struct {
		Report     analytics.Report        `json:"report"`
		TopVendors []analytics.VendorTotal `json:"top_vendors"`
		Velocity   analytics.Velocity      `json:"velocity"`
	}{
		Report:     engine.Report(receipts),
		TopVendors: engine.TopVendors(receipts, *top),
		Velocity:   engine.SpendingVelocity(receipts, *velocityDays),
	}
	return printJSON(out)
}

func runExport(cfg *common.Config, logger *slog.Logger, args []string) error {
	fsFlags := flag.NewFlagSet("export", flag.ExitOnError)
	formatStr := fsFlags.String("format", "xlsx", "output format: xlsx, csv or json")
	outPath := fsFlags.String("o", "", "output path (default receipts.<format>)")
	if err := fsFlags.Parse(args); err != nil {
		return err
	}

	format, err := export.ParseFormat(*formatStr)
	if err != nil {
		return err
	}

	ctx := context.Background()
	repo, cleanup, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	receipts, err := repo.List(ctx)
	if err != nil {
		return err
	}

	data, suffix, err := export.NewService(logger).Export(receipts, format)
	if err != nil {
		return err
	}

	path := *outPath
	if path == "" {
		path = "receipts" + suffix
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %d receipts to %s\n", len(receipts), path)
	return nil
}
