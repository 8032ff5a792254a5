package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stockledger/internal/config"
	"stockledger/internal/db"
	"stockledger/internal/domain"
	"stockledger/internal/excel"
	"stockledger/internal/logger"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "import_stock",
		Usage: "load opening stock from an xlsx or csv sheet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "sheet with code and qty columns", Required: true},
			&cli.StringFlag{Name: "created-by", Usage: "user recorded on each adjustment", Required: true},
			&cli.BoolFlag{Name: "dry-run", Usage: "print parsed rows and resolve codes without writing"},
			&cli.StringFlag{Name: "batch-key", Usage: "makes a re-run of the same sheet skip rows already applied"},
		},
		Action: importStock,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "import_stock: %v\n", err)
		os.Exit(1)
	}
}

func importStock(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("import needs STORE_DRIVER=postgres, got %s", cfg.StoreDriver)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stderr"})
	if err != nil {
		return err
	}
	defer log.Sync()

	path := c.String("file")
	rows, err := readRows(path)
	if err != nil {
		return err
	}
	dryRun := c.Bool("dry-run")
	if dryRun {
		printRows(c.App.Writer, rows)
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	opts := db.DefaultPoolOptions()
	opts.MaxConns = cfg.DBMaxConns
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	if _, err := db.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	svc := service.New(repository.New(pool), service.WithLogger(log))
	result, err := svc.ImportOpeningStock(ctx, rows, service.OpeningStockOptions{
		CreatedBy: c.String("created-by"),
		DryRun:    dryRun,
		BatchKey:  c.String("batch-key"),
	})
	if err != nil {
		log.Error("import stopped", zap.String("file", path), zap.Int("applied", result.Applied), zap.Error(err))
		return err
	}

	fmt.Fprintf(c.App.Writer, "rows=%d applied=%d skipped=%d dry_run=%t\n", result.TotalRows, result.Applied, result.Skipped, dryRun)
	for _, code := range result.UnknownCodes {
		fmt.Fprintf(c.App.Writer, "unknown code: %s\n", code)
	}
	return nil
}

func readRows(path string) ([]domain.OpeningStockRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	rows, err := excel.ParseOpeningStockFile(filepath.Base(path), file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

func printRows(w io.Writer, rows []domain.OpeningStockRow) {
	for _, row := range rows {
		notes := ""
		if row.Notes != nil {
			notes = *row.Notes
		}
		fmt.Fprintf(w, "%5d  %-24s %6d  %s\n", row.RowNumber, row.Code, row.Qty, notes)
	}
}
