package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vytor/lingorun/internal/config"
	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/pool"
	"github.com/vytor/lingorun/internal/repository/sqlite"
)

func main() {
	input := flag.String("input", "", "Pool file to import, .csv or .xlsx (required)")
	sheet := flag.String("sheet", "", "Sheet name for .xlsx files (default: first sheet)")
	language := flag.String("language", "en", "Target language of the imported paragraphs")
	noHeader := flag.Bool("no-header", false, "Treat the first row as data")
	flag.Parse()

	if *input == "" {
		fmt.Println("Error: -input flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New(logger.WithLevel(logger.ParseLevel(cfg.LogLevel)), logger.WithFormat(logger.ParseFormat(cfg.LogFormat)))
	logger.SetDefault(log)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	importCfg := pool.DefaultImportConfig(*input)
	importCfg.SheetName = *sheet
	importCfg.Language = *language
	importCfg.SkipHeader = !*noHeader

	ctx := logger.NewContext(context.Background(), log)
	res, err := pool.NewImporter(sqlite.NewParagraphRepository(database.DB)).Import(ctx, importCfg)
	if err != nil {
		log.Error("import failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Processed: %d\nCreated:   %d\nSkipped:   %d\n", res.Processed, res.Created, res.Skipped)
	for _, e := range res.Errors {
		fmt.Printf("  %s\n", e)
	}
}
