package pool

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/xuri/excelize/v2"
)

// Column layout of a pool file: Title, Content, Difficulty, Topic.
const (
	colTitle = iota
	colContent
	colDifficulty
	colTopic
)

// ImportConfig defines where the seed paragraphs are read from.
type ImportConfig struct {
	FilePath   string
	SheetName  string // xlsx only; empty means the first sheet
	SkipHeader bool
	Language   string
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:   path,
		SkipHeader: true,
		Language:   models.DefaultLanguage,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// Importer loads seed paragraphs into the static pool.
type Importer struct {
	paragraphs repository.ParagraphRepository
}

// NewImporter creates a new Importer
func NewImporter(paragraphs repository.ParagraphRepository) *Importer {
	return &Importer{paragraphs: paragraphs}
}

// Import reads an .xlsx or .csv file, picked by extension. Rows whose title
// already exists in the seed pool are skipped.
func (im *Importer) Import(ctx context.Context, cfg ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(cfg.FilePath)) {
	case ".csv":
		rows, err = readCSVFile(cfg.FilePath)
	case ".xlsx":
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	default:
		return nil, fmt.Errorf("unsupported pool file %q: want .csv or .xlsx", cfg.FilePath)
	}
	if err != nil {
		return nil, err
	}
	return im.importRows(ctx, rows, cfg)
}

// ImportCSV reads CSV rows from r.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, cfg ImportConfig) (*ImportResult, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return im.importRows(ctx, rows, cfg)
}

func (im *Importer) importRows(ctx context.Context, rows [][]string, cfg ImportConfig) (*ImportResult, error) {
	log := logger.FromContext(ctx).WithPrefix("pool")
	language := cfg.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i == 0 && cfg.SkipHeader {
			continue
		}
		if blank(row) {
			continue
		}
		result.Processed++
		line := i + 1

		p, err := parseRow(row)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", line, err))
			continue
		}

		exists, err := im.paragraphs.ExistsSeedTitle(ctx, p.Title)
		if err != nil {
			return result, fmt.Errorf("row %d: check title: %w", line, err)
		}
		if exists {
			log.Debug("skipping existing paragraph %q", p.Title)
			result.Skipped++
			continue
		}

		p.Language = language
		p.Source = models.SourceSeed
		if _, err := im.paragraphs.Insert(ctx, p); err != nil {
			return result, fmt.Errorf("row %d: insert: %w", line, err)
		}
		result.Created++
	}

	log.Info("pool import finished: processed=%d created=%d skipped=%d errors=%d",
		result.Processed, result.Created, result.Skipped, len(result.Errors))
	return result, nil
}

func parseRow(row []string) (models.Paragraph, error) {
	title := cell(row, colTitle)
	content := cell(row, colContent)
	if title == "" {
		return models.Paragraph{}, fmt.Errorf("missing title")
	}
	if content == "" {
		return models.Paragraph{}, fmt.Errorf("missing content")
	}
	if len(models.SplitSentences(content)) == 0 {
		return models.Paragraph{}, fmt.Errorf("content has no sentences")
	}
	bucket, err := parseBucket(cell(row, colDifficulty))
	if err != nil {
		return models.Paragraph{}, err
	}
	return models.Paragraph{
		Title:      title,
		Content:    content,
		Difficulty: bucket,
		Topic:      cell(row, colTopic),
	}, nil
}

// parseBucket accepts a bucket name or a 1-10 level.
func parseBucket(v string) (string, error) {
	v = strings.ToLower(v)
	if models.ValidBucket(v) {
		return v, nil
	}
	if lvl, err := strconv.Atoi(v); err == nil && lvl >= models.MinDifficulty && lvl <= models.MaxDifficulty {
		return models.BucketForDifficulty(lvl), nil
	}
	return "", fmt.Errorf("invalid difficulty %q", v)
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSVFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return readCSV(file)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}
