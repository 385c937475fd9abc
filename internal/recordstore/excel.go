// Package recordstore appends finished classifications to the regulatory
// tracking workbook that downstream compliance staff work from.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kyle-cassidy/delta-gmail-ai-autolabel/internal/classify"
)

// Config configures the workbook record store.
type Config struct {
	Path  string `toml:"path"`
	Sheet string `toml:"sheet"`
}

var header = []any{
	"Document ID", "Category", "Subcategory", "Action",
	"Jurisdiction", "Client", "Confidence", "Reviewed", "Recorded At",
}

// ExcelStore appends one row per completed document to an xlsx workbook.
// Writes are serialized; excelize files are not safe for concurrent use.
type ExcelStore struct {
	mu     sync.Mutex
	path   string
	sheet  string
	logger *slog.Logger
}

// NewExcelStore creates an ExcelStore writing to the given workbook path.
func NewExcelStore(cfg Config, logger *slog.Logger) *ExcelStore {
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = "Classifications"
	}
	return &ExcelStore{
		path:   cfg.Path,
		sheet:  sheet,
		logger: logger.With("system", "recordstore"),
	}
}

// Record appends the document's final classification to the workbook,
// creating the workbook and header row on first use.
func (s *ExcelStore) Record(ctx context.Context, documentID string, result classify.ClassificationResult, reviewed bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, created, err := s.open()
	if err != nil {
		return err
	}
	defer file.Close()

	if created {
		if err := s.writeHeader(file); err != nil {
			return err
		}
	}

	rows, err := file.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", s.sheet, err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	row := []any{
		documentID,
		labelOrEmpty(result.Category.Label),
		labelOrEmpty(result.Subcategory.Label),
		labelOrEmpty(result.Action.Label),
		labelOrEmpty(result.Jurisdiction.Label),
		labelOrEmpty(result.Client.Label),
		result.Overall,
		reviewed,
		time.Now().UTC().Format(time.RFC3339),
	}
	if err := file.SetSheetRow(s.sheet, cell, &row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	if err := file.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info("classification recorded", "document", documentID, "path", s.path)
	return nil
}

func (s *ExcelStore) open() (*excelize.File, bool, error) {
	file, err := excelize.OpenFile(s.path)
	if err == nil {
		return file, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("open workbook: %w", err)
	}

	file = excelize.NewFile()
	index, err := file.NewSheet(s.sheet)
	if err != nil {
		return nil, false, err
	}
	file.SetActiveSheet(index)
	if s.sheet != "Sheet1" {
		if err := file.DeleteSheet("Sheet1"); err != nil {
			return nil, false, err
		}
	}
	return file, true, nil
}

func (s *ExcelStore) writeHeader(file *excelize.File) error {
	return file.SetSheetRow(s.sheet, "A1", &header)
}

func labelOrEmpty(label *string) string {
	if label == nil {
		return ""
	}
	return *label
}
