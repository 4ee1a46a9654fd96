package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"ipsweep/backend/scanner/sweep"
)

// ErrNoData is returned instead of writing an empty workbook.
var ErrNoData = errors.New("no scan results to export")

// Header is the first row of every exported sheet.
var Header = []string{"IP address", "hostname", "response time"}

const (
	sheetName = "Sheet1"
	extension = ".xlsx"
)

// WriteXLSX writes observations to path, one row each in the given order, and
// returns the final file name. ".xlsx" is appended when missing.
func WriteXLSX(path string, observations []sweep.Observation) (string, error) {
	if len(observations) == 0 {
		return "", ErrNoData
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.New("export path is empty")
	}
	if !strings.EqualFold(filepath.Ext(path), extension) {
		path += extension
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "create export directory")
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, 1, Header); err != nil {
		return "", err
	}
	for i, o := range observations {
		if err := writeRow(f, i+2, o.Row()); err != nil {
			return "", err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "C", 22); err != nil {
		return "", errors.Wrap(err, "set column width")
	}
	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrapf(err, "save %s", path)
	}
	return path, nil
}

// ReadXLSX returns every row of the first sheet, header included.
func ReadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

// DefaultFileName names an export taken at now.
func DefaultFileName(now time.Time) string {
	return fmt.Sprintf("sweep_%s%s", now.Format("20060102_150405"), extension)
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return errors.Wrapf(err, "write row %d", row)
	}
	return nil
}
