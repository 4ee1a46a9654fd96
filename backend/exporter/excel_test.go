package exporter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ipsweep/backend/scanner/sweep"
)

func TestWriteXLSXRejectsEmptyResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if _, err := WriteXLSX(path, nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("no file should be written for an empty result")
	}
}

func TestWriteXLSXRowsFollowAccumulationOrder(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	observations := []sweep.Observation{
		{Address: "10.0.0.200", DisplayName: "unknown host", ObservedAt: at},
		{Address: "10.0.0.5", DisplayName: "nas", ObservedAt: at.Add(time.Second)},
		{Address: "10.0.0.1", DisplayName: "router", ObservedAt: at.Add(2 * time.Second)},
	}

	written, err := WriteXLSX(filepath.Join(t.TempDir(), "out", "scan"), observations)
	if err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}
	if !strings.HasSuffix(written, ".xlsx") {
		t.Fatalf("expected .xlsx extension, got %s", written)
	}

	rows, err := ReadXLSX(written)
	if err != nil {
		t.Fatalf("ReadXLSX failed: %v", err)
	}
	if len(rows) != len(observations)+1 {
		t.Fatalf("expected %d rows, got %d", len(observations)+1, len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(Header, "|") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	for i, o := range observations {
		if strings.Join(rows[i+1], "|") != strings.Join(o.Row(), "|") {
			t.Fatalf("row %d: expected %v, got %v", i+1, o.Row(), rows[i+1])
		}
	}
	if rows[1][2] != "2025-01-02 03:04:05" {
		t.Fatalf("unexpected timestamp cell %q", rows[1][2])
	}
}

func TestDefaultFileName(t *testing.T) {
	name := DefaultFileName(time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC))
	if name != "sweep_20261018_093000.xlsx" {
		t.Fatalf("unexpected file name %s", name)
	}
}
