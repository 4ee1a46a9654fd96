package repository

import (
	"path/filepath"
	"testing"

	"ipsweep/backend/database"
	"ipsweep/backend/database/models"
	"ipsweep/backend/service/model/exportlog"
)

func TestExportLogRepository(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "data", "data.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close(db)

	repo := NewExportLogRepository(db)
	for i, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		item := &models.ExportLog{Item: exportlog.Item{TaskID: int64(i % 2), Prefix: "10.0.0.", Filename: name, Dir: "/tmp/export", RowCount: i + 1}}
		if err := repo.Create(item); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if item.ID == 0 {
			t.Fatalf("expected an assigned id")
		}
	}

	latest, err := repo.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(latest) != 2 || latest[0].Filename != "c.xlsx" {
		t.Fatalf("unexpected latest entries %+v", latest)
	}
	if latest[0].Path() != filepath.Join("/tmp/export", "c.xlsx") {
		t.Fatalf("unexpected path %q", latest[0].Path())
	}

	byTask, err := repo.ListByTask(0)
	if err != nil {
		t.Fatalf("ListByTask failed: %v", err)
	}
	if len(byTask) != 2 || byTask[0].Filename != "a.xlsx" || byTask[1].Filename != "c.xlsx" {
		t.Fatalf("unexpected task entries %+v", byTask)
	}
}
