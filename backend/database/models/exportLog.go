package models

import (
	"path/filepath"

	"ipsweep/backend/service/model/exportlog"
)

// ExportLog records one workbook written for a sweep task.
type ExportLog struct {
	BaseModel
	exportlog.Item
}

func (ExportLog) TableName() string {
	return "sweep_export_log"
}

// Path is the full location of the exported workbook.
func (e ExportLog) Path() string {
	return filepath.Join(e.Dir, e.Filename)
}
