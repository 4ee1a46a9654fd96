package repository

import (
	"gorm.io/gorm"

	"ipsweep/backend/database/models"
)

type ExportLogRepository interface {
	Create(item *models.ExportLog) error
	List(limit int) ([]models.ExportLog, error)
	ListByTask(taskID int64) ([]models.ExportLog, error)
}

type exportLogRepository struct {
	db *gorm.DB
}

func NewExportLogRepository(db *gorm.DB) ExportLogRepository {
	return &exportLogRepository{db: db}
}

func (r *exportLogRepository) Create(item *models.ExportLog) error {
	return r.db.Create(item).Error
}

// List returns the newest entries first.
func (r *exportLogRepository) List(limit int) ([]models.ExportLog, error) {
	var items []models.ExportLog
	q := r.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *exportLogRepository) ListByTask(taskID int64) ([]models.ExportLog, error) {
	var items []models.ExportLog
	if err := r.db.Where("task_id = ?", taskID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
