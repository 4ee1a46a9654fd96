package exportlog

import "gorm.io/datatypes"

type Item struct {
	TaskID   int64          `gorm:"index" json:"taskId"`
	Prefix   string         `json:"prefix"`
	Filename string         `json:"filename"`
	Dir      string         `json:"dir"`
	RowCount int            `json:"rowCount"`
	Params   datatypes.JSON `json:"params"`
}
