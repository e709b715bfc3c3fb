package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Annotation is one structured finding extracted from the report text by
// the external annotation service.
type Annotation struct {
	Observation string `json:"observation"`
	LocatedAt   string `json:"located_at"`
	Tag         string `json:"tags"`
}

// Report is the radiologist's result for a finished order. One report is
// created per order; finalizing it deactivates the order.
type Report struct {
	ID              string `gorm:"type:varchar(64);primaryKey" json:"id"`
	OrderID         string `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_id"`
	PatientID       string `gorm:"type:varchar(64);not null;index" json:"patient_id"`
	Findings        string `gorm:"type:text" json:"findings"`
	Impressions     string `gorm:"type:text" json:"impressions"`
	Recommendations string `gorm:"type:text" json:"recommendations"`
	Annotations     string `gorm:"type:text" json:"annotations"` // JSON-encoded []Annotation
	Radiologist     string `gorm:"type:varchar(100)" json:"radiologist"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Report) TableName() string {
	return "reports"
}

// BeforeCreate hook
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
