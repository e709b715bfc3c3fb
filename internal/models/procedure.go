package models

// Procedure is externally managed reference data describing an imaging
// procedure and its expected duration.
type Procedure struct {
	ID              string `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name            string `gorm:"type:varchar(255);not null" json:"name"`
	Modality        string `gorm:"type:varchar(16);not null" json:"modality"`
	DurationMinutes int    `gorm:"not null" json:"duration_minutes"`
}

// TableName overrides the table name
func (Procedure) TableName() string {
	return "procedures"
}

// Station is an addressable imaging device endpoint
type Station struct {
	AET      string `gorm:"type:varchar(32);primaryKey" json:"aet"`
	Name     string `gorm:"type:varchar(100)" json:"name"`
	Modality string `gorm:"type:varchar(16);not null;index" json:"modality"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// TableName overrides the table name
func (Station) TableName() string {
	return "stations"
}
