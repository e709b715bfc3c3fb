package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle status of an imaging order
type OrderStatus string

const (
	OrderUnscheduled OrderStatus = "UNSCHEDULED"
	OrderScheduled   OrderStatus = "SCHEDULED"
	OrderGenerated   OrderStatus = "GENERATED"
	OrderInProgress  OrderStatus = "IN_PROGRESS"
	OrderFinished    OrderStatus = "FINISHED"
	OrderCancelled   OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition is allowed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFinished || s == OrderCancelled
}

// OutstandingStatuses are the statuses that occupy a station's time and
// count toward its workload.
var OutstandingStatuses = []OrderStatus{OrderScheduled, OrderGenerated, OrderInProgress}

// Order represents an imaging order. The local identifier doubles as the
// filler order number on the wire; the placer identifier belongs to the HIS.
type Order struct {
	ID              string      `gorm:"type:varchar(64);primaryKey" json:"id"`
	PlacerID        string      `gorm:"type:varchar(64);index" json:"placer_id"`
	PatientID       string      `gorm:"type:varchar(64);not null;index" json:"patient_id"`
	ProcedureID     string      `gorm:"type:varchar(64);not null" json:"procedure_id"`
	ProcedureName   string      `gorm:"type:varchar(255)" json:"procedure"`
	Modality        string      `gorm:"type:varchar(16)" json:"modality"`
	PlacerPhysician Physician   `gorm:"embedded;embeddedPrefix:placer_physician_" json:"placer_physician"`
	Date            string      `gorm:"type:varchar(10)" json:"date"`       // YYYY-MM-DD
	StartTime       string      `gorm:"type:varchar(5)" json:"start_time"`  // HH:MM
	EndTime         string      `gorm:"type:varchar(5)" json:"end_time"`    // HH:MM
	StationAET      string      `gorm:"type:varchar(32);index" json:"station_aet"`
	Status          OrderStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Note            string      `gorm:"type:text" json:"note"`
	IsActive        bool        `gorm:"default:true" json:"is_active"`

	// Set once a worklist entry has been generated
	AccessionNumber string `gorm:"type:varchar(32);index" json:"accession_number"`
	StudyID         string `gorm:"type:varchar(128)" json:"study_id"`

	// Study lifecycle timestamps reported by the modality service
	ExecutedStart string `gorm:"type:varchar(5)" json:"executed_start"`
	ExecutedEnd   string `gorm:"type:varchar(5)" json:"executed_end"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate hook
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
