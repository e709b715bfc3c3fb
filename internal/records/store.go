// Package records is the record-store boundary of the service. Callers get
// typed read/write/query operations per collection; no transactions are
// assumed and partial failure must be tolerated by callers. The booking
// race is closed in the scheduling package, not here.
package records

import (
	"context"
	"errors"

	"github.com/otcheredev/ris-hl7-service/internal/models"
)

// ErrNotFound is returned when a referenced document does not exist
var ErrNotFound = errors.New("record not found")

// OrderFilter narrows an order query. Zero fields are ignored.
type OrderFilter struct {
	PatientID  string
	StationAET string
	Statuses   []models.OrderStatus
}

// Store is the persistence contract used by the dispatcher, scheduler and
// services.
type Store interface {
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	CreatePatient(ctx context.Context, p *models.Patient) error
	UpdatePatient(ctx context.Context, p *models.Patient) error

	GetProcedure(ctx context.Context, id string) (*models.Procedure, error)

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByAccession(ctx context.Context, accessionNumber string) (*models.Order, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	UpdateOrder(ctx context.Context, o *models.Order) error
	DeleteOrder(ctx context.Context, id string) error
	QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)

	ActiveStations(ctx context.Context, modality string) ([]models.Station, error)

	CreateReport(ctx context.Context, r *models.Report) error
	GetReportByOrder(ctx context.Context, orderID string) (*models.Report, error)

	LogMessage(ctx context.Context, m *models.MessageLog) error
}
