package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/otcheredev/ris-hl7-service/internal/database"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"gorm.io/gorm"
)

// GormStore implements Store on the shared PostgreSQL connection
type GormStore struct{}

// NewGormStore creates a new database-backed store
func NewGormStore() *GormStore {
	return &GormStore{}
}

// GetPatient retrieves a patient by its HIS-assigned identifier
func (s *GormStore) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, wrapNotFound(err, "get patient")
	}
	return &p, nil
}

// CreatePatient inserts a new patient record
func (s *GormStore) CreatePatient(ctx context.Context, p *models.Patient) error {
	if err := database.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// UpdatePatient saves a patient record
func (s *GormStore) UpdatePatient(ctx context.Context, p *models.Patient) error {
	if err := database.DB.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

// GetProcedure retrieves a procedure by identifier
func (s *GormStore) GetProcedure(ctx context.Context, id string) (*models.Procedure, error) {
	var p models.Procedure
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, wrapNotFound(err, "get procedure")
	}
	return &p, nil
}

// GetOrder retrieves an order by its filler identifier
func (s *GormStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, wrapNotFound(err, "get order")
	}
	return &o, nil
}

// GetOrderByAccession retrieves the order carrying an accession number
func (s *GormStore) GetOrderByAccession(ctx context.Context, accessionNumber string) (*models.Order, error) {
	var o models.Order
	if err := database.DB.WithContext(ctx).Where("accession_number = ?", accessionNumber).First(&o).Error; err != nil {
		return nil, wrapNotFound(err, "get order by accession")
	}
	return &o, nil
}

// CreateOrder inserts a new order
func (s *GormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	if err := database.DB.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateOrder saves an order
func (s *GormStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	if err := database.DB.WithContext(ctx).Save(o).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// DeleteOrder soft deletes an order; the record stays queryable through
// Unscoped for auditing.
func (s *GormStore) DeleteOrder(ctx context.Context, id string) error {
	res := database.DB.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryOrders retrieves orders matching the filter
func (s *GormStore) QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := database.DB.WithContext(ctx).Model(&models.Order{})
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.StationAET != "" {
		q = q.Where("station_aet = ?", f.StationAET)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	var orders []models.Order
	if err := q.Order("date ASC, start_time ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return orders, nil
}

// ActiveStations lists active stations, optionally narrowed to a modality
func (s *GormStore) ActiveStations(ctx context.Context, modality string) ([]models.Station, error) {
	q := database.DB.WithContext(ctx).Where("is_active = ?", true)
	if modality != "" {
		q = q.Where("modality = ?", modality)
	}
	var stations []models.Station
	if err := q.Order("aet ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	return stations, nil
}

// CreateReport inserts a report
func (s *GormStore) CreateReport(ctx context.Context, r *models.Report) error {
	if err := database.DB.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetReportByOrder retrieves the report attached to an order
func (s *GormStore) GetReportByOrder(ctx context.Context, orderID string) (*models.Report, error) {
	var r models.Report
	if err := database.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&r).Error; err != nil {
		return nil, wrapNotFound(err, "get report")
	}
	return &r, nil
}

// LogMessage inserts an interchange message log entry
func (s *GormStore) LogMessage(ctx context.Context, m *models.MessageLog) error {
	if err := database.DB.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

func wrapNotFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
