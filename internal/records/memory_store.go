package records

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-hl7-service/internal/models"
)

// MemoryStore implements Store with in-process maps. Used by tests and
// when running without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	patients   map[string]models.Patient
	procedures map[string]models.Procedure
	orders     map[string]models.Order
	stations   map[string]models.Station
	reports    map[string]models.Report
	messages   []models.MessageLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:   make(map[string]models.Patient),
		procedures: make(map[string]models.Procedure),
		orders:     make(map[string]models.Order),
		stations:   make(map[string]models.Station),
		reports:    make(map[string]models.Report),
	}
}

// GetPatient retrieves a patient by identifier
func (s *MemoryStore) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// CreatePatient inserts a patient
func (s *MemoryStore) CreatePatient(ctx context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = *p
	return nil
}

// UpdatePatient saves a patient
func (s *MemoryStore) UpdatePatient(ctx context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[p.ID]; !ok {
		return ErrNotFound
	}
	s.patients[p.ID] = *p
	return nil
}

// GetProcedure retrieves a procedure by identifier
func (s *MemoryStore) GetProcedure(ctx context.Context, id string) (*models.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.procedures[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// AddProcedure seeds a procedure (reference data has no wire event)
func (s *MemoryStore) AddProcedure(p models.Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procedures[p.ID] = p
}

// AddStation seeds a station
func (s *MemoryStore) AddStation(st models.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[st.AET] = st
}

// GetOrder retrieves an order by its filler identifier
func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// GetOrderByAccession retrieves the order carrying an accession number
func (s *MemoryStore) GetOrderByAccession(ctx context.Context, accessionNumber string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.AccessionNumber != "" && o.AccessionNumber == accessionNumber {
			out := o
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// CreateOrder inserts an order, generating an identifier when absent
func (s *MemoryStore) CreateOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = *o
	return nil
}

// UpdateOrder saves an order
func (s *MemoryStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return ErrNotFound
	}
	s.orders[o.ID] = *o
	return nil
}

// DeleteOrder removes an order
func (s *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

// QueryOrders retrieves orders matching the filter in date/time order
func (s *MemoryStore) QueryOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Order
	for _, o := range s.orders {
		if f.PatientID != "" && o.PatientID != f.PatientID {
			continue
		}
		if f.StationAET != "" && o.StationAET != f.StationAET {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

// ActiveStations lists active stations, optionally narrowed to a modality
func (s *MemoryStore) ActiveStations(ctx context.Context, modality string) ([]models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Station
	for _, st := range s.stations {
		if !st.IsActive {
			continue
		}
		if modality != "" && st.Modality != modality {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AET < out[j].AET })
	return out, nil
}

// CreateReport inserts a report
func (s *MemoryStore) CreateReport(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.reports[r.ID] = *r
	return nil
}

// GetReportByOrder retrieves the report attached to an order
func (s *MemoryStore) GetReportByOrder(ctx context.Context, orderID string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.OrderID == orderID {
			out := r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// LogMessage appends a message log entry
func (s *MemoryStore) LogMessage(ctx context.Context, m *models.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.messages = append(s.messages, *m)
	return nil
}

// Messages returns a copy of the logged messages in arrival order
func (s *MemoryStore) Messages() []models.MessageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MessageLog(nil), s.messages...)
}

func containsStatus(list []models.OrderStatus, st models.OrderStatus) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}
