package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

const clockLayout = "15:04"

// WorklistService pushes worklist entries to the modality service and
// follows the study lifecycle it reports back.
type WorklistService struct {
	store       records.Store
	outbox      *outbox
	identity    hl7.Identity
	modalityAET string
	now         func() time.Time
}

// NewWorklistService creates a worklist service
func NewWorklistService(store records.Store, senders *adapters.Factory, identity hl7.Identity, modalityAET string) *WorklistService {
	return &WorklistService{
		store:       store,
		outbox:      &outbox{senders: senders, store: store},
		identity:    identity,
		modalityAET: modalityAET,
		now:         time.Now,
	}
}

// GenerateWorklist creates the modality worklist entry for a scheduled
// order. The accession number and study identifier are minted here and
// committed only after the modality service accepts the entry.
func (s *WorklistService) GenerateWorklist(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.OrderScheduled {
		return nil, fmt.Errorf("%w: order is %s, want %s", ErrWrongState, order.Status, models.OrderScheduled)
	}
	patient, err := s.store.GetPatient(ctx, order.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	accessionNumber := newAccessionNumber()
	studyID := newStudyUID()

	msg := hl7.BuildWorklistRequest(s.identity, *patient, *order, accessionNumber, studyID, uuid.NewString(), s.now())
	if err := s.outbox.deliver(ctx, s.modalityAET, msg); err != nil {
		return nil, err
	}

	order.AccessionNumber = accessionNumber
	order.StudyID = studyID
	order.Status = models.OrderGenerated
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to commit worklist entry: %w", err)
	}
	return order, nil
}

// StudyStarted records that the modality began acquiring the study
func (s *WorklistService) StudyStarted(ctx context.Context, accessionNumber string) (*models.Order, error) {
	order, err := s.store.GetOrderByAccession(ctx, accessionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load order for accession %s: %w", accessionNumber, err)
	}
	if order.Status != models.OrderGenerated {
		return nil, fmt.Errorf("%w: order is %s, want %s", ErrWrongState, order.Status, models.OrderGenerated)
	}

	order.Status = models.OrderInProgress
	order.ExecutedStart = s.now().Format(clockLayout)
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to record study start: %w", err)
	}
	return order, nil
}

// StudyStabilized records that the study is complete and stored. The
// modality may assign its own study instance identifier; when present it
// replaces the one minted at worklist generation.
func (s *WorklistService) StudyStabilized(ctx context.Context, accessionNumber, studyUID string) (*models.Order, error) {
	order, err := s.store.GetOrderByAccession(ctx, accessionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load order for accession %s: %w", accessionNumber, err)
	}
	if order.Status != models.OrderInProgress {
		return nil, fmt.Errorf("%w: order is %s, want %s", ErrWrongState, order.Status, models.OrderInProgress)
	}

	order.ExecutedEnd = s.now().Format(clockLayout)
	if studyUID != "" {
		order.StudyID = studyUID
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to record study end: %w", err)
	}
	return order, nil
}

// newAccessionNumber mints a 16-character accession number
func newAccessionNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:16])
}

// newStudyUID mints a study instance UID under the UUID-derived OID root
func newStudyUID() string {
	id := uuid.New()
	return "2.25." + new(big.Int).SetBytes(id[:]).String()
}
