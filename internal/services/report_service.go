package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// ReportRequest carries the radiologist's narrative sections
type ReportRequest struct {
	Findings        string `json:"findings"`
	Impressions     string `json:"impressions"`
	Recommendations string `json:"recommendations"`
}

// ReportService finalizes orders: it persists the radiologist's report,
// pushes the result to the modality service, confirms completion to the
// HIS and closes the order. An order takes exactly one report.
type ReportService struct {
	store            records.Store
	annotator        *AnnotationClient
	outbox           *outbox
	modalityIdentity hl7.Identity
	modalityAET      string
	hisIdentity      hl7.Identity
	hisName          string
	now              func() time.Time
}

// NewReportService creates a report service
func NewReportService(store records.Store, annotator *AnnotationClient, senders *adapters.Factory, modalityIdentity hl7.Identity, modalityAET string, hisIdentity hl7.Identity, hisName string) *ReportService {
	return &ReportService{
		store:            store,
		annotator:        annotator,
		outbox:           &outbox{senders: senders, store: store},
		modalityIdentity: modalityIdentity,
		modalityAET:      modalityAET,
		hisIdentity:      hisIdentity,
		hisName:          hisName,
		now:              time.Now,
	}
}

// CreateReport writes the report for an in-progress order, sends the
// result message to the modality service, notifies the HIS that the order
// completed and finishes the order. Both counterparts must accept before
// anything is persisted locally. Annotation is best effort; a failure
// there never blocks the report.
func (s *ReportService) CreateReport(ctx context.Context, orderID, radiologist string, req ReportRequest) (*models.Report, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.OrderInProgress {
		return nil, fmt.Errorf("%w: order is %s, want %s", ErrWrongState, order.Status, models.OrderInProgress)
	}
	if _, err := s.store.GetReportByOrder(ctx, orderID); err == nil {
		return nil, ErrAlreadyReported
	} else if !errors.Is(err, records.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing report: %w", err)
	}
	patient, err := s.store.GetPatient(ctx, order.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	annotations, err := s.annotator.Annotate(ctx, req.Findings)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Annotation failed, storing report without annotations")
		annotations = nil
	}
	encoded, err := json.Marshal(annotations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotations: %w", err)
	}

	report := &models.Report{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		PatientID:       order.PatientID,
		Findings:        req.Findings,
		Impressions:     req.Impressions,
		Recommendations: req.Recommendations,
		Annotations:     string(encoded),
		Radiologist:     radiologist,
		CreatedAt:       s.now(),
	}

	result := hl7.BuildResultReport(s.modalityIdentity, *report, *order, *patient, uuid.NewString(), s.now())
	if err := s.outbox.deliver(ctx, s.modalityAET, result); err != nil {
		return nil, err
	}

	// Completion-confirm: the same status-change transaction used for
	// schedule confirmation, with the CM sub-code.
	finished := *order
	finished.Status = models.OrderFinished
	confirm := hl7.BuildOrderTransaction(s.hisIdentity, finished, *patient, "SC", "CM", uuid.NewString(), s.now())
	if err := s.outbox.deliver(ctx, s.hisName, confirm); err != nil {
		return nil, err
	}

	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}
	order.Status = models.OrderFinished
	order.IsActive = false
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to finish order: %w", err)
	}
	return report, nil
}

// GetReport retrieves the report attached to an order
func (s *ReportService) GetReport(ctx context.Context, orderID string) (*models.Report, error) {
	return s.store.GetReportByOrder(ctx, orderID)
}
