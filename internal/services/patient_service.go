package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// PatientService applies local demographic edits. The HIS is the system of
// record for demographics, so an edit is pushed there first and committed
// locally only after it is accepted.
type PatientService struct {
	store    records.Store
	outbox   *outbox
	identity hl7.Identity
	hisName  string
	now      func() time.Time
}

// NewPatientService creates a patient service
func NewPatientService(store records.Store, senders *adapters.Factory, identity hl7.Identity, hisName string) *PatientService {
	return &PatientService{
		store:    store,
		outbox:   &outbox{senders: senders, store: store},
		identity: identity,
		hisName:  hisName,
		now:      time.Now,
	}
}

// GetPatient retrieves a patient record
func (s *PatientService) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	return s.store.GetPatient(ctx, id)
}

// UpdatePatient merges the patch over the stored record, pushes the update
// to the HIS and commits it locally after the HIS accepts.
func (s *PatientService) UpdatePatient(ctx context.Context, id string, patch models.PatientPatch) (*models.Patient, error) {
	patient, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	patch.Apply(patient)

	msg := hl7.BuildDemographicUpdate(s.identity, *patient, uuid.NewString(), s.now())
	if err := s.outbox.deliver(ctx, s.hisName, msg); err != nil {
		return nil, err
	}

	if err := s.store.UpdatePatient(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to commit patient update: %w", err)
	}
	return patient, nil
}
