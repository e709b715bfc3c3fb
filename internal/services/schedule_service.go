package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/metrics"
	"github.com/otcheredev/ris-hl7-service/internal/records"
	"github.com/otcheredev/ris-hl7-service/internal/scheduling"
)

// ScheduleService computes bookable slots for orders and commits bookings.
// A booking is confirmed to the HIS with an order status-change message
// before it is committed locally, so a transport failure leaves no
// half-booked order behind.
type ScheduleService struct {
	store     records.Store
	scheduler *scheduling.Scheduler
	outbox    *outbox
	identity  hl7.Identity
	hisName   string
}

// NewScheduleService creates a schedule service
func NewScheduleService(store records.Store, scheduler *scheduling.Scheduler, senders *adapters.Factory, identity hl7.Identity, hisName string) *ScheduleService {
	return &ScheduleService{
		store:     store,
		scheduler: scheduler,
		outbox:    &outbox{senders: senders, store: store},
		identity:  identity,
		hisName:   hisName,
	}
}

// GetPossibleSchedules returns the bookable (station, slot) proposals for
// an order, over stations matching the procedure's modality.
func (s *ScheduleService) GetPossibleSchedules(ctx context.Context, orderID string) ([]scheduling.Proposal, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is %s", ErrWrongState, order.Status)
	}

	procedure, err := s.store.GetProcedure(ctx, order.ProcedureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load procedure: %w", err)
	}
	stations, err := s.store.ActiveStations(ctx, procedure.Modality)
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}
	aets := make([]string, 0, len(stations))
	for _, st := range stations {
		aets = append(aets, st.AET)
	}

	proposals, err := s.scheduler.GetPossibleSchedules(ctx, procedure.DurationMinutes, order.PatientID, aets)
	if err != nil {
		metrics.SchedulingRequests.WithLabelValues("slots", "error").Inc()
		return nil, err
	}
	metrics.SchedulingRequests.WithLabelValues("slots", "ok").Inc()
	return proposals, nil
}

// Book schedules an order into the proposed slot. The HIS is notified with
// an ORM status change and must accept it before the booking commits.
func (s *ScheduleService) Book(ctx context.Context, orderID string, proposal scheduling.Proposal) (*scheduling.Proposal, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	patient, err := s.store.GetPatient(ctx, order.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	confirm := func(ctx context.Context) error {
		booked := *order
		booked.Date = proposal.Slot.Date
		booked.StartTime = proposal.Slot.StartTime
		booked.EndTime = proposal.Slot.EndTime
		booked.StationAET = proposal.Station
		msg := hl7.BuildOrderTransaction(s.identity, booked, *patient, "SC", "SC", uuid.NewString(), time.Now())
		return s.outbox.deliver(ctx, s.hisName, msg)
	}

	if err := s.scheduler.Book(ctx, order, proposal, confirm); err != nil {
		if errors.Is(err, scheduling.ErrSlotTaken) {
			metrics.BookingConflicts.Inc()
			metrics.SchedulingRequests.WithLabelValues("book", "conflict").Inc()
		} else {
			metrics.SchedulingRequests.WithLabelValues("book", "error").Inc()
		}
		return nil, err
	}

	metrics.SchedulingRequests.WithLabelValues("book", "ok").Inc()
	return &proposal, nil
}
