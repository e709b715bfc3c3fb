// Package dispatch interprets accepted inbound messages and translates
// protocol events into record-store operations.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// Result is the outcome of handling one inbound message
type Result int

const (
	// Applied means the event mutated local state (or was an idempotent replay)
	Applied Result = iota
	// NotApplicable means the message is not addressed to this service
	NotApplicable
	// Failed means the event could not be applied; no partial mutation remains
	Failed
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case NotApplicable:
		return "ignored"
	default:
		return "failed"
	}
}

// orderControl enumerates the ORC-1 codes the HIS may send
type orderControl string

const (
	controlNew          orderControl = "NW"
	controlCancel       orderControl = "CA"
	controlStatusNotify orderControl = "SN"
)

// Dispatcher routes inbound protocol events to their handlers
type Dispatcher struct {
	store       records.Store
	application string // receiving application name of this RIS
	now         func() time.Time
}

// New creates a dispatcher bound to a record store
func New(store records.Store, application string) *Dispatcher {
	return &Dispatcher{store: store, application: application, now: time.Now}
}

// Dispatch applies the event carried by an accepted message. Unrecognized
// message types fail; they are logged by the caller alongside the reject.
func (d *Dispatcher) Dispatch(ctx context.Context, m *hl7.Message) (Result, error) {
	code, _ := m.Type()
	switch hl7.ParseMessageType(code) {
	case hl7.TypeAdmit, hl7.TypeRegister:
		return d.handleAdmission(ctx, m)
	case hl7.TypeDemographicUpdate:
		return d.handleDemographicUpdate(ctx, m)
	case hl7.TypeOrderManagement:
		return d.handleOrderManagement(ctx, m)
	default:
		return Failed, fmt.Errorf("no handler for message type %q", code)
	}
}

// handleAdmission registers a new patient from an admission event. The
// demographic fields are individually optional; a redelivered admission for
// a known patient is an idempotent no-op.
func (d *Dispatcher) handleAdmission(ctx context.Context, m *hl7.Message) (Result, error) {
	if recv, _ := m.ReceivingApplication(); recv != d.application {
		return NotApplicable, nil
	}
	patientID := value(m, hl7.Path{Segment: "PID", Field: 3})
	if patientID == "" {
		return Failed, fmt.Errorf("admission without patient identifier")
	}

	if _, err := d.store.GetPatient(ctx, patientID); err == nil {
		return Applied, nil
	} else if !errors.Is(err, records.ErrNotFound) {
		return Failed, err
	}

	patient := &models.Patient{
		ID:          patientID,
		Name:        value(m, hl7.Path{Segment: "PID", Field: 5, Component: 1}),
		Surname:     value(m, hl7.Path{Segment: "PID", Field: 5, Component: 2}),
		DateOfBirth: wireDateToISO(value(m, hl7.Path{Segment: "PID", Field: 7})),
		Sex:         fallback(value(m, hl7.Path{Segment: "PID", Field: 8}), "U"),
		PhoneNumber: value(m, hl7.Path{Segment: "PID", Field: 13}),
		Email:       value(m, hl7.Path{Segment: "PID", Field: 14}),
		Address: models.Address{
			Street:     value(m, hl7.Path{Segment: "PID", Field: 11, Component: 1}),
			Complement: value(m, hl7.Path{Segment: "PID", Field: 11, Component: 2}),
			City:       value(m, hl7.Path{Segment: "PID", Field: 11, Component: 3}),
			ZipCode:    value(m, hl7.Path{Segment: "PID", Field: 11, Component: 5}),
			Country:    value(m, hl7.Path{Segment: "PID", Field: 11, Component: 6}),
		},
		ReferringPhysician: models.Physician{
			ID:      value(m, hl7.Path{Segment: "PV1", Field: 8, Component: 1}),
			Name:    value(m, hl7.Path{Segment: "PV1", Field: 8, Component: 2}),
			Surname: value(m, hl7.Path{Segment: "PV1", Field: 8, Component: 3}),
		},
	}
	if err := d.store.CreatePatient(ctx, patient); err != nil {
		return Failed, err
	}
	return Applied, nil
}

// handleDemographicUpdate merges the fields present in the message over the
// stored record. Absent fields retain their prior values (patch semantics,
// deliberately different from the admission-create defaults).
func (d *Dispatcher) handleDemographicUpdate(ctx context.Context, m *hl7.Message) (Result, error) {
	if recv, _ := m.ReceivingApplication(); recv != d.application {
		return NotApplicable, nil
	}
	patientID := value(m, hl7.Path{Segment: "PID", Field: 3})
	patient, err := d.store.GetPatient(ctx, patientID)
	if err != nil {
		return Failed, fmt.Errorf("demographic update for unknown patient %q: %w", patientID, err)
	}

	patch := models.PatientPatch{
		Name:             presentValue(m, hl7.Path{Segment: "PID", Field: 5, Component: 1}),
		Surname:          presentValue(m, hl7.Path{Segment: "PID", Field: 5, Component: 2}),
		DateOfBirth:      mapped(presentValue(m, hl7.Path{Segment: "PID", Field: 7}), wireDateToISO),
		Sex:              presentValue(m, hl7.Path{Segment: "PID", Field: 8}),
		PhoneNumber:      presentValue(m, hl7.Path{Segment: "PID", Field: 13}),
		Email:            presentValue(m, hl7.Path{Segment: "PID", Field: 14}),
		Street:           mapped(presentValue(m, hl7.Path{Segment: "PID", Field: 11, Component: 1}), strings.ToUpper),
		City:             mapped(presentValue(m, hl7.Path{Segment: "PID", Field: 11, Component: 3}), strings.ToUpper),
		ZipCode:          presentValue(m, hl7.Path{Segment: "PID", Field: 11, Component: 5}),
		Country:          mapped(presentValue(m, hl7.Path{Segment: "PID", Field: 11, Component: 6}), strings.ToUpper),
		PhysicianID:      presentValue(m, hl7.Path{Segment: "PV1", Field: 8, Component: 1}),
		PhysicianName:    mapped(presentValue(m, hl7.Path{Segment: "PV1", Field: 8, Component: 2}), strings.ToUpper),
		PhysicianSurname: mapped(presentValue(m, hl7.Path{Segment: "PV1", Field: 8, Component: 3}), strings.ToUpper),
	}
	patch.Apply(patient)

	if err := d.store.UpdatePatient(ctx, patient); err != nil {
		return Failed, err
	}
	return Applied, nil
}

// handleOrderManagement dispatches on the ORC-1 order control code. The HIS
// may place a new order, cancel one, or communicate the placer number for
// an order that originated here.
func (d *Dispatcher) handleOrderManagement(ctx context.Context, m *hl7.Message) (Result, error) {
	code := orderControl(value(m, hl7.Path{Segment: "ORC", Field: 1}))
	switch code {
	case controlNew:
		return d.createOrder(ctx, m)
	case controlCancel:
		return d.cancelOrder(ctx, m)
	case controlStatusNotify:
		return d.assignPlacer(ctx, m)
	default:
		log.Warn().Str("order_control", string(code)).Msg("Unhandled order control code")
		return Failed, fmt.Errorf("unhandled order control code %q", code)
	}
}

func (d *Dispatcher) createOrder(ctx context.Context, m *hl7.Message) (Result, error) {
	patient, err := d.store.GetPatient(ctx, value(m, hl7.Path{Segment: "PID", Field: 3}))
	if err != nil {
		return Failed, fmt.Errorf("order for unknown patient: %w", err)
	}
	procedure, err := d.store.GetProcedure(ctx, value(m, hl7.Path{Segment: "OBR", Field: 4, Component: 1}))
	if err != nil {
		return Failed, fmt.Errorf("order for unknown procedure: %w", err)
	}

	order := &models.Order{
		PlacerID:      value(m, hl7.Path{Segment: "ORC", Field: 2}),
		PatientID:     patient.ID,
		ProcedureID:   procedure.ID,
		ProcedureName: procedure.Name,
		Modality:      procedure.Modality,
		PlacerPhysician: models.Physician{
			ID:      value(m, hl7.Path{Segment: "ORC", Field: 10, Component: 1}),
			Name:    strings.ToUpper(value(m, hl7.Path{Segment: "ORC", Field: 10, Component: 2})),
			Surname: strings.ToUpper(value(m, hl7.Path{Segment: "ORC", Field: 10, Component: 3})),
		},
		Date:      d.now().Format("2006-01-02"),
		StartTime: "00:00",
		EndTime:   "00:00",
		Note:      value(m, hl7.Path{Segment: "OBR", Field: 13}),
		Status:    models.OrderUnscheduled,
		IsActive:  true,
	}
	if err := d.store.CreateOrder(ctx, order); err != nil {
		return Failed, err
	}
	return Applied, nil
}

func (d *Dispatcher) cancelOrder(ctx context.Context, m *hl7.Message) (Result, error) {
	fillerID := value(m, hl7.Path{Segment: "ORC", Field: 3})
	order, err := d.store.GetOrder(ctx, fillerID)
	if err != nil {
		return Failed, fmt.Errorf("cancel for unknown order %q: %w", fillerID, err)
	}
	if order.Status.IsTerminal() {
		return Failed, fmt.Errorf("order %s is %s and cannot be cancelled", order.ID, order.Status)
	}

	order.Status = models.OrderCancelled
	order.IsActive = false
	if err := d.store.UpdateOrder(ctx, order); err != nil {
		return Failed, err
	}
	if err := d.store.DeleteOrder(ctx, order.ID); err != nil {
		return Failed, err
	}
	return Applied, nil
}

func (d *Dispatcher) assignPlacer(ctx context.Context, m *hl7.Message) (Result, error) {
	fillerID := value(m, hl7.Path{Segment: "ORC", Field: 3})
	order, err := d.store.GetOrder(ctx, fillerID)
	if err != nil {
		return Failed, fmt.Errorf("placer assignment for unknown order %q: %w", fillerID, err)
	}
	if order.Status.IsTerminal() {
		return Failed, fmt.Errorf("order %s is %s and accepts no further transition", order.ID, order.Status)
	}

	order.PlacerID = value(m, hl7.Path{Segment: "ORC", Field: 2})
	if err := d.store.UpdateOrder(ctx, order); err != nil {
		return Failed, err
	}
	return Applied, nil
}

// value reads a path, treating absent as empty
func value(m *hl7.Message, p hl7.Path) string {
	v, _ := m.Extract(p)
	return v
}

// presentValue reads a path into an optional: nil when the value is absent
// or empty, so patch fields keep their stored values.
func presentValue(m *hl7.Message, p hl7.Path) *string {
	v, ok := m.Extract(p)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func mapped(v *string, f func(string) string) *string {
	if v == nil {
		return nil
	}
	out := f(*v)
	return &out
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// wireDateToISO turns "19610615" into "1961-06-15"; shorter values pass
// through unchanged.
func wireDateToISO(d string) string {
	if len(d) < 8 {
		return d
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:8]
}
