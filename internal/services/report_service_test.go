package services_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
	"github.com/otcheredev/ris-hl7-service/internal/services"
)

// hl7Counterpart is an HTTP inbox that records every message it receives
// and answers with a fixed MSA code.
type hl7Counterpart struct {
	srv *httptest.Server

	mu       sync.Mutex
	received []string
}

func newHL7Counterpart(t *testing.T, name, ackCode string) *hl7Counterpart {
	t.Helper()
	c := &hl7Counterpart{}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.received = append(c.received, string(body))
		c.mu.Unlock()

		ack := "MSH|^~\\&|" + name + "|HOSPITAL|OPENRIS|HOSPITAL|20240101120000||ACK^R01^ACK|ACK-1|P|2.8\r" +
			"MSA|" + ackCode + "|X\r"
		w.Write([]byte(ack))
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *hl7Counterpart) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.received...)
}

func reportFixture(t *testing.T, modality, his *hl7Counterpart) (*services.ReportService, *records.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	store := records.NewMemoryStore()
	if err := store.CreatePatient(ctx, &models.Patient{ID: "pat-1", Name: "JOHN", Surname: "DOE"}); err != nil {
		t.Fatal(err)
	}
	err := store.CreateOrder(ctx, &models.Order{
		ID:            "ord-1",
		PatientID:     "pat-1",
		ProcedureID:   "proc-ct",
		ProcedureName: "CT Head",
		Status:        models.OrderInProgress,
		Date:          "2024-03-15",
		StartTime:     "09:00",
		EndTime:       "10:00",
		ExecutedStart: "09:05",
		ExecutedEnd:   "09:40",
		StudyID:       "2.25.1",
		IsActive:      true,
	})
	if err != nil {
		t.Fatal(err)
	}

	factory := adapters.NewFactory(
		adapters.CounterpartConfig{Name: "MOD", Type: adapters.SenderHTTP, Addr: modality.srv.URL, Timeout: 5 * time.Second},
		adapters.CounterpartConfig{Name: "HIS", Type: adapters.SenderHTTP, Addr: his.srv.URL, Timeout: 5 * time.Second},
	)
	t.Cleanup(func() { factory.CloseAll() })

	modalityIdentity := hl7.Identity{Application: "OPENRIS", Facility: "HOSPITAL", Receiver: "MOD", ReceiverFacility: "HOSPITAL"}
	hisIdentity := hl7.Identity{Application: "OPENRIS", Facility: "HOSPITAL", Receiver: "HIS", ReceiverFacility: "HOSPITAL"}
	annotator := services.NewAnnotationClient("", nil)

	svc := services.NewReportService(store, annotator, factory, modalityIdentity, "MOD", hisIdentity, "HIS")
	return svc, store
}

func TestCreateReportRoutesResultToModality(t *testing.T) {
	modality := newHL7Counterpart(t, "MOD", "AA")
	his := newHL7Counterpart(t, "HIS", "AA")
	svc, store := reportFixture(t, modality, his)
	ctx := context.Background()

	report, err := svc.CreateReport(ctx, "ord-1", "rad-9", services.ReportRequest{
		Findings:        "No acute abnormality",
		Impressions:     "Normal study",
		Recommendations: "None",
	})
	if err != nil {
		t.Fatalf("CreateReport failed: %v", err)
	}

	got := modality.messages()
	if len(got) != 1 {
		t.Fatalf("Modality received %d messages, want 1", len(got))
	}
	result, err := hl7.Parse(got[0])
	if err != nil {
		t.Fatalf("Unparseable result message: %v", err)
	}
	if msgType, _ := result.Type(); msgType != "ORU_R01" {
		t.Errorf("Modality message type = %s, want ORU_R01", msgType)
	}
	if receiver, _ := result.Extract(hl7.Path{Segment: "MSH", Field: 5}); receiver != "MOD" {
		t.Errorf("MSH-5 = %q, want the modality", receiver)
	}

	confirms := his.messages()
	if len(confirms) != 1 {
		t.Fatalf("HIS received %d messages, want 1", len(confirms))
	}
	confirm, err := hl7.Parse(confirms[0])
	if err != nil {
		t.Fatalf("Unparseable confirm message: %v", err)
	}
	if msgType, _ := confirm.Type(); msgType != "ORM_O01" {
		t.Errorf("HIS message type = %s, want ORM_O01", msgType)
	}
	if receiver, _ := confirm.Extract(hl7.Path{Segment: "MSH", Field: 5}); receiver != "HIS" {
		t.Errorf("MSH-5 = %q, want the HIS", receiver)
	}
	if code, _ := confirm.Extract(hl7.Path{Segment: "ORC", Field: 1}); code != "SC" {
		t.Errorf("ORC-1 = %q, want SC", code)
	}
	if status, _ := confirm.Extract(hl7.Path{Segment: "ORC", Field: 5}); status != "CM" {
		t.Errorf("ORC-5 = %q, want completion code CM", status)
	}

	stored, err := store.GetReportByOrder(ctx, "ord-1")
	if err != nil {
		t.Fatalf("Report not persisted: %v", err)
	}
	if stored.ID != report.ID {
		t.Errorf("Stored report %s, returned %s", stored.ID, report.ID)
	}
	order, _ := store.GetOrder(ctx, "ord-1")
	if order.Status != models.OrderFinished || order.IsActive {
		t.Errorf("Order = %s/active=%v, want FINISHED and inactive", order.Status, order.IsActive)
	}
}

func TestCreateReportModalityRejectionLeavesStateUntouched(t *testing.T) {
	modality := newHL7Counterpart(t, "MOD", "AR")
	his := newHL7Counterpart(t, "HIS", "AA")
	svc, store := reportFixture(t, modality, his)
	ctx := context.Background()

	_, err := svc.CreateReport(ctx, "ord-1", "rad-9", services.ReportRequest{Findings: "f"})
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}

	if len(his.messages()) != 0 {
		t.Error("HIS must not be notified when the modality rejects the result")
	}
	if _, err := store.GetReportByOrder(ctx, "ord-1"); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("Report lookup = %v, want not found", err)
	}
	order, _ := store.GetOrder(ctx, "ord-1")
	if order.Status != models.OrderInProgress {
		t.Errorf("Order = %s, want IN_PROGRESS untouched", order.Status)
	}
}
