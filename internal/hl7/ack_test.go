package hl7_test

import (
	"testing"
	"time"

	"github.com/otcheredev/ris-hl7-service/internal/hl7"
)

func permissiveValidator(t *testing.T) *hl7.PatternValidator {
	t.Helper()
	v, err := hl7.NewPatternValidator([]byte(`{"messages": {}}`), []byte(`{"segments": {}}`))
	if err != nil {
		t.Fatalf("NewPatternValidator failed: %v", err)
	}
	return v
}

func TestAcknowledgeAccepts(t *testing.T) {
	m := mustParse(t, sampleAdmit())
	ack, code := hl7.Acknowledge(m, permissiveValidator(t), "HOSPITAL", "OPENRIS")
	if code != hl7.AckAccept {
		t.Fatalf("code = %s, want AA", code)
	}
	if got, _ := ack.Extract(hl7.Path{Segment: "MSA", Field: 1}); got != "AA" {
		t.Errorf("MSA-1 = %q, want AA", got)
	}
	if got, _ := ack.Extract(hl7.Path{Segment: "MSA", Field: 2}); got != "MSG001" {
		t.Errorf("MSA-2 = %q, want the trigger control id", got)
	}
}

func TestAcknowledgeRejectsLoopback(t *testing.T) {
	// A message addressed to another application is one of our own
	// transmissions coming back around.
	raw := `MSH|^~\&|OPENRIS|HOSPITAL|SOMEWHERE_ELSE|HOSPITAL|20240101120000||ADT^A01^ADT_A01|MSG003|P|2.8` + "\r" +
		`PID|1||12345` + "\r"
	_, code := hl7.Acknowledge(mustParse(t, raw), permissiveValidator(t), "HOSPITAL", "OPENRIS")
	if code != hl7.AckReject {
		t.Errorf("code = %s, want AR", code)
	}
}

func TestAcknowledgeRejectsInvalid(t *testing.T) {
	strict := testValidator(t)
	// PID missing entirely, but the type is configured as requiring it
	raw := `MSH|^~\&|HIS|HOSPITAL|OPENRIS|HOSPITAL|20240101120000||ADT^A01^ADT_A01|MSG004|P|2.8` + "\r"
	_, code := hl7.Acknowledge(mustParse(t, raw), strict, "HOSPITAL", "OPENRIS")
	if code != hl7.AckReject {
		t.Errorf("code = %s, want AR", code)
	}
}

func TestAcknowledgeUnknownType(t *testing.T) {
	raw := `MSH|^~\&|HIS|HOSPITAL|OPENRIS|HOSPITAL|20240101120000||SIU^S12^SIU_S12|MSG005|P|2.8` + "\r"
	_, code := hl7.Acknowledge(mustParse(t, raw), permissiveValidator(t), "HOSPITAL", "OPENRIS")
	if code != hl7.AckApplicationError {
		t.Errorf("code = %s, want AE", code)
	}
}

func TestBuildAckSwapsParties(t *testing.T) {
	m := mustParse(t, sampleAdmit())
	ack := hl7.BuildAck(m, hl7.AckAccept, "HOSPITAL", "OPENRIS", "ACK001", time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC))

	if got, _ := ack.SendingApplication(); got != "OPENRIS" {
		t.Errorf("ack sender = %q, want OPENRIS", got)
	}
	if got, _ := ack.ReceivingApplication(); got != "HIS" {
		t.Errorf("ack receiver = %q, want HIS", got)
	}
	if got, _ := ack.Extract(hl7.Path{Segment: "MSH", Field: 9}); got != "ACK" {
		t.Errorf("ack MSH-9.1 = %q, want ACK", got)
	}
	if got, _ := ack.Extract(hl7.Path{Segment: "MSH", Field: 9, Component: 2}); got != "A01" {
		t.Errorf("ack trigger = %q, want A01", got)
	}
	if got, _ := ack.ControlID(); got != "ACK001" {
		t.Errorf("ack control id = %q", got)
	}
}
