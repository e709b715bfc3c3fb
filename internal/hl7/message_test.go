package hl7_test

import (
	"strings"
	"testing"

	"github.com/otcheredev/ris-hl7-service/internal/hl7"
)

func sampleAdmit() string {
	return strings.Join([]string{
		`MSH|^~\&|HIS|HOSPITAL|OPENRIS|HOSPITAL|20240101120000||ADT^A01^ADT_A01|MSG001|P|2.8`,
		`EVN||20240101120000`,
		`PID|1||12345||DOE^JOHN||19610615|M|||742 EVERGREEN^^SPRINGFIELD^OR^97477^USA||555-1234|john@example.org`,
		`PV1||I||R||||DR1^GREG^HOUSE`,
	}, "\r") + "\r"
}

func mustParse(t *testing.T, raw string) *hl7.Message {
	t.Helper()
	m, err := hl7.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := hl7.Parse(""); err == nil {
		t.Error("Expected error for empty message")
	}
	if _, err := hl7.Parse("NOTASEGMENT|foo"); err == nil {
		t.Error("Expected error for malformed segment name")
	}
}

func TestParseNormalizesLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(sampleAdmit(), "\r", "\r\n")
	m := mustParse(t, crlf)
	if got, _ := m.Type(); got != "ADT_A01" {
		t.Errorf("Type = %q, want ADT_A01", got)
	}
}

func TestExtractFields(t *testing.T) {
	m := mustParse(t, sampleAdmit())

	tests := []struct {
		name string
		path hl7.Path
		want string
	}{
		{"field separator itself", hl7.Path{Segment: "MSH", Field: 1}, "|"},
		{"encoding characters", hl7.Path{Segment: "MSH", Field: 2}, `^~\&`},
		{"sending application", hl7.Path{Segment: "MSH", Field: 3}, "HIS"},
		{"receiving application", hl7.Path{Segment: "MSH", Field: 5}, "OPENRIS"},
		{"control id", hl7.Path{Segment: "MSH", Field: 10}, "MSG001"},
		{"message structure", hl7.Path{Segment: "MSH", Field: 9, Component: 3}, "ADT_A01"},
		{"patient id", hl7.Path{Segment: "PID", Field: 3}, "12345"},
		{"surname component", hl7.Path{Segment: "PID", Field: 5, Component: 1}, "DOE"},
		{"name component", hl7.Path{Segment: "PID", Field: 5, Component: 2}, "JOHN"},
		{"city inside address", hl7.Path{Segment: "PID", Field: 11, Component: 3}, "SPRINGFIELD"},
		{"zero indices default to first", hl7.Path{Segment: "PID", Field: 5}, "DOE"},
		{"physician id", hl7.Path{Segment: "PV1", Field: 8, Component: 1}, "DR1"},
	}
	for _, tt := range tests {
		got, ok := m.Extract(tt.path)
		if !ok {
			t.Errorf("%s: absent, want %q", tt.name, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractAbsence(t *testing.T) {
	m := mustParse(t, sampleAdmit())

	absent := []struct {
		name string
		path hl7.Path
	}{
		{"missing segment", hl7.Path{Segment: "OBX", Field: 1}},
		{"second segment occurrence", hl7.Path{Segment: "PID", SegmentNum: 2, Field: 3}},
		{"field beyond segment", hl7.Path{Segment: "EVN", Field: 9}},
		{"component beyond field", hl7.Path{Segment: "PID", Field: 3, Component: 4}},
		{"deep addressing into MSH-1", hl7.Path{Segment: "MSH", Field: 1, Component: 2}},
		{"deep addressing into MSH-2", hl7.Path{Segment: "MSH", Field: 2, Component: 2}},
	}
	for _, tt := range absent {
		if got, ok := m.Extract(tt.path); ok {
			t.Errorf("%s: got %q, want absent", tt.name, got)
		}
	}
}

func TestExtractRepetitions(t *testing.T) {
	raw := `MSH|^~\&|HIS|HOSPITAL|OPENRIS|HOSPITAL|20240101120000||ADT^A01^ADT_A01|MSG002|P|2.8` + "\r" +
		`PID|1||111~222^MR||DOE^JANE` + "\r"
	m := mustParse(t, raw)

	if got, _ := m.Extract(hl7.Path{Segment: "PID", Field: 3}); got != "111" {
		t.Errorf("First repetition = %q, want 111", got)
	}
	if got, _ := m.Extract(hl7.Path{Segment: "PID", Field: 3, Repetition: 2}); got != "222" {
		t.Errorf("Second repetition = %q, want 222", got)
	}
	if got, _ := m.Extract(hl7.Path{Segment: "PID", Field: 3, Repetition: 2, Component: 2}); got != "MR" {
		t.Errorf("Component of second repetition = %q, want MR", got)
	}
	if _, ok := m.Extract(hl7.Path{Segment: "PID", Field: 3, Repetition: 3}); ok {
		t.Error("Third repetition should be absent")
	}
}

func TestStringRoundTrip(t *testing.T) {
	raw := sampleAdmit()
	m := mustParse(t, raw)
	if m.String() != raw {
		t.Errorf("Round trip mismatch:\n got %q\nwant %q", m.String(), raw)
	}
}

func TestHeaderAccessors(t *testing.T) {
	m := mustParse(t, sampleAdmit())

	if got, _ := m.ControlID(); got != "MSG001" {
		t.Errorf("ControlID = %q", got)
	}
	if got, _ := m.SendingApplication(); got != "HIS" {
		t.Errorf("SendingApplication = %q", got)
	}
	if got, _ := m.SendingFacility(); got != "HOSPITAL" {
		t.Errorf("SendingFacility = %q", got)
	}
	if got, _ := m.ReceivingApplication(); got != "OPENRIS" {
		t.Errorf("ReceivingApplication = %q", got)
	}
	if !m.HasSegment("PV1") || m.HasSegment("OBX") {
		t.Error("HasSegment gave wrong answers")
	}
}
