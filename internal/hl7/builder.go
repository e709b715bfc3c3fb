package hl7

import (
	"strings"
	"time"

	"github.com/otcheredev/ris-hl7-service/internal/models"
)

// Wire timestamp layouts
const (
	wireTimestamp = "20060102150405"
)

// Identity names the two parties of an outbound message
type Identity struct {
	Application      string // sending application, this RIS
	Facility         string // sending facility
	Receiver         string // receiving application (HIS or modality AET)
	ReceiverFacility string
}

func (m *Message) append(name string, fields ...string) {
	m.segments = append(m.segments, Segment{Name: name, fields: fields})
}

func (m *Message) header(id Identity, messageType, msgID string, ts time.Time) {
	m.append("MSH",
		encodingChars,
		id.Application,
		id.Facility,
		id.Receiver,
		id.ReceiverFacility,
		ts.Format(wireTimestamp),
		"",
		messageType,
		msgID,
		"P",
		"2.8",
	)
}

// compactDate turns "2006-01-02" into "20060102"
func compactDate(d string) string {
	return strings.ReplaceAll(d, "-", "")
}

// compactTime turns "15:04" into "1504"
func compactTime(t string) string {
	return strings.ReplaceAll(t, ":", "")
}

func orEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// patientCX renders the patient identifier with its assigning-authority
// components as expected by the counterpart systems.
func patientCX(p models.Patient, facility string) string {
	return p.ID + "^5^M11^ADT1^MR^" + facility
}

func shortPID(p models.Patient, facility string) []string {
	return []string{
		"1", "",
		patientCX(p, facility),
		"",
		orEmpty(p.Name, "UNKNOWN") + "^" + orEmpty(p.Surname, "UNKNOWN"),
	}
}

func fullPID(p models.Patient, facility string) []string {
	address := p.Address.Street + "^^" + p.Address.City + "^" + p.Address.Province + "^" +
		p.Address.ZipCode + "^" + p.Address.Country
	return []string{
		"1", "",
		patientCX(p, facility),
		"",
		orEmpty(p.Name, "UNKNOWN") + "^" + orEmpty(p.Surname, "UNKNOWN"),
		"",
		compactDate(p.DateOfBirth),
		orEmpty(p.Sex, "U"),
		"", "",
		address,
		"",
		p.PhoneNumber,
		p.Email,
		"",
	}
}

func physicianXCN(phys models.Physician) string {
	return phys.ID + "^" + phys.Name + "^" + phys.Surname
}

// BuildDemographicUpdate constructs the ADT^A08 message pushed to the HIS
// when patient demographics change locally.
func BuildDemographicUpdate(id Identity, p models.Patient, msgID string, ts time.Time) *Message {
	m := &Message{}
	m.header(id, "ADT^A08^ADT_A08", msgID, ts)
	m.append("EVN", "", ts.Format(wireTimestamp), "", "")
	m.append("PID", fullPID(p, id.Facility)...)
	m.append("PV1",
		"", "I", "", "R", "", "", "",
		physicianXCN(p.ReferringPhysician),
		"", "", "", "", "", "", "",
	)
	return m
}

// BuildOrderTransaction constructs an ORM^O01 order message. The control
// code is one of NW (new), CA/OC (cancel) or SC (status change); the
// secondary status distinguishes schedule-confirm from completion-confirm.
func BuildOrderTransaction(id Identity, o models.Order, p models.Patient, controlCode, secondaryStatus, msgID string, ts time.Time) *Message {
	window := "^^^" +
		compactDate(o.Date) + compactTime(o.StartTime) + "^" +
		compactDate(o.Date) + compactTime(o.EndTime)

	m := &Message{}
	m.header(id, "ORM^O01^ORM_O01", msgID, ts)
	m.append("PID", shortPID(p, id.Facility)...)
	m.append("ORC",
		controlCode,
		o.PlacerID,
		o.ID,
		"",
		secondaryStatus,
		"",
		window,
		"", "",
		physicianXCN(o.PlacerPhysician),
	)
	m.append("OBR",
		"1",
		o.PlacerID,
		o.ID,
		o.ProcedureID+"^"+o.ProcedureName,
	)
	return m
}

// BuildWorklistRequest constructs the OMI^O23 message asking the modality
// service to create a worklist entry for a scheduled order.
func BuildWorklistRequest(id Identity, p models.Patient, o models.Order, accessionNumber, studyID, msgID string, ts time.Time) *Message {
	m := &Message{}
	m.header(id, "OMI^O23^OMI_O23", msgID, ts)
	m.append("PID", fullPID(p, id.Facility)...)
	m.append("ORC", "NW", o.PlacerID, o.ID, "", "SC")
	m.append("OBR",
		"", "", "",
		o.ProcedureID+"^"+o.ProcedureName,
		"",
		compactDate(o.Date)+"^"+compactTime(o.StartTime),
	)
	m.append("IPC",
		accessionNumber,
		o.ProcedureID,
		studyID,
		o.ProcedureID,
		o.Modality,
		"", "", "",
		o.StationAET,
	)
	return m
}

// BuildResultReport constructs the ORU^R01 result message for a finalized
// report: study and report references plus the three narrative sections,
// all marked final.
func BuildResultReport(id Identity, rep models.Report, o models.Order, p models.Patient, msgID string, ts time.Time) *Message {
	execStart := compactDate(o.Date) + compactTime(o.ExecutedStart)
	execEnd := compactDate(o.Date) + compactTime(o.ExecutedEnd)
	finalized := rep.CreatedAt.Format(wireTimestamp)

	m := &Message{}
	m.header(id, "ORU^R01^ORU_R01", msgID, ts)
	m.append("PID", shortPID(p, id.Facility)...)
	m.append("OBR",
		"",
		o.PlacerID,
		o.ID,
		o.ProcedureID+"^"+o.ProcedureName+"^SNM",
		"", "",
		execStart,
		execEnd,
		"", "", "", "", "", "", "", "", "", "", "", "", "",
		finalized,
		"", "",
		"F",
	)
	m.append("OBX", "1", "RP", "study-id", "", o.StudyID, "", "", "", "", "", "F")
	m.append("OBX", "2", "RP", "report-id", "", rep.ID, "", "", "", "", "", "F")
	m.append("OBX", "3", "TX", "report-findings", "", rep.Findings, "", "", "", "", "", "F")
	m.append("OBX", "4", "TX", "report-impressions", "", rep.Impressions, "", "", "", "", "", "F")
	m.append("OBX", "5", "TX", "report-recommendations", "", rep.Recommendations, "", "", "", "", "", "F")
	return m
}
