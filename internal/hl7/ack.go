package hl7

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AckCode is the acknowledgment code carried in MSA-1
type AckCode string

const (
	AckAccept           AckCode = "AA" // accept
	AckApplicationError AckCode = "AE" // reject, application error
	AckReject           AckCode = "AR" // reject
)

// MessageType enumerates the inbound message structures this service
// handles. Anything else falls through to the default policy arm.
type MessageType string

const (
	TypeAdmit             MessageType = "ADT_A01"
	TypeRegister          MessageType = "ADT_A04"
	TypeDemographicUpdate MessageType = "ADT_A08"
	TypeOrderManagement   MessageType = "ORM_O01"
	TypeUnknown           MessageType = ""
)

// ParseMessageType maps a message structure code onto the enum
func ParseMessageType(code string) MessageType {
	switch MessageType(code) {
	case TypeAdmit, TypeRegister, TypeDemographicUpdate, TypeOrderManagement:
		return MessageType(code)
	default:
		return TypeUnknown
	}
}

// AckPolicy decides the acknowledgment for one inbound message type
type AckPolicy interface {
	ValidateAndAck(m *Message, v *PatternValidator, facility, application string) (*Message, AckCode)
}

// standardPolicy implements the shared decision table: a structurally valid
// message addressed to this application is accepted; a valid message
// addressed elsewhere is one of our own transmissions looped back and is
// rejected to stop self-processing; an invalid message gets the policy's
// reject code.
type standardPolicy struct {
	invalidCode AckCode
}

func (p standardPolicy) ValidateAndAck(m *Message, v *PatternValidator, facility, application string) (*Message, AckCode) {
	if !v.Validate(m) {
		return BuildAck(m, p.invalidCode, facility, application, uuid.NewString(), time.Now()), p.invalidCode
	}
	if recv, _ := m.ReceivingApplication(); recv != application {
		return BuildAck(m, AckReject, facility, application, uuid.NewString(), time.Now()), AckReject
	}
	return BuildAck(m, AckAccept, facility, application, uuid.NewString(), time.Now()), AckAccept
}

// policies is the per-message-type acknowledgment table. Institutions
// extend this by registering stricter policies per type.
var policies = map[MessageType]AckPolicy{
	TypeAdmit:             standardPolicy{invalidCode: AckReject},
	TypeRegister:          standardPolicy{invalidCode: AckReject},
	TypeDemographicUpdate: standardPolicy{invalidCode: AckReject},
	TypeOrderManagement:   standardPolicy{invalidCode: AckReject},
}

// Acknowledge validates the message and produces its acknowledgment. The
// default arm handles unrecognized message types: logged and rejected with
// an application error, never silently dropped.
func Acknowledge(m *Message, v *PatternValidator, facility, application string) (*Message, AckCode) {
	code, _ := m.Type()
	policy, ok := policies[ParseMessageType(code)]
	if !ok {
		log.Warn().Str("message_type", code).Msg("Unhandled message type, rejecting")
		return BuildAck(m, AckApplicationError, facility, application, uuid.NewString(), time.Now()), AckApplicationError
	}
	return policy.ValidateAndAck(m, v, facility, application)
}

// BuildAck constructs the acknowledgment for a triggering message. The ack
// carries a fresh message identifier, the acknowledging facility and
// application, and references the trigger's control identifier in MSA-2.
func BuildAck(m *Message, code AckCode, facility, application, msgID string, ts time.Time) *Message {
	sendingApp, _ := m.SendingApplication()
	sendingFacility, _ := m.SendingFacility()
	trigger, _ := m.Extract(Path{Segment: "MSH", Field: 9, Component: 2})
	controlID, _ := m.ControlID()

	ack := &Message{}
	ack.append("MSH",
		encodingChars,
		application,
		facility,
		sendingApp,
		sendingFacility,
		ts.Format(wireTimestamp),
		"",
		"ACK^"+trigger+"^ACK",
		msgID,
		"P",
		"2.8",
	)
	ack.append("MSA", string(code), controlID)
	return ack
}
