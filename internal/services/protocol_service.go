package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/dispatch"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/metrics"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// ProtocolService runs the inbound pipeline: parse, validate, acknowledge,
// dispatch, log. The acknowledgment reflects validation and addressing
// only; a dispatch failure after acceptance is recorded in the message log
// and surfaced through metrics, not in the ack.
type ProtocolService struct {
	store       records.Store
	validator   *hl7.PatternValidator
	dispatcher  *dispatch.Dispatcher
	facility    string
	application string
}

// NewProtocolService creates the inbound pipeline
func NewProtocolService(store records.Store, validator *hl7.PatternValidator, dispatcher *dispatch.Dispatcher, facility, application string) *ProtocolService {
	return &ProtocolService{
		store:       store,
		validator:   validator,
		dispatcher:  dispatcher,
		facility:    facility,
		application: application,
	}
}

// HandleInbound processes one raw wire message and returns the wire-encoded
// acknowledgment. Only an unparseable payload yields an error; every parsed
// message gets an acknowledgment.
func (s *ProtocolService) HandleInbound(ctx context.Context, raw string) (string, error) {
	msg, err := hl7.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	msgType, _ := msg.Type()
	controlID, _ := msg.ControlID()
	sender, _ := msg.SendingApplication()
	metrics.InboundMessages.WithLabelValues(msgType).Inc()

	ack, code := hl7.Acknowledge(msg, s.validator, s.facility, s.application)
	metrics.Acknowledgments.WithLabelValues(string(code)).Inc()

	outcome := dispatch.NotApplicable.String()
	if code == hl7.AckAccept {
		result, dispatchErr := s.dispatcher.Dispatch(ctx, msg)
		outcome = result.String()
		metrics.DispatchResults.WithLabelValues(msgType, outcome).Inc()
		if dispatchErr != nil {
			log.Warn().
				Err(dispatchErr).
				Str("message_type", msgType).
				Str("control_id", controlID).
				Msg("Dispatch failed for accepted message")
		}
	}

	entry := &models.MessageLog{
		Direction:   models.DirectionInbound,
		MessageType: msgType,
		ControlID:   controlID,
		Counterpart: sender,
		AckCode:     string(code),
		Outcome:     outcome,
		Payload:     raw,
	}
	if err := s.store.LogMessage(ctx, entry); err != nil {
		log.Error().Err(err).Str("control_id", controlID).Msg("Failed to log inbound message")
	}

	return ack.String(), nil
}
