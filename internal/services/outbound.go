package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/metrics"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// ErrRejected is returned when a counterpart acknowledges an outbound
// message with anything other than an accept.
var ErrRejected = errors.New("counterpart rejected message")

// outbox delivers outbound messages and records the exchange. Every
// service that talks to a counterpart goes through it.
type outbox struct {
	senders *adapters.Factory
	store   records.Store
}

// deliver sends a message to the named counterpart and requires an AA
// acknowledgment. The exchange is logged whatever the outcome; a non-AA
// ack or a transport failure leaves the caller's state untouched.
func (o *outbox) deliver(ctx context.Context, counterpart string, msg *hl7.Message) error {
	msgType, _ := msg.Type()
	entry := &models.MessageLog{
		Direction:   models.DirectionOutbound,
		MessageType: msgType,
		Counterpart: counterpart,
		Payload:     msg.String(),
	}
	if controlID, ok := msg.ControlID(); ok {
		entry.ControlID = controlID
	}

	sender, err := o.senders.Get(counterpart)
	if err != nil {
		entry.Outcome = "failed"
		o.log(ctx, entry)
		return fmt.Errorf("no sender for counterpart %s: %w", counterpart, err)
	}

	metrics.OutboundMessages.WithLabelValues(msgType, counterpart).Inc()

	ack, err := sender.Send(ctx, msg)
	if err != nil {
		entry.Outcome = "failed"
		o.log(ctx, entry)
		return fmt.Errorf("delivery to %s failed: %w", counterpart, err)
	}

	code, _ := ack.Extract(hl7.Path{Segment: "MSA", Field: 1})
	entry.AckCode = code
	if code != string(hl7.AckAccept) {
		entry.Outcome = "failed"
		o.log(ctx, entry)
		return fmt.Errorf("%w: %s answered %s", ErrRejected, counterpart, code)
	}

	entry.Outcome = "applied"
	o.log(ctx, entry)
	return nil
}

func (o *outbox) log(ctx context.Context, entry *models.MessageLog) {
	if err := o.store.LogMessage(ctx, entry); err != nil {
		log.Error().Err(err).Str("counterpart", entry.Counterpart).Msg("Failed to log outbound message")
	}
}
