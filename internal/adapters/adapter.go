// Package adapters delivers outbound interchange messages to counterpart
// systems. The HIS listens on an MLLP socket; the modality worklist
// service accepts messages over HTTP. Both reply synchronously with an
// acknowledgment message.
package adapters

import (
	"context"
	"time"

	"github.com/otcheredev/ris-hl7-service/internal/hl7"
)

// SenderType selects the transport for a counterpart
type SenderType string

const (
	SenderMLLP SenderType = "mllp"
	SenderHTTP SenderType = "http"
)

// CounterpartConfig describes one counterpart endpoint
type CounterpartConfig struct {
	Name    string // logical name, e.g. the counterpart application
	Type    SenderType
	Addr    string // host:port for MLLP, base URL for HTTP
	Timeout time.Duration
}

// MessageSender delivers one message and returns the counterpart's
// acknowledgment. Implementations impose the configured timeout and map
// it to an error; the caller treats any error as a transport failure that
// leaves local state unchanged.
type MessageSender interface {
	Send(ctx context.Context, msg *hl7.Message) (*hl7.Message, error)
	Close() error
}
