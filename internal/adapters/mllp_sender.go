package adapters

import (
	"context"
	"fmt"

	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/pkg/mllp"
)

// MLLPSender delivers messages over a pooled MLLP connection
type MLLPSender struct {
	pool *mllp.ConnectionPool
}

// NewMLLPSender creates a sender for an MLLP counterpart
func NewMLLPSender(config CounterpartConfig) *MLLPSender {
	return &MLLPSender{
		pool: mllp.NewConnectionPool(mllp.PoolConfig{
			Config: mllp.Config{
				Addr:    config.Addr,
				Timeout: config.Timeout,
			},
		}),
	}
}

// Send writes the message and parses the framed acknowledgment
func (s *MLLPSender) Send(ctx context.Context, msg *hl7.Message) (*hl7.Message, error) {
	conn, err := s.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	reply, err := conn.Send(ctx, msg.String())
	if err != nil {
		s.pool.Put(conn)
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	s.pool.Put(conn)

	ack, err := hl7.Parse(reply)
	if err != nil {
		return nil, fmt.Errorf("unparseable acknowledgment: %w", err)
	}
	return ack, nil
}

// Close closes the connection pool
func (s *MLLPSender) Close() error {
	return s.pool.Close()
}
