package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/otcheredev/ris-hl7-service/internal/hl7"
)

// HTTPSender delivers messages to a counterpart exposing an HTTP inbox,
// as the modality worklist service does.
type HTTPSender struct {
	url    string
	client *http.Client
}

// NewHTTPSender creates a sender for an HTTP counterpart
func NewHTTPSender(config CounterpartConfig) *HTTPSender {
	return &HTTPSender{
		url: strings.TrimRight(config.Addr, "/") + "/hl7",
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Send posts the wire message and parses the synchronous acknowledgment
func (s *HTTPSender) Send(ctx context.Context, msg *hl7.Message) (*hl7.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(msg.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/hl7")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach counterpart: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("counterpart returned status %d", resp.StatusCode)
	}

	ack, err := hl7.Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("unparseable acknowledgment: %w", err)
	}
	return ack, nil
}

// Close releases idle connections
func (s *HTTPSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
