package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/otcheredev/ris-hl7-service/internal/models"
)

// AnnotationClient extracts structured observations from report text via
// the external annotation service. It is best effort: callers degrade to
// an empty annotation list when the service is unreachable.
type AnnotationClient struct {
	url    string
	client *http.Client
}

// NewAnnotationClient creates a client; an empty URL disables annotation
func NewAnnotationClient(url string, client *http.Client) *AnnotationClient {
	return &AnnotationClient{url: url, client: client}
}

type annotationRequest struct {
	Text string `json:"text"`
}

type annotationResponse struct {
	Annotations []models.Annotation `json:"annotations"`
}

// Annotate extracts annotations from the findings text
func (c *AnnotationClient) Annotate(ctx context.Context, text string) ([]models.Annotation, error) {
	if c.url == "" {
		return nil, nil
	}

	body, err := json.Marshal(annotationRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build annotation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotation service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("annotation service returned status %d", resp.StatusCode)
	}

	var out annotationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode annotation response: %w", err)
	}
	return out.Annotations, nil
}
