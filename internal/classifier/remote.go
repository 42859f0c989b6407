package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/miradorstack/mirador-netlog/internal/models"
)

// Remote asks an external model service for a prediction. The record is POSTed as a JSON
// object and the service answers {"prediction": "normal"|"abnormal"}.
type Remote struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemote constructs a Remote classifier.
func NewRemote(endpoint string, timeout time.Duration) (*Remote, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("remote classifier endpoint not configured")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Classify implements Classifier.
func (c *Remote) Classify(ctx context.Context, rec models.LogRecord) (models.Label, error) {
	var response struct {
		Prediction string `json:"prediction"`
	}
	if err := c.postJSON(ctx, map[string]any{"record": rec}, &response); err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	label, err := models.ParseLabel(response.Prediction)
	if err != nil {
		return "", fmt.Errorf("model response: %w", err)
	}
	return label, nil
}

func (c *Remote) postJSON(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
