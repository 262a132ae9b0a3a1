package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

var errNotConfigured = errors.New("mail: API URL not configured")

// HTTPMailer posts messages as JSON to a transactional mail API.
type HTTPMailer struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewHTTPMailer returns a mailer for the API at baseURL, authorized by apiKey.
func NewHTTPMailer(apiKey, baseURL, from string) *HTTPMailer {
	return &HTTPMailer{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts msg. Any non-2xx response is an error.
func (c *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if c.BaseURL == "" {
		return errNotConfigured
	}
	raw, err := json.Marshal(map[string]string{
		"from":    c.From,
		"to":      msg.To,
		"subject": msg.Subject,
		"text":    msg.Text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
