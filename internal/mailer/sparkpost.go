package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// SparkPostSender sends emails via the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey  string
	baseURL string
	client  *http.Client

	// retries on network errors and 5xx. 4xx responses are not retried,
	// the API already rejected the message.
	maxAttempts int
}

// NewSparkPostSender creates a sender for the SparkPost v1 API. An empty
// baseURL or zero timeout falls back to the production endpoint and 30s.
func NewSparkPostSender(apiKey, baseURL string, timeout time.Duration) *SparkPostSender {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com/api/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SparkPostSender{
		apiKey:      apiKey,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: 3,
	}
}

func (s *SparkPostSender) Name() string { return "sparkpost" }

// Send delivers a single email through SparkPost.
func (s *SparkPostSender) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("sparkpost api key not configured")
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.Email}},
		},
		"content": map[string]interface{}{
			"from":    map[string]string{"email": msg.FromEmail, "name": msg.FromName},
			"subject": msg.Subject,
			"html":    msg.HTML,
			"text":    msg.Text,
		},
		"metadata": map[string]interface{}{
			"campaign_id": msg.CampaignID,
			"contact_id":  msg.ContactID,
		},
	}

	jsonData, err := json.Marshal(transmission)
	if err != nil {
		return nil, err
	}

	status, body, err := s.post(ctx, "/transmissions", jsonData)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return &SendResult{
			Success:  false,
			Provider: "sparkpost",
			Err:      fmt.Errorf("sparkpost error %d: %s", status, string(body)),
		}, nil
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	json.Unmarshal(body, &result)

	logger.Debug("sparkpost send ok", "email", msg.Email, "message_id", result.Results.ID)

	return &SendResult{
		Success:   true,
		MessageID: result.Results.ID,
		Provider:  "sparkpost",
		SentAt:    time.Now(),
	}, nil
}

// post issues the request with bounded retries. Each attempt gets a fresh
// body reader; backoff doubles between attempts.
func (s *SparkPostSender) post(ctx context.Context, path string, payload []byte) (int, []byte, error) {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return resp.StatusCode, body, nil
			}
			lastErr = fmt.Errorf("sparkpost %d: %s", resp.StatusCode, string(body))
		}

		if attempt < s.maxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return 0, nil, lastErr
}
