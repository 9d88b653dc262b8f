package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
)

// SMSClient sends verification codes through the platform's SMS gateway.
type SMSClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	sender     string
}

func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	return &SMSClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
	}
}

func (c *SMSClient) Send(ctx context.Context, phone, message string) error {
	data := url.Values{}
	data.Set("api_key", c.apiKey)
	data.Set("to", phone)
	data.Set("from", c.sender)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS gateway returned non-OK status: %d", resp.StatusCode)
	}
	return nil
}
