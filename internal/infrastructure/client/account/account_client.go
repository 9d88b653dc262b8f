// Package account is the client for the account service, which owns primary
// credentials.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
)

// Client re-validates a user's primary credential against the account
// service. Password hashes never cross into this service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg config.AccountConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
	}
}

type verifyCredentialRequest struct {
	UserID     string `json:"user_id"`
	Credential string `json:"credential"`
}

type verifyCredentialResponse struct {
	Valid bool `json:"valid"`
}

func (c *Client) VerifyPrimaryCredential(ctx context.Context, userID uuid.UUID, credential string) (bool, error) {
	body, err := json.Marshal(verifyCredentialRequest{
		UserID:     userID.String(),
		Credential: credential,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal credential check: %w", err)
	}

	url := c.baseURL + "/internal/v1/credentials/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("account service returned non-OK status: %d", resp.StatusCode)
	}

	var out verifyCredentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode credential check response: %w", err)
	}
	return out.Valid, nil
}

var _ service.CredentialVerifier = (*Client)(nil)
