// Package rola is a client for the ROLA wallet authentication service.
package rola

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client represents the public interface for interacting with the authentication service
type Client interface {
	// Challenge requests a new challenge for the wallet
	Challenge(ctx context.Context, walletAddress string) (string, error)

	// Authenticate submits a signed challenge
	Authenticate(ctx context.Context, req AuthenticateRequest) (*Confirmation, error)
}

// AuthenticateRequest is the body of POST /auth/authenticate
type AuthenticateRequest struct {
	WalletAddress string `json:"wallet_address"`
	Challenge     string `json:"challenge"`
	Signature     string `json:"signature"`
	PublicKey     string `json:"public_key,omitempty"`
}

// Confirmation is returned by a successful authentication
type Confirmation struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	WalletAddress string `json:"wallet_address"`
}

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rola: %d %s", e.StatusCode, e.Detail)
}

// HTTPClient implements Client over HTTP
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at baseURL. httpClient may be nil.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Challenge requests a new challenge for the wallet
func (c *HTTPClient) Challenge(ctx context.Context, walletAddress string) (string, error) {
	endpoint := c.baseURL + "/auth/challenge?" + url.Values{"wallet_address": {walletAddress}}.Encode()

	var resp struct {
		Challenge string `json:"challenge"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", err
	}
	return resp.Challenge, nil
}

// Authenticate submits a signed challenge
func (c *HTTPClient) Authenticate(ctx context.Context, req AuthenticateRequest) (*Confirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var confirmation Confirmation
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/auth/authenticate", body, &confirmation); err != nil {
		return nil, err
	}
	return &confirmation, nil
}

// Login requests a challenge, signs it and authenticates in one call
func Login(ctx context.Context, client Client, signer *Signer, hrp string) (*Confirmation, error) {
	address, err := signer.Address(hrp)
	if err != nil {
		return nil, err
	}

	challenge, err := client.Challenge(ctx, address)
	if err != nil {
		return nil, err
	}

	return client.Authenticate(ctx, AuthenticateRequest{
		WalletAddress: address,
		Challenge:     challenge,
		Signature:     signer.Sign(challenge),
		PublicKey:     signer.PublicKeyHex(),
	})
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		if failure.Detail == "" {
			failure.Detail = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: failure.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
