package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luminapay/schoolpay/internal/pkg/config"
)

const collectRequestPath = "/create-collect-request"

// Client talks to the external payment gateway.
type Client struct {
	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

// CollectRequest is the body of a create-collect-request call.
type CollectRequest struct {
	Token   string  `json:"token"`
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Gateway string  `json:"gateway"`
}

// CollectResponse is the gateway's answer to a collect request.
type CollectResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"payment_url"`
	Message    string `json:"message"`
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.Config) *Client {
	timeout := cfg.Gateway.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.Gateway.BaseURL), "/"),
		APIKey:  strings.TrimSpace(cfg.Gateway.APIKey),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateCollectRequest asks the gateway to open a payment for an order and
// returns the redirect URL. A response with success=false is an error.
func (c *Client) CreateCollectRequest(ctx context.Context, in CollectRequest) (*CollectResponse, error) {
	if c.BaseURL == "" {
		return nil, errors.New("payment gateway base url is not configured")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+collectRequestPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway collect request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out CollectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if !out.Success {
		msg := strings.TrimSpace(out.Message)
		if msg == "" {
			msg = "gateway rejected the collect request"
		}
		return &out, errors.New(msg)
	}
	if strings.TrimSpace(out.PaymentURL) == "" {
		return &out, errors.New("gateway response has no payment_url")
	}
	return &out, nil
}
