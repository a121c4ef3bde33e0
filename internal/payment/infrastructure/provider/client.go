// Package provider implements the HTTP client for the hosted-payment
// provider's REST API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"paybridge/internal/payment/application"
	"paybridge/internal/payment/domain"
)

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sessionResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	SessionURL string `json:"session_url"`
}

type createSessionRequest struct {
	ReturnURL     string      `json:"return_url"`
	DefaultLocale string      `json:"default_locale"`
	PaymentTypes  []string    `json:"payment_types"`
	PaymentData   paymentData `json:"payment_data"`
}

type paymentData struct {
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	ExternalOrderNum string `json:"external_order_num"`
}

type paymentMethodResponse struct {
	TypeSlug string `json:"type_slug"`
	Name     string `json:"name"`
}

// GetSession fetches the session resource, including its status field.
func (c *Client) GetSession(ctx context.Context, id string) (application.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+id, nil, &resp); err != nil {
		return application.Session{}, err
	}
	return application.Session{ID: resp.ID, Status: resp.Status}, nil
}

// CreateSession asks the provider for a new hosted payment session.
func (c *Client) CreateSession(ctx context.Context, req application.CreateSessionRequest) (application.HostedSession, error) {
	body := createSessionRequest{
		ReturnURL:     req.ReturnURL,
		DefaultLocale: req.DefaultLocale,
		PaymentTypes:  req.PaymentTypes,
		PaymentData: paymentData{
			Amount:           req.Amount,
			Currency:         req.Currency,
			ExternalOrderNum: req.ExternalOrderNum,
		},
	}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", body, &resp); err != nil {
		return application.HostedSession{}, err
	}
	return application.HostedSession{ID: resp.ID, URL: resp.SessionURL}, nil
}

// PaymentMethods lists the payment methods enabled on the account.
func (c *Client) PaymentMethods(ctx context.Context) ([]application.PaymentMethod, error) {
	var resp []paymentMethodResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/payment_methods", nil, &resp); err != nil {
		return nil, err
	}
	methods := make([]application.PaymentMethod, 0, len(resp))
	for _, m := range resp {
		methods = append(methods, application.PaymentMethod{Type: m.TypeSlug, Name: m.Name})
	}
	return methods, nil
}

// do performs one authenticated request. Network errors, non-2xx statuses
// and malformed bodies all surface as ErrProviderUnavailable so callers
// can apply the conservative fallback uniformly.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}
