// Package client is a Go client for the transaction engine's REST surface.
// Every call carries the mandatory trace headers and applies the bounded retry
// policy to transient connectivity failures only; 4xx responses are never
// retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qslv/transaction-engine/internal/core/domain"
	"github.com/qslv/transaction-engine/internal/dto"
	"github.com/qslv/transaction-engine/internal/utils/retry"
)

// APIError is a non-2xx response from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the engine. All methods are safe for concurrent use.
type Client struct {
	baseURL            string
	httpClient         *http.Client
	policy             retry.Policy
	aitID              string
	businessTaxonomyID string
}

// Options configures a Client. Zero values fall back to sensible defaults.
type Options struct {
	// AITID identifies the calling application on every request.
	AITID string
	// BusinessTaxonomyID classifies the calling business flow.
	BusinessTaxonomyID string
	// Policy bounds retries of transient failures.
	Policy retry.Policy
	// RequestTimeout caps each individual HTTP attempt.
	RequestTimeout time.Duration
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:            baseURL,
		httpClient:         &http.Client{Timeout: timeout},
		policy:             opts.Policy,
		aitID:              opts.AITID,
		businessTaxonomyID: opts.BusinessTaxonomyID,
	}
}

// Transact records a direct transaction.
func (c *Client) Transact(ctx context.Context, correlationID string, req dto.TransactionRequest) (*dto.TransactionResponse, error) {
	var resp dto.TransactionResponse
	if err := c.post(ctx, "/api/v1/transactions", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reserve places a provisional hold.
func (c *Client) Reserve(ctx context.Context, correlationID string, req dto.ReservationRequest) (*dto.ReservationResponse, error) {
	var resp dto.ReservationResponse
	if err := c.post(ctx, "/api/v1/reservations", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CommitReservation finalizes a reservation at its settled amount.
func (c *Client) CommitReservation(ctx context.Context, correlationID string, req dto.CommitReservationRequest) (*dto.CommitReservationResponse, error) {
	var resp dto.CommitReservationResponse
	if err := c.post(ctx, "/api/v1/reservations/commit", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelReservation reverses a reservation's balance effect.
func (c *Client) CancelReservation(ctx context.Context, correlationID string, req dto.CancelReservationRequest) (*dto.CancelReservationResponse, error) {
	var resp dto.CancelReservationResponse
	if err := c.post(ctx, "/api/v1/reservations/cancel", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReserveFunds reserves through the overdraft cascade.
func (c *Client) ReserveFunds(ctx context.Context, correlationID string, req dto.ReserveFundsRequest) (*dto.ReserveFundsResponse, error) {
	var resp dto.ReserveFundsResponse
	if err := c.post(ctx, "/api/v1/reservefunds", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TransferFunds starts a transfer: source hold plus published fulfillment.
func (c *Client) TransferFunds(ctx context.Context, correlationID string, req dto.TransferFundsRequest) (*dto.TransferFundsResponse, error) {
	var resp dto.TransferFundsResponse
	if err := c.post(ctx, "/api/v1/transfers", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TransferAndTransact performs the composite commit-then-transact operation.
func (c *Client) TransferAndTransact(ctx context.Context, correlationID string, req dto.TransferAndTransactRequest) (*dto.TransferAndTransactResponse, error) {
	var resp dto.TransferAndTransactResponse
	if err := c.post(ctx, "/api/v1/transferandtransact", correlationID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path, correlationID string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(domain.HeaderAITID, c.aitID)
		req.Header.Set(domain.HeaderBusinessTaxonomyID, c.businessTaxonomyID)
		req.Header.Set(domain.HeaderCorrelationID, correlationID)
		req.Header.Set(domain.HeaderAcceptVersion, domain.Version1_0)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		}
		return json.Unmarshal(raw, out)
	}, isTransient)
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return string(raw)
}

// isTransient treats connectivity failures and 5xx responses as retryable;
// anything the engine judged about the request itself is permanent.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
