// Package adsplatform talks to the Google Ads REST API to find the managing
// account (MCC) through which a customer account must be reached.
package adsplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("google ads API %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("google ads API %d: %s", e.StatusCode, e.Message)
}

// Permission reports whether the API refused the credentials.
func (e *StatusError) Permission() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client is a minimal Google Ads REST client. It retries on HTTP 429 using
// Retry-After or exponential backoff.
type Client struct {
	baseURL        string
	developerToken string
	httpClient     *http.Client
	maxRetries     int
	backoff        func(attempt int) time.Duration
}

// NewClient creates a client. baseURL includes the API version, for
// example https://googleads.googleapis.com/v17.
func NewClient(baseURL, developerToken string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		developerToken: developerToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		backoff:    exponentialBackoff,
	}
}

// ListAccessibleCustomers returns the ids of the accounts the token can
// reach directly.
func (c *Client) ListAccessibleCustomers(ctx context.Context, accessToken string) ([]string, error) {
	var resp listAccessibleResponse
	if err := c.do(ctx, http.MethodGet, "/customers:listAccessibleCustomers", accessToken, "", nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.ResourceNames))
	for _, name := range resp.ResourceNames {
		ids = append(ids, strings.TrimPrefix(name, "customers/"))
	}
	return ids, nil
}

// FindClientLevel searches the hierarchy under managerID for targetID and
// returns its depth. found is false when targetID is not below managerID.
func (c *Client) FindClientLevel(ctx context.Context, accessToken, managerID, targetID string) (level int, found bool, err error) {
	query := fmt.Sprintf(
		"SELECT customer_client.id, customer_client.level, customer_client.manager "+
			"FROM customer_client WHERE customer_client.id = %s", targetID)

	var resp searchResponse
	path := "/customers/" + managerID + "/googleAds:search"
	if err := c.do(ctx, http.MethodPost, path, accessToken, managerID, searchRequest{Query: query}, &resp); err != nil {
		return 0, false, err
	}
	for _, row := range resp.Results {
		if row.CustomerClient == nil || row.CustomerClient.ID != targetID {
			continue
		}
		level, err := strconv.Atoi(row.CustomerClient.Level)
		if err != nil {
			return 0, false, fmt.Errorf("parsing level %q: %w", row.CustomerClient.Level, err)
		}
		return level, true, nil
	}
	return 0, false, nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken, loginCustomerID string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("developer-token", c.developerToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if loginCustomerID != "" {
			req.Header.Set("login-customer-id", loginCustomerID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = statusError(resp.StatusCode, data)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfter(resp, attempt, c.backoff)):
				continue
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(resp.StatusCode, data)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func statusError(code int, body []byte) *StatusError {
	e := &StatusError{StatusCode: code, Message: strings.TrimSpace(string(body))}
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		e.Message = apiErr.Error.Message
		e.Status = apiErr.Error.Status
	}
	return e
}

func retryAfter(resp *http.Response, attempt int, backoff func(int) time.Duration) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return backoff(attempt)
}

// exponentialBackoff returns 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}
