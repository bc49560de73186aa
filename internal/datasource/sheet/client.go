package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/agency-dashboard/internal/apperr"
)

const backendName = "sheet"

// Client downloads the workbook export. It authenticates with an optional
// bearer token and retries with exponential backoff on HTTP 429 and 503.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewClient creates a client for the export link url.
func NewClient(url, token string) *Client {
	return &Client{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		backoff:    exponentialBackoff,
	}
}

// Fetch downloads the workbook and returns its bytes together with a file
// name whose extension identifies the format.
func (c *Client) Fetch(ctx context.Context) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, "", fmt.Errorf("creating request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, "", &apperr.NetworkError{Backend: backendName, Op: "fetch workbook", Err: err}
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, "", &apperr.NetworkError{Backend: backendName, Op: "read workbook", Err: readErr}
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			lastErr = fmt.Errorf("status %d fetching workbook", resp.StatusCode)
			select {
			case <-ctx.Done():
				return nil, "", &apperr.NetworkError{Backend: backendName, Op: "fetch workbook", Err: ctx.Err()}
			case <-time.After(retryAfter(resp, attempt, c.backoff)):
				continue
			}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, "", &apperr.AuthError{
				Backend: backendName,
				Message: fmt.Sprintf("spreadsheet export rejected the credentials (%d)", resp.StatusCode),
			}
		case resp.StatusCode == http.StatusNotFound:
			return nil, "", &apperr.NotFoundError{Entity: "spreadsheet", ID: c.url}
		case resp.StatusCode >= 500:
			return nil, "", &apperr.NetworkError{
				Backend: backendName,
				Op:      "fetch workbook",
				Err:     fmt.Errorf("server error %d", resp.StatusCode),
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, "", fmt.Errorf("unexpected status %d fetching workbook: %s", resp.StatusCode, string(body))
		}

		return body, filenameFor(resp, c.url), nil
	}

	return nil, "", &apperr.NetworkError{
		Backend: backendName,
		Op:      "fetch workbook",
		Err:     fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr),
	}
}

// readFile loads a workbook from disk.
func readFile(p string) ([]byte, string, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", &apperr.NotFoundError{Entity: "spreadsheet", ID: p}
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading workbook %s: %w", p, err)
	}
	return data, p, nil
}

// filenameFor picks the name used to detect the workbook format: the
// Content-Disposition file name, then the URL path, then xlsx.
func filenameFor(resp *http.Response, url string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if i := strings.Index(strings.ToLower(cd), "filename="); i >= 0 {
			name := strings.Trim(cd[i+len("filename="):], `"; `)
			if name != "" {
				return name
			}
		}
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/vnd.ms-excel") {
		return "export.xls"
	}
	base := path.Base(strings.SplitN(url, "?", 2)[0])
	if ext := path.Ext(base); ext == ".xls" || ext == ".xlsx" {
		return base
	}
	return "export.xlsx"
}

func retryAfter(resp *http.Response, attempt int, backoff func(int) time.Duration) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return backoff(attempt)
}

// exponentialBackoff waits 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
