package adsplatform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type memoryCache struct {
	entries map[string]string
	saves   int
}

func (c *memoryCache) CachedMCC(_ context.Context, userID, customerID string) (string, bool, error) {
	v, ok := c.entries[userID+"/"+customerID]
	return v, ok, nil
}

func (c *memoryCache) SaveMCC(_ context.Context, userID, customerID, login string) error {
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.entries[userID+"/"+customerID] = login
	c.saves++
	return nil
}

type staticTokens map[string]string

func (s staticTokens) AccessToken(_ context.Context, userID string) (string, error) {
	return s[userID], nil
}

// hierarchy maps manager id -> (client id -> level).
type hierarchy map[string]map[string]int

func fakeAdsAPI(t *testing.T, accessible []string, tree hierarchy, denied map[string]bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("developer-token") != "dev" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/v17/customers:listAccessibleCustomers" {
			names := make([]string, 0, len(accessible))
			for _, id := range accessible {
				names = append(names, "customers/"+id)
			}
			_ = json.NewEncoder(w).Encode(listAccessibleResponse{ResourceNames: names})
			return
		}

		manager := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v17/customers/"), "/googleAds:search")
		if r.Header.Get("login-customer-id") != manager {
			t.Errorf("login-customer-id = %q, want %q", r.Header.Get("login-customer-id"), manager)
		}
		if denied[manager] {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller lacks permission","status":"PERMISSION_DENIED"}}`))
			return
		}
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		var resp searchResponse
		for id, level := range tree[manager] {
			if strings.HasSuffix(req.Query, "= "+id) {
				resp.Results = append(resp.Results, searchRow{CustomerClient: &customerClient{
					ID: id, Level: itoa(level),
				}})
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestResolver(srv *httptest.Server, cache *memoryCache) *Resolver {
	return NewResolver(NewClient(srv.URL+"/v17", "dev"), cache, staticTokens{"u1": "tok"}, nil)
}

func TestResolvePicksTopLevelManager(t *testing.T) {
	srv := fakeAdsAPI(t, []string{"1111111111", "2222222222"}, hierarchy{
		"1111111111": {"1234567890": 2},
		"2222222222": {"1234567890": 1},
	}, nil)
	cache := &memoryCache{}
	r := newTestResolver(srv, cache)

	res, err := r.Resolve(context.Background(), "u1", "123-456-7890")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.LoginCustomerID != "1111111111" || res.Cached || res.CustomerID != "1234567890" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if cache.saves != 1 {
		t.Fatalf("expected resolution to be cached, saves = %d", cache.saves)
	}

	again, err := r.Resolve(context.Background(), "u1", "123.456.7890")
	if err != nil || !again.Cached || again.LoginCustomerID != "1111111111" {
		t.Fatalf("second Resolve = %+v, %v", again, err)
	}
}

func TestResolveErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		customer   string
		accessible []string
		tree       hierarchy
		denied     map[string]bool
		want       string
	}{
		{
			name: "no manager", user: "u1", customer: "1234567890",
			accessible: []string{"1234567890", "3333333333"},
			tree:       hierarchy{"3333333333": {}},
			want:       CodeNoManagingMCC,
		},
		{
			name: "invalid id", user: "u1", customer: "12-34",
			want: CodeInvalidCustomerID,
		},
		{
			name: "no token", user: "nobody", customer: "1234567890",
			want: CodeTokenMissing,
		},
		{
			name: "every manager denies", user: "u1", customer: "1234567890",
			accessible: []string{"4444444444"},
			denied:     map[string]bool{"4444444444": true},
			want:       CodePermissionDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeAdsAPI(t, tt.accessible, tt.tree, tt.denied)
			r := newTestResolver(srv, &memoryCache{})

			_, err := r.Resolve(context.Background(), tt.user, tt.customer)
			if got := CodeOf(err); got != tt.want {
				t.Fatalf("code = %s (%v), want %s", got, err, tt.want)
			}
		})
	}
}

func TestRejectedTokenIsPermissionDenied(t *testing.T) {
	srv := fakeAdsAPI(t, nil, nil, nil)
	r := NewResolver(NewClient(srv.URL+"/v17", "dev"), &memoryCache{}, staticTokens{"u1": "expired"}, nil)

	_, err := r.Resolve(context.Background(), "u1", "1234567890")
	if CodeOf(err) != CodePermissionDenied {
		t.Fatalf("expected PERMISSION_DENIED, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
}

func TestClientRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"resourceNames":["customers/5555555555"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "dev")
	c.backoff = func(int) time.Duration { return time.Millisecond }

	ids, err := c.ListAccessibleCustomers(context.Background(), "tok")
	if err != nil || len(ids) != 1 || ids[0] != "5555555555" || calls.Load() != 2 {
		t.Fatalf("ListAccessibleCustomers = %v, %v after %d calls", ids, err, calls.Load())
	}
}

func TestRemediationMessages(t *testing.T) {
	generic := RemediationMessage("SOMETHING_ELSE")
	for _, code := range []string{CodeInvalidCustomerID, CodeTokenMissing, CodePermissionDenied, CodeNoManagingMCC} {
		msg := RemediationMessage(code)
		if msg == "" || msg == generic {
			t.Fatalf("code %s has no specific message", code)
		}
	}
	if !strings.Contains(RemediationMessage(CodeNoManagingMCC), "permissões") {
		t.Fatal("NO_MANAGING_MCC should point the user at their permissions")
	}
}
