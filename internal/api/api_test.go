package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/agency-dashboard/internal/adsplatform"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/datasource/mock"
	"github.com/nhle/agency-dashboard/internal/model"
)

const (
	testAPIKey = "ingest-key"
	testSecret = "jwt-secret"
)

type fakeRepo struct {
	mu        sync.Mutex
	campaigns []model.Campaign
	bindings  []model.AccountBinding
	rows      []model.ReportRow
}

func (f *fakeRepo) UpsertCampaign(_ context.Context, c model.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns = append(f.campaigns, c)
	return nil
}

func (f *fakeRepo) UpsertAccountBinding(_ context.Context, b model.AccountBinding) (*model.AccountBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = "bind-1"
	f.bindings = append(f.bindings, b)
	return &b, nil
}

func (f *fakeRepo) DailyReport(context.Context, string) ([]model.ReportRow, error) {
	out := make([]model.ReportRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeRepo) ThirtyDayReport(ctx context.Context, clientID string) ([]model.ReportRow, error) {
	return f.DailyReport(ctx, clientID)
}

type fakeResolver struct {
	res *adsplatform.Resolution
	err error
}

func (f *fakeResolver) Resolve(context.Context, string, string) (*adsplatform.Resolution, error) {
	return f.res, f.err
}

type staticSource struct {
	ds datasource.DataSource
}

func (s staticSource) Source(context.Context) (datasource.DataSource, error) {
	return s.ds, nil
}

func newTestServer(t *testing.T, repo *fakeRepo, resolver MCCResolver) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(repo, resolver, staticSource{ds: mock.NewAdapter()}, time.Second, logger)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(NewRouter(h, RouterConfig{
		IngestAPIKey:   testAPIKey,
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"https://dash.example.com"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func doRequest(t *testing.T, method, url, body string, headers map[string]string) (int, *Decoded) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return resp.StatusCode, nil
	}
	decoded, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decoding %q: %v", raw, err)
	}
	return resp.StatusCode, decoded
}

func TestIngestPartialSuccess(t *testing.T) {
	repo := &fakeRepo{}
	srv := newTestServer(t, repo, nil)

	body := `[
		{"client_id":"cli_padaria","platform":"google_ads","name":"Pães","status":"ENABLED"},
		{"platform":"google_ads","name":"Sem cliente","status":"ENABLED"},
		{"id":"camp-3","client_id":"cli_clinica","platform":"meta_ads","name":"Consultas","status":"PAUSED"}
	]`
	status, env := doRequest(t, http.MethodPost, srv.URL+"/api/campaigns", body, map[string]string{"x-api-key": testAPIKey})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var result IngestResult
	if err := env.Into(&result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Inserted != 2 {
		t.Fatalf("inserted = %d, want 2", result.Inserted)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index == nil || *result.Errors[0].Index != 1 {
		t.Fatalf("errors = %+v, want one error at index 1", result.Errors)
	}
	if result.Errors[0].Field != "client_id" {
		t.Fatalf("error field = %q, want client_id", result.Errors[0].Field)
	}

	wantID := "google_ads_cli_padaria_" + "1772366400000" + "_0"
	if repo.campaigns[0].ID != wantID {
		t.Fatalf("generated id = %q, want %q", repo.campaigns[0].ID, wantID)
	}
	if repo.campaigns[1].ID != "camp-3" {
		t.Fatalf("explicit id = %q, want camp-3", repo.campaigns[1].ID)
	}
}

func TestIngestSingleObjectAndAllInvalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOK     bool
	}{
		{"single object", `{"client_id":"c1","platform":"meta_ads","name":"n","status":"REMOVED"}`, http.StatusOK, true},
		{"all invalid", `[{"platform":"tiktok"}]`, http.StatusBadRequest, false},
		{"bad status", `{"client_id":"c1","platform":"meta_ads","name":"n","status":"ACTIVE"}`, http.StatusBadRequest, false},
		{"malformed", `{"client_id":`, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRepo{}, nil)
			status, env := doRequest(t, http.MethodPost, srv.URL+"/api/campaigns", tt.body, map[string]string{"x-api-key": testAPIKey})
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if env.OK != tt.wantOK {
				t.Fatalf("ok = %v, want %v", env.OK, tt.wantOK)
			}
		})
	}
}

func TestUnauthorizedInBothShapes(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{}, nil)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		legacy  bool
	}{
		{"missing api key", http.MethodPost, "/api/campaigns", nil, false},
		{"wrong api key", http.MethodPost, "/api/campaigns", map[string]string{"x-api-key": "nope"}, false},
		{"missing bearer legacy", http.MethodGet, "/api/clients?envelope=legacy", nil, true},
		{"bad bearer", http.MethodGet, "/api/clients", map[string]string{"Authorization": "Bearer garbage"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doRequest(t, tt.method, srv.URL+tt.path, `{}`, tt.headers)
			if status != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", status)
			}
			if !env.Unauthorized() {
				t.Fatalf("envelope = %+v, want unauthorized", env)
			}
			if env.Legacy != tt.legacy {
				t.Fatalf("legacy = %v, want %v", env.Legacy, tt.legacy)
			}
		})
	}
}

func TestOptionsPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{}, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/campaigns", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "x-api-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Fatalf("allow origin = %q", got)
	}

	bare, _ := http.NewRequest(http.MethodOptions, srv.URL+"/health", nil)
	resp, err = http.DefaultClient.Do(bare)
	if err != nil {
		t.Fatalf("bare options: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("bare options status = %d, want 204", resp.StatusCode)
	}
}

func TestReportsMaskCustomerIDs(t *testing.T) {
	repo := &fakeRepo{rows: []model.ReportRow{
		{ClientID: "cli_padaria", CustomerID: "1234567890", CampaignName: "A"},
		{ClientID: "cli_padaria", CustomerID: "98765", CampaignName: "B"},
	}}
	srv := newTestServer(t, repo, nil)
	auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1")}

	for _, path := range []string{"/api/reports/daily?clientId=cli_padaria", "/api/reports/30d"} {
		status, env := doRequest(t, http.MethodGet, srv.URL+path, "", auth)
		if status != http.StatusOK {
			t.Fatalf("%s status = %d", path, status)
		}
		var rows []model.ReportRow
		if err := env.Into(&rows); err != nil {
			t.Fatalf("decoding rows: %v", err)
		}
		if rows[0].CustomerID != "123****890" || rows[1].CustomerID != "****" {
			t.Fatalf("%s rows = %+v, want masked ids", path, rows)
		}
	}
	if repo.rows[0].CustomerID != "1234567890" {
		t.Fatalf("repository rows were mutated")
	}
}

func TestEnvelopeShapesDecodeAlike(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{}, nil)
	auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1")}

	_, canonical := doRequest(t, http.MethodGet, srv.URL+"/api/clients", "", auth)
	_, legacy := doRequest(t, http.MethodGet, srv.URL+"/api/clients?envelope=legacy", "", auth)

	if !canonical.OK || !legacy.OK || canonical.Legacy || !legacy.Legacy {
		t.Fatalf("canonical = %+v, legacy = %+v", canonical, legacy)
	}
	var a, b []model.Client
	if err := canonical.Into(&a); err != nil {
		t.Fatalf("canonical data: %v", err)
	}
	if err := legacy.Into(&b); err != nil {
		t.Fatalf("legacy data: %v", err)
	}
	if len(a) != 4 || len(a) != len(b) {
		t.Fatalf("clients = %d and %d, want 4 each", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("client %d differs: %q vs %q", i, a[i].ID, b[i].ID)
		}
	}
}

func TestDecodeEnvelopeFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantErr bool
	}{
		{"canonical failure", `{"success":false,"error":"Validation failed","errorCode":"VALIDATION_ERROR"}`, false, false},
		{"legacy failure", `{"ok":false,"error":"validation failed"}`, false, false},
		{"neither", `{"status":"ok"}`, false, true},
		{"not json", `<html>`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecodeEnvelope([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.OK != tt.wantOK {
				t.Fatalf("ok = %v, want %v", d.OK, tt.wantOK)
			}
		})
	}
}

func TestClientNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{}, nil)
	auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1")}

	status, env := doRequest(t, http.MethodGet, srv.URL+"/api/clients/nope", "", auth)
	if status != http.StatusNotFound || env.ErrorCode != "NOT_FOUND" {
		t.Fatalf("status = %d, env = %+v", status, env)
	}

	status, env = doRequest(t, http.MethodGet, srv.URL+"/api/clients/cli_academia/onboarding", "", auth)
	if status != http.StatusOK {
		t.Fatalf("onboarding status = %d", status)
	}
	var cards []model.OnboardingCard
	if err := env.Into(&cards); err != nil {
		t.Fatalf("decoding cards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2 active", len(cards))
	}
}

func TestResolveMCC(t *testing.T) {
	tests := []struct {
		name       string
		resolver   *fakeResolver
		wantStatus int
		wantCode   string
	}{
		{
			name:       "resolved",
			resolver:   &fakeResolver{res: &adsplatform.Resolution{CustomerID: "1234567890", LoginCustomerID: "5550001111"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no managing account",
			resolver:   &fakeResolver{err: &adsplatform.ResolveError{Code: adsplatform.CodeNoManagingMCC}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   adsplatform.CodeNoManagingMCC,
		},
		{
			name:       "invalid id",
			resolver:   &fakeResolver{err: &adsplatform.ResolveError{Code: adsplatform.CodeInvalidCustomerID}},
			wantStatus: http.StatusBadRequest,
			wantCode:   adsplatform.CodeInvalidCustomerID,
		},
		{
			name:       "upstream failure",
			resolver:   &fakeResolver{err: errors.New("boom")},
			wantStatus: http.StatusBadGateway,
			wantCode:   adsplatform.CodeAPIError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRepo{}, tt.resolver)
			auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1")}
			status, env := doRequest(t, http.MethodPost, srv.URL+"/api/resolve-mcc", `{"customerId":"123-456-7890"}`, auth)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if env.ErrorCode != tt.wantCode {
				t.Fatalf("code = %q, want %q", env.ErrorCode, tt.wantCode)
			}
			if tt.wantCode == "" {
				var res resolveMCCResponse
				if err := env.Into(&res); err != nil {
					t.Fatalf("decoding: %v", err)
				}
				if res.CustomerID != "123****890" || res.ResolvedLoginCustomerID != "5550001111" {
					t.Fatalf("resolution = %+v", res)
				}
				return
			}
			if env.Error != adsplatform.RemediationMessage(tt.wantCode) {
				t.Fatalf("error = %q, want remediation message", env.Error)
			}
		})
	}
}

func TestBindingLinksWhenResolutionFails(t *testing.T) {
	repo := &fakeRepo{}
	resolver := &fakeResolver{err: &adsplatform.ResolveError{Code: adsplatform.CodeNoManagingMCC}}
	srv := newTestServer(t, repo, resolver)
	auth := map[string]string{"Authorization": "Bearer " + signedToken(t, "user-1")}

	body := `{"clientId":"cli_padaria","platform":"google_ads","customerId":"123-456-7890"}`
	status, env := doRequest(t, http.MethodPost, srv.URL+"/api/account-bindings", body, auth)
	if status != http.StatusOK {
		t.Fatalf("status = %d, env = %+v", status, env)
	}
	var resp bindingResponse
	if err := env.Into(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.ResolutionCode != adsplatform.CodeNoManagingMCC || resp.CustomerID != "123****890" {
		t.Fatalf("response = %+v", resp)
	}
	if len(repo.bindings) != 1 || repo.bindings[0].CustomerID != "1234567890" {
		t.Fatalf("stored bindings = %+v", repo.bindings)
	}
}
