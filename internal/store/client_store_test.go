package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
	"github.com/nhle/agency-dashboard/internal/testutil"
)

func TestCreateClientRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	in := model.Client{
		Name:             "Padaria Central",
		Website:          "https://padaria.example",
		Segment:          "food",
		Owner:            "ana",
		Status:           model.ClientStatusOnboarding,
		MonthlyBudget:    5000,
		BudgetSpentMonth: 1200.5,
		GoalTargets:      map[string]float64{"cpa": 25, "roas": 4},
		LatestMetrics:    &model.MetricSnapshot{Date: "2026-10-01", Spend: 100, Clicks: 40, Conversions: 4},
		Contacts:         []model.Contact{{Name: "Rui", Email: "rui@padaria.example"}},
		Access:           []model.AccessItem{{Platform: "google_ads", Granted: true}},
		Onboarding:       []model.OnboardingItem{{Label: "kickoff", Done: true}},
	}

	created, err := s.CreateClient(ctx, in)
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected a creation timestamp")
	}

	got, err := s.GetClient(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got == nil {
		t.Fatal("expected client, got nil")
	}
	if got.Name != in.Name || got.Website != in.Website || got.Segment != in.Segment ||
		got.Owner != in.Owner || got.Status != in.Status {
		t.Fatalf("profile fields differ: %+v", got)
	}
	if got.MonthlyBudget != 5000 || got.BudgetSpentMonth != 1200.5 {
		t.Fatalf("budget fields differ: %v / %v", got.MonthlyBudget, got.BudgetSpentMonth)
	}
	if got.GoalTargets["cpa"] != 25 || got.GoalTargets["roas"] != 4 {
		t.Fatalf("goal targets differ: %v", got.GoalTargets)
	}
	if got.LatestMetrics == nil || got.LatestMetrics.Clicks != 40 {
		t.Fatalf("latest metrics differ: %+v", got.LatestMetrics)
	}
	if len(got.Contacts) != 1 || got.Contacts[0].Email != "rui@padaria.example" {
		t.Fatalf("contacts differ: %+v", got.Contacts)
	}
	if len(got.Access) != 1 || !got.Access[0].Granted {
		t.Fatalf("access differs: %+v", got.Access)
	}
	if len(got.Onboarding) != 1 || !got.Onboarding[0].Done {
		t.Fatalf("onboarding differs: %+v", got.Onboarding)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestCreateClientDefaultsAndValidation(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c, err := s.CreateClient(ctx, model.Client{Name: "Loja"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if c.Status != model.ClientStatusActive {
		t.Fatalf("status = %q, want active", c.Status)
	}

	_, err = s.CreateClient(ctx, model.Client{Name: "  "})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if fields := apperr.Fields(err); len(fields) != 1 || fields[0].Field != "name" {
		t.Fatalf("unexpected fields: %+v", fields)
	}

	_, err = s.CreateClient(ctx, model.Client{Name: "X", Status: "gone"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdateClientMergesPatch(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	created, err := s.CreateClient(ctx, model.Client{
		Name:          "Oficina",
		Owner:         "bruno",
		MonthlyBudget: 800,
		Contacts:      []model.Contact{{Name: "Lia"}},
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	status := model.ClientStatusAtRisk
	budget := 950.0
	res, err := s.UpdateClient(ctx, created.ID, model.ClientPatch{Status: &status, MonthlyBudget: &budget})
	if err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}
	if !res.Found() || res.Entity == nil {
		t.Fatalf("expected an updated entity, got %+v", res)
	}

	got, err := s.GetClient(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.Status != model.ClientStatusAtRisk || got.MonthlyBudget != 950 {
		t.Fatalf("patched fields not applied: %+v", got)
	}
	if got.Name != "Oficina" || got.Owner != "bruno" || len(got.Contacts) != 1 {
		t.Fatalf("unpatched fields changed: %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("created_at must survive an update")
	}
}

func TestUpdateMissingClientIsZeroResult(t *testing.T) {
	s := testutil.NewTestStore(t)

	name := "nobody"
	res, err := s.UpdateClient(context.Background(), "missing", model.ClientPatch{Name: &name})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Found() || res.Entity != nil {
		t.Fatalf("expected zero result, got %+v", res)
	}
}

func TestGetMissingClientIsNil(t *testing.T) {
	s := testutil.NewTestStore(t)

	got, err := s.GetClient(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestDeleteClientIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	seeded := testutil.SeedClients(t, s, "Bistrô")

	for i := 0; i < 2; i++ {
		if err := s.DeleteClient(ctx, seeded[0].ID); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}

	got, err := s.GetClient(ctx, seeded[0].ID)
	if err != nil || got != nil {
		t.Fatalf("expected client gone, got %+v, %v", got, err)
	}
}

func TestListClientsEmptyIsNotNil(t *testing.T) {
	s := testutil.NewTestStore(t)

	clients, err := s.ListClients(context.Background())
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if clients == nil {
		t.Fatal("expected empty slice, got nil")
	}
}

func TestSearchClients(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for _, c := range []model.Client{
		{Name: "Clínica Sorriso", Segment: "health"},
		{Name: "Academia Forte", Segment: "fitness", Owner: "Carla"},
		{Name: "Pet 100%", Segment: "pets"},
	} {
		if _, err := s.CreateClient(ctx, c); err != nil {
			t.Fatalf("CreateClient: %v", err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"academia", 1},
		{"CARLA", 1},
		{"HEALTH", 1},
		{"a", 2},
		{"100%", 1},
		{"%", 1},
		{"nothing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := s.SearchClients(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchClients: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("SearchClients(%q) = %d results, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}

func TestBulkUpsertClientsStopsAtFirstFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	batch := []model.Client{
		{ID: "c1", Name: "First", CreatedAt: base},
		{ID: "c2", Name: ""},
		{ID: "c3", Name: "Third"},
	}

	err := s.BulkUpsertClients(ctx, batch)
	if err == nil {
		t.Fatal("expected an error from the invalid record")
	}
	if !strings.Contains(err.Error(), "client 1") {
		t.Fatalf("error should name the failing index: %v", err)
	}

	first, _ := s.GetClient(ctx, "c1")
	if first == nil {
		t.Fatal("record before the failure must stay written")
	}
	if !first.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", first.CreatedAt, base)
	}
	third, _ := s.GetClient(ctx, "c3")
	if third != nil {
		t.Fatal("records after the failure must not be written")
	}
}

func TestBulkUpsertClientsReplacesAndOrders(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	if err := s.BulkUpsertClients(ctx, []model.Client{
		{ID: "old", Name: "Old", CreatedAt: older},
		{ID: "new", Name: "New", CreatedAt: newer},
	}); err != nil {
		t.Fatalf("BulkUpsertClients: %v", err)
	}
	if err := s.BulkUpsertClients(ctx, []model.Client{
		{ID: "old", Name: "Old Renamed", CreatedAt: older},
	}); err != nil {
		t.Fatalf("BulkUpsertClients (replace): %v", err)
	}

	clients, err := s.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].ID != "new" || clients[1].Name != "Old Renamed" {
		t.Fatalf("unexpected order or content: %s/%s", clients[0].ID, clients[1].Name)
	}
}

func TestSchemaVersionsAreTrackedPerStore(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tests := []struct {
		store string
		want  int
	}{
		{"clients", 2},
		{"onboarding_cards", 2},
		{"team_members", 1},
		{"financial_records", 1},
		{"settings", 1},
		{"unknown", 0},
	}

	for _, tt := range tests {
		got, err := s.SchemaVersion(ctx, tt.store)
		if err != nil {
			t.Fatalf("SchemaVersion(%s): %v", tt.store, err)
		}
		if got != tt.want {
			t.Fatalf("SchemaVersion(%s) = %d, want %d", tt.store, got, tt.want)
		}
	}
}

var _ store.Store = (*store.SQLiteStore)(nil)
