package mock

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
}

func TestGetClientsIsDeterministic(t *testing.T) {
	ctx := context.Background()

	first, err := NewAdapter().GetClients(ctx)
	if err != nil {
		t.Fatalf("GetClients: %v", err)
	}
	second, _ := NewAdapter().GetClients(ctx)

	if len(first) != 4 || len(first) != len(second) {
		t.Fatalf("unexpected fixture sizes %d / %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("order differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	if first[0].ID != "cli_academia" {
		t.Fatalf("expected newest client first, got %s", first[0].ID)
	}
}

func TestGetClientsEmptyIsNotNil(t *testing.T) {
	clients, err := NewAdapter(WithClients(nil)).GetClients(context.Background())
	if err != nil {
		t.Fatalf("GetClients: %v", err)
	}
	if clients == nil {
		t.Fatal("expected empty slice, got nil")
	}
}

func TestGetClientNotFound(t *testing.T) {
	_, err := NewAdapter().GetClient(context.Background(), "nope")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestWritesLiveOnlyInInstance(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(WithClock(fixedClock))

	created, err := a.AddClient(ctx, model.Client{Name: "Sorveteria"})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	if _, err := a.GetClient(ctx, created.ID); err != nil {
		t.Fatalf("expected echo of written client: %v", err)
	}
	if _, err := NewAdapter().GetClient(ctx, created.ID); !apperr.IsNotFound(err) {
		t.Fatalf("write leaked into a fresh instance: %v", err)
	}
}

func TestUpdateAndArchiveClient(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(WithClock(fixedClock))

	owner := "diego"
	updated, err := a.UpdateClient(ctx, "cli_padaria", model.ClientPatch{Owner: &owner})
	if err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}
	if updated.Owner != "diego" || updated.Name != "Padaria Pão Quente" {
		t.Fatalf("patch not merged: %+v", updated)
	}

	missing, err := a.UpdateClient(ctx, "nope", model.ClientPatch{Owner: &owner})
	if err != nil || missing != nil {
		t.Fatalf("missing id should be (nil, nil), got %+v, %v", missing, err)
	}

	if err := a.ArchiveClient(ctx, "cli_padaria"); err != nil {
		t.Fatalf("ArchiveClient: %v", err)
	}
	got, _ := a.GetClient(ctx, "cli_padaria")
	if got.Status != model.ClientStatusChurned {
		t.Fatalf("status = %q, want churned", got.Status)
	}
}

func TestReturnedClientsAreCopies(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter()

	c, _ := a.GetClient(ctx, "cli_padaria")
	c.GoalTargets["cpa"] = 999
	c.Contacts[0].Name = "mutated"

	again, _ := a.GetClient(ctx, "cli_padaria")
	if again.GoalTargets["cpa"] != 18 || again.Contacts[0].Name != "Marcos" {
		t.Fatal("caller mutation leaked into adapter state")
	}
}

func TestOnboardingBoard(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(WithClock(fixedClock))

	cards, err := a.GetOnboardingCards(ctx, "cli_academia")
	if err != nil {
		t.Fatalf("GetOnboardingCards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 active cards, got %d", len(cards))
	}

	moved, err := a.MoveOnboardingCard(ctx, "card_acessos", model.StageSetup)
	if err != nil {
		t.Fatalf("MoveOnboardingCard: %v", err)
	}
	if moved.ID != "card_acessos" || moved.Stage != model.StageSetup || moved.Title != "Coletar acessos" {
		t.Fatalf("move changed more than the stage: %+v", moved)
	}

	if _, err := a.MoveOnboardingCard(ctx, "card_acessos", "limbo"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := a.ArchiveOnboardingCard(ctx, "card_acessos"); err != nil {
		t.Fatalf("ArchiveOnboardingCard: %v", err)
	}
	cards, _ = a.GetOnboardingCards(ctx, "cli_academia")
	if len(cards) != 1 {
		t.Fatalf("archived card still on the board: %d cards", len(cards))
	}

	if _, err := a.AddOnboardingCard(ctx, model.OnboardingCard{ClientID: "ghost", Title: "x"}); !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFoundError for unknown client, got %v", err)
	}
}

func TestAddClientWithOnboarding(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(WithClock(fixedClock))

	client, cards, err := datasource.AddClientWithOnboarding(ctx, a, model.Client{Name: "Escola Aprender"})
	if err != nil {
		t.Fatalf("AddClientWithOnboarding: %v", err)
	}
	if len(cards) != len(model.OnboardingTemplate("")) {
		t.Fatalf("expected template cards, got %d", len(cards))
	}
	for _, c := range cards {
		if c.ClientID != client.ID {
			t.Fatalf("card %s points at %s, want %s", c.ID, c.ClientID, client.ID)
		}
	}
}

func TestConvertLead(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(WithClock(fixedClock))

	client, err := a.ConvertLead(ctx, "lead_pet")
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}
	if client.Name != "Pet Feliz" || client.Status != model.ClientStatusOnboarding {
		t.Fatalf("unexpected client: %+v", client)
	}
	if _, err := a.ConvertLead(ctx, "lead_pet"); !apperr.IsConflict(err) {
		t.Fatalf("second conversion should conflict, got %v", err)
	}
}

func TestGetAlertsUsesClock(t *testing.T) {
	alerts, err := NewAdapter(WithClock(fixedClock)).GetAlerts(context.Background())
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}

	kinds := map[string]bool{}
	for _, al := range alerts {
		kinds[al.ClientID+"/"+al.Kind] = true
	}
	for _, want := range []string{
		"cli_clinica/" + model.AlertAtRisk,
		"cli_clinica/" + model.AlertBudgetOverspent,
	} {
		if !kinds[want] {
			t.Fatalf("missing alert %s in %v", want, kinds)
		}
	}
	for k := range kinds {
		if k == "cli_loja/"+model.AlertAtRisk {
			t.Fatal("churned client should not alert")
		}
	}
}
