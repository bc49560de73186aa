package store_test

import (
	"context"
	"testing"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/testutil"
)

func TestTeamMembers(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	m, err := s.CreateTeamMember(ctx, model.TeamMember{Name: "Júlia", Email: "julia@agencia.example", Role: "traffic", Active: true})
	if err != nil {
		t.Fatalf("CreateTeamMember: %v", err)
	}

	inactive := false
	res, err := s.UpdateTeamMember(ctx, m.ID, model.TeamMemberPatch{Active: &inactive})
	if err != nil || !res.Found() {
		t.Fatalf("UpdateTeamMember = %+v, %v", res, err)
	}

	got, err := s.GetTeamMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetTeamMember: %v", err)
	}
	if got.Active || got.Role != "traffic" || got.Email != "julia@agencia.example" {
		t.Fatalf("unexpected member after patch: %+v", got)
	}

	found, err := s.SearchTeamMembers(ctx, "TRAFFIC")
	if err != nil || len(found) != 1 {
		t.Fatalf("SearchTeamMembers = %d, %v", len(found), err)
	}

	_, err = s.CreateTeamMember(ctx, model.TeamMember{Name: "Bad", Email: "not-an-email"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := s.DeleteTeamMember(ctx, m.ID); err != nil {
		t.Fatalf("DeleteTeamMember: %v", err)
	}
	all, err := s.ListTeamMembers(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("ListTeamMembers = %d, %v", len(all), err)
	}
}

func TestFinancialRecordsByMonth(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	client := testutil.SeedClients(t, s, "Mercado")[0]

	records := []model.FinancialRecord{
		{ClientID: &client.ID, Kind: model.FinancialKindRevenue, Description: "fee", Amount: 3000, Month: "2026-09"},
		{Kind: model.FinancialKindExpense, Description: "software", Amount: 400, Month: "2026-09"},
		{Kind: model.FinancialKindRevenue, Description: "fee", Amount: 3100, Month: "2026-10"},
	}
	if err := s.BulkUpsertFinancialRecords(ctx, records); err != nil {
		t.Fatalf("BulkUpsertFinancialRecords: %v", err)
	}

	sept, err := s.ListFinancialRecords(ctx, "2026-09")
	if err != nil {
		t.Fatalf("ListFinancialRecords: %v", err)
	}
	if len(sept) != 2 {
		t.Fatalf("got %d records for 2026-09, want 2", len(sept))
	}
	sum := model.Summarize(sept, "2026-09")
	if sum.Margin() != 2600 {
		t.Fatalf("margin = %v, want 2600", sum.Margin())
	}

	all, err := s.ListFinancialRecords(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("ListFinancialRecords(all) = %d, %v", len(all), err)
	}

	var linked int
	for _, r := range all {
		if r.ClientID != nil && *r.ClientID == client.ID {
			linked++
		}
	}
	if linked != 1 {
		t.Fatalf("expected one record linked to the client, got %d", linked)
	}
}

func TestFinancialRecordValidationAndPatch(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateFinancialRecord(ctx, model.FinancialRecord{Kind: "gift", Month: "Sept"})
	if fields := apperr.Fields(err); len(fields) != 2 {
		t.Fatalf("expected kind and month errors, got %+v", fields)
	}

	r, err := s.CreateFinancialRecord(ctx, model.FinancialRecord{Kind: model.FinancialKindExpense, Amount: 90})
	if err != nil {
		t.Fatalf("CreateFinancialRecord: %v", err)
	}
	if r.Month == "" {
		t.Fatal("expected month to default to the current month")
	}

	paid := true
	res, err := s.UpdateFinancialRecord(ctx, r.ID, model.FinancialRecordPatch{Paid: &paid})
	if err != nil || !res.Found() || !res.Entity.Paid || res.Entity.Amount != 90 {
		t.Fatalf("UpdateFinancialRecord = %+v, %v", res, err)
	}

	found, err := s.SearchFinancialRecords(ctx, "EXPENSE")
	if err != nil || len(found) != 1 {
		t.Fatalf("SearchFinancialRecords = %d, %v", len(found), err)
	}
}
