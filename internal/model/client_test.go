package model

import "testing"

func TestClientPatchApply(t *testing.T) {
	base := Client{
		ID:            "cli_1",
		Name:          "Padaria",
		Status:        ClientStatusActive,
		MonthlyBudget: 1000,
		GoalTargets:   map[string]float64{"cpa": 10},
		LatestMetrics: &MetricSnapshot{Date: "2026-01-01", Spend: 10},
	}

	name := "Padaria Nova"
	status := ClientStatusAtRisk
	snapshot := MetricSnapshot{Date: "2026-01-02", Spend: 20}
	patch := ClientPatch{Name: &name, Status: &status, LatestMetrics: &snapshot}

	got := patch.Apply(base)
	if got.Name != name || got.Status != status {
		t.Fatalf("Apply() = %+v, want patched name and status", got)
	}
	if got.MonthlyBudget != 1000 || got.GoalTargets["cpa"] != 10 {
		t.Fatalf("Apply() dropped untouched fields: %+v", got)
	}
	if base.Name != "Padaria" || base.LatestMetrics.Date != "2026-01-01" {
		t.Fatalf("Apply() modified its input: %+v", base)
	}

	snapshot.Spend = 99
	if got.LatestMetrics.Spend != 20 {
		t.Fatal("Apply() kept a reference to the patch snapshot")
	}

	if !(ClientPatch{}).IsEmpty() || patch.IsEmpty() {
		t.Fatal("IsEmpty() misreports")
	}
}

func TestParsers(t *testing.T) {
	if _, err := ParseClientStatus("churned"); err != nil {
		t.Fatalf("ParseClientStatus(churned) error = %v", err)
	}
	if _, err := ParseClientStatus("deleted"); err == nil {
		t.Fatal("ParseClientStatus(deleted) should fail")
	}
	if st, err := ParseStage("tracking"); err != nil || st != StageTracking {
		t.Fatalf("ParseStage(tracking) = %q, %v", st, err)
	}
	if _, err := ParseStage("Kickoff"); err == nil {
		t.Fatal("ParseStage is case sensitive")
	}
	if !PlatformGoogleAds.Valid() || Platform("tiktok").Valid() {
		t.Fatal("Platform.Valid misreports")
	}
}

func TestOnboardingCardPatchOnlyMovesStage(t *testing.T) {
	card := OnboardingCard{ID: "card_1", Stage: StageKickoff, Title: "Kickoff", Checklist: []string{"a"}}
	stage := StageAccess
	got := OnboardingCardPatch{Stage: &stage}.Apply(card)
	if got.Stage != StageAccess || got.Title != "Kickoff" || len(got.Checklist) != 1 {
		t.Fatalf("Apply() = %+v", got)
	}
}

func TestOnboardingTemplate(t *testing.T) {
	cards := OnboardingTemplate("cli_9")
	if len(cards) == 0 {
		t.Fatal("template is empty")
	}
	for _, c := range cards {
		if c.ClientID != "cli_9" {
			t.Fatalf("card %q has client %q", c.Title, c.ClientID)
		}
		if _, err := ParseStage(string(c.Stage)); err != nil {
			t.Fatalf("card %q has invalid stage: %v", c.Title, err)
		}
	}
}

func TestLeadConversion(t *testing.T) {
	id := "cli_1"
	tests := []struct {
		name      string
		lead      Lead
		wantName  string
		converted bool
	}{
		{"company wins", Lead{Name: "Ana", Company: "Pet Feliz", Email: "ana@pet.example"}, "Pet Feliz", false},
		{"falls back to person", Lead{Name: "Bruno"}, "Bruno", false},
		{"already converted", Lead{Name: "Caio", ClientID: &id}, "Caio", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClientFromLead(tt.lead)
			if c.Name != tt.wantName || c.Status != ClientStatusOnboarding {
				t.Fatalf("ClientFromLead() = %+v", c)
			}
			if tt.lead.Converted() != tt.converted {
				t.Fatalf("Converted() = %v, want %v", tt.lead.Converted(), tt.converted)
			}
		})
	}
}

func TestFunnelConversionRate(t *testing.T) {
	leads := []Lead{
		{Stage: LeadStageWon}, {Stage: LeadStageLost}, {Stage: LeadStageLost},
		{Stage: LeadStageWon}, {Stage: LeadStageNew},
	}
	if got := FunnelConversionRate(leads); got != 0.5 {
		t.Fatalf("FunnelConversionRate() = %v, want 0.5", got)
	}
	if got := FunnelConversionRate(nil); got != 0 {
		t.Fatalf("FunnelConversionRate(nil) = %v, want 0", got)
	}
}
