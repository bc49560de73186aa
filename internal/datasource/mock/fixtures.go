package mock

import (
	"time"

	"github.com/nhle/agency-dashboard/internal/model"
)

// fixtureEpoch anchors every fixture timestamp so output is reproducible.
var fixtureEpoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func fixtureClients() []model.Client {
	return []model.Client{
		{
			ID:               "cli_padaria",
			Name:             "Padaria Pão Quente",
			Website:          "https://paoquente.example",
			Segment:          "alimentação",
			Owner:            "ana",
			Status:           model.ClientStatusActive,
			MonthlyBudget:    4000,
			BudgetSpentMonth: 1500,
			GoalTargets:      map[string]float64{"cpa": 18, "roas": 5},
			LatestMetrics: &model.MetricSnapshot{
				Date: "2026-01-04", Spend: 130, Impressions: 21000, Clicks: 640, Conversions: 9, Revenue: 700,
			},
			Contacts: []model.Contact{{Name: "Marcos", Email: "marcos@paoquente.example", Role: "dono"}},
			Access: []model.AccessItem{
				{Platform: "google_ads", Granted: true},
				{Platform: "meta_ads", Granted: true},
			},
			CreatedAt: fixtureEpoch.AddDate(0, -8, 0),
			UpdatedAt: fixtureEpoch,
		},
		{
			ID:               "cli_clinica",
			Name:             "Clínica Bem Estar",
			Website:          "https://bemestar.example",
			Segment:          "saúde",
			Owner:            "bruno",
			Status:           model.ClientStatusAtRisk,
			MonthlyBudget:    9000,
			BudgetSpentMonth: 9800,
			GoalTargets:      map[string]float64{"cpa": 60},
			Contacts:         []model.Contact{{Name: "Dra. Helena", Email: "helena@bemestar.example"}},
			CreatedAt:        fixtureEpoch.AddDate(-1, 0, 0),
			UpdatedAt:        fixtureEpoch,
		},
		{
			ID:            "cli_academia",
			Name:          "Academia Movimento",
			Segment:       "fitness",
			Owner:         "carla",
			Status:        model.ClientStatusOnboarding,
			MonthlyBudget: 2500,
			Onboarding: []model.OnboardingItem{
				{Label: "Kickoff", Done: true},
				{Label: "Acessos", Done: false},
				{Label: "Tracking", Done: false},
			},
			CreatedAt: fixtureEpoch.AddDate(0, 0, -3),
			UpdatedAt: fixtureEpoch,
		},
		{
			ID:        "cli_loja",
			Name:      "Loja Antiga",
			Segment:   "varejo",
			Owner:     "ana",
			Status:    model.ClientStatusChurned,
			CreatedAt: fixtureEpoch.AddDate(-2, 0, 0),
			UpdatedAt: fixtureEpoch,
		},
	}
}

func fixtureCards() []model.OnboardingCard {
	due := fixtureEpoch.AddDate(0, 0, 7)
	cards := []model.OnboardingCard{
		{ID: "card_kickoff", ClientID: "cli_academia", Stage: model.StageAccess, Title: "Reunião de kickoff",
			Responsavel: "carla", Checklist: []string{"Agendar reunião", "Registrar ata"}, Archived: true},
		{ID: "card_acessos", ClientID: "cli_academia", Stage: model.StageAccess, Title: "Coletar acessos",
			Responsavel: "carla", Vencimento: &due, Checklist: []string{"Google Ads", "Meta Ads"}},
		{ID: "card_tracking", ClientID: "cli_academia", Stage: model.StageTracking, Title: "Configurar rastreamento",
			Responsavel: "diego", Checklist: []string{"Tag Manager", "Conversões"}},
	}
	for i := range cards {
		cards[i].CreatedAt = fixtureEpoch.Add(time.Duration(i) * time.Minute)
		cards[i].UpdatedAt = cards[i].CreatedAt
	}
	return cards
}

func fixtureLeads() []model.Lead {
	return []model.Lead{
		{ID: "lead_pet", Name: "Rita", Company: "Pet Feliz", Email: "rita@petfeliz.example",
			Segment: "pets", Value: 3000, Stage: model.LeadStageNegotiation, CreatedAt: fixtureEpoch},
		{ID: "lead_bar", Name: "Otávio", Company: "Bar do Porto", Segment: "alimentação",
			Value: 1500, Stage: model.LeadStageContacted, CreatedAt: fixtureEpoch},
	}
}
