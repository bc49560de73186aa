package model

import (
	"fmt"
	"time"
)

// Stage is a fixed column of the onboarding kanban.
type Stage string

const (
	StageKickoff  Stage = "kickoff"
	StageAccess   Stage = "access"
	StageSetup    Stage = "setup"
	StageTracking Stage = "tracking"
	StageLaunch   Stage = "launch"
	StageReview   Stage = "review"
)

// Stages lists the pipeline in board order.
var Stages = []Stage{
	StageKickoff, StageAccess, StageSetup, StageTracking, StageLaunch, StageReview,
}

// ParseStage validates s against the fixed stage keys.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown onboarding stage %q", s)
}

// OnboardingCard is a kanban card tracking one onboarding task for a client.
// Moving a card only changes Stage; completed cards are archived, not deleted.
type OnboardingCard struct {
	ID          string     `json:"id" db:"id"`
	ClientID    string     `json:"client_id" db:"client_id"`
	Stage       Stage      `json:"stage" db:"stage"`
	Title       string     `json:"title" db:"title"`
	Responsavel string     `json:"responsavel" db:"responsavel"`
	Vencimento  *time.Time `json:"vencimento,omitempty" db:"vencimento"`
	Checklist   []string   `json:"checklist" db:"-"`
	Notas       string     `json:"notas" db:"notas"`
	Archived    bool       `json:"archived" db:"archived"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// OnboardingCardPatch is a merge patch for an OnboardingCard.
type OnboardingCardPatch struct {
	Stage       *Stage     `json:"stage,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Responsavel *string    `json:"responsavel,omitempty"`
	Vencimento  *time.Time `json:"vencimento,omitempty"`
	Checklist   *[]string  `json:"checklist,omitempty"`
	Notas       *string    `json:"notas,omitempty"`
	Archived    *bool      `json:"archived,omitempty"`
}

// Apply merges the patch over c and returns the result.
func (p OnboardingCardPatch) Apply(c OnboardingCard) OnboardingCard {
	if p.Stage != nil {
		c.Stage = *p.Stage
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Responsavel != nil {
		c.Responsavel = *p.Responsavel
	}
	if p.Vencimento != nil {
		due := *p.Vencimento
		c.Vencimento = &due
	}
	if p.Checklist != nil {
		c.Checklist = *p.Checklist
	}
	if p.Notas != nil {
		c.Notas = *p.Notas
	}
	if p.Archived != nil {
		c.Archived = *p.Archived
	}
	return c
}

// OnboardingTemplate returns the default cards created when a client enters
// onboarding.
func OnboardingTemplate(clientID string) []OnboardingCard {
	return []OnboardingCard{
		{ClientID: clientID, Stage: StageKickoff, Title: "Reunião de kickoff",
			Checklist: []string{"Agendar reunião", "Enviar pauta", "Registrar ata"}},
		{ClientID: clientID, Stage: StageAccess, Title: "Coletar acessos",
			Checklist: []string{"Google Ads", "Meta Ads", "Google Analytics", "Site/CMS"}},
		{ClientID: clientID, Stage: StageTracking, Title: "Configurar rastreamento",
			Checklist: []string{"Tag Manager", "Conversões", "Pixel"}},
		{ClientID: clientID, Stage: StageLaunch, Title: "Lançar primeiras campanhas",
			Checklist: []string{"Aprovar criativos", "Publicar campanhas"}},
	}
}
