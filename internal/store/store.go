package store

import (
	"context"

	"github.com/nhle/agency-dashboard/internal/model"
)

// UpdateResult is the outcome of a merge-patch update. A missing record is
// not an error: RowsAffected is zero and Entity is nil, so callers can tell
// "updated" apart from "nothing to update" without inspecting errors.
type UpdateResult[T any] struct {
	Entity       *T
	RowsAffected int64
}

// Found reports whether the update touched an existing record.
func (r UpdateResult[T]) Found() bool {
	return r.RowsAffected > 0
}

// CardFilter narrows onboarding card listings.
type CardFilter struct {
	ClientID        string
	Stage           *model.Stage
	IncludeArchived bool
}

// Store defines the local persistence interface for the entity stores and
// the persisted settings.
type Store interface {
	// === Clients ===

	CreateClient(ctx context.Context, c model.Client) (*model.Client, error)
	UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (UpdateResult[model.Client], error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	DeleteClient(ctx context.Context, id string) error
	SearchClients(ctx context.Context, query string) ([]model.Client, error)
	BulkUpsertClients(ctx context.Context, clients []model.Client) error

	// === Onboarding cards ===

	CreateOnboardingCard(ctx context.Context, card model.OnboardingCard) (*model.OnboardingCard, error)
	UpdateOnboardingCard(ctx context.Context, id string, patch model.OnboardingCardPatch) (UpdateResult[model.OnboardingCard], error)
	GetOnboardingCard(ctx context.Context, id string) (*model.OnboardingCard, error)
	ListOnboardingCards(ctx context.Context, filter CardFilter) ([]model.OnboardingCard, error)
	DeleteOnboardingCard(ctx context.Context, id string) error
	SearchOnboardingCards(ctx context.Context, query string) ([]model.OnboardingCard, error)
	BulkUpsertOnboardingCards(ctx context.Context, cards []model.OnboardingCard) error

	// === Team members ===

	CreateTeamMember(ctx context.Context, m model.TeamMember) (*model.TeamMember, error)
	UpdateTeamMember(ctx context.Context, id string, patch model.TeamMemberPatch) (UpdateResult[model.TeamMember], error)
	GetTeamMember(ctx context.Context, id string) (*model.TeamMember, error)
	ListTeamMembers(ctx context.Context) ([]model.TeamMember, error)
	DeleteTeamMember(ctx context.Context, id string) error
	SearchTeamMembers(ctx context.Context, query string) ([]model.TeamMember, error)
	BulkUpsertTeamMembers(ctx context.Context, members []model.TeamMember) error

	// === Financial records ===

	CreateFinancialRecord(ctx context.Context, r model.FinancialRecord) (*model.FinancialRecord, error)
	UpdateFinancialRecord(ctx context.Context, id string, patch model.FinancialRecordPatch) (UpdateResult[model.FinancialRecord], error)
	GetFinancialRecord(ctx context.Context, id string) (*model.FinancialRecord, error)
	ListFinancialRecords(ctx context.Context, month string) ([]model.FinancialRecord, error)
	DeleteFinancialRecord(ctx context.Context, id string) error
	SearchFinancialRecords(ctx context.Context, query string) ([]model.FinancialRecord, error)
	BulkUpsertFinancialRecords(ctx context.Context, records []model.FinancialRecord) error

	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	IncrementCounter(ctx context.Context, name string) (int64, error)
}
