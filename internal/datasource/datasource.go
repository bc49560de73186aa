// Package datasource defines the capability set every dashboard backend
// implements and the closed set of backend kinds.
package datasource

import (
	"context"
	"fmt"

	"github.com/nhle/agency-dashboard/internal/model"
)

// Kind identifies a backend implementation.
type Kind string

const (
	KindMock   Kind = "mock"
	KindSheet  Kind = "sheet"
	KindHosted Kind = "hosted"
	KindHybrid Kind = "hybrid"
)

// Kinds lists every supported backend in menu order.
var Kinds = []Kind{KindMock, KindSheet, KindHosted, KindHybrid}

// ParseKind validates s against the supported backends.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown data source kind %q", s)
}

// DataSource is the read contract shared by every backend. Methods return
// normalized domain objects and fail with the classified errors of package
// apperr.
type DataSource interface {
	// Kind returns the backend identifier.
	Kind() Kind

	// GetClients returns every client. The slice is never nil.
	GetClients(ctx context.Context) ([]model.Client, error)

	// GetClient returns one client or an *apperr.NotFoundError.
	GetClient(ctx context.Context, id string) (*model.Client, error)

	// GetAlerts returns the alerts derived from the current client state.
	GetAlerts(ctx context.Context) ([]model.Alert, error)

	// GetOnboardingCards returns the active cards of a client, or of every
	// client when clientID is empty.
	GetOnboardingCards(ctx context.Context, clientID string) ([]model.OnboardingCard, error)

	// Close releases connections and background resources.
	Close() error
}

// ClientWriter is implemented by backends that accept client edits.
type ClientWriter interface {
	AddClient(ctx context.Context, c model.Client) (*model.Client, error)

	// UpdateClient merges patch over the stored client. A missing client
	// is reported as (nil, nil).
	UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (*model.Client, error)

	// ArchiveClient moves a client to the churned status. Clients are
	// never hard-deleted.
	ArchiveClient(ctx context.Context, id string) error
}

// OnboardingWriter is implemented by backends that manage the onboarding
// board.
type OnboardingWriter interface {
	AddOnboardingCard(ctx context.Context, card model.OnboardingCard) (*model.OnboardingCard, error)

	// MoveOnboardingCard changes only the card's stage.
	MoveOnboardingCard(ctx context.Context, id string, stage model.Stage) (*model.OnboardingCard, error)

	ArchiveOnboardingCard(ctx context.Context, id string) error
}

// LeadConverter is implemented by backends that own the sales funnel.
type LeadConverter interface {
	// ConvertLead creates a client from the lead, marks the lead won and
	// links it to the new client.
	ConvertLead(ctx context.Context, leadID string) (*model.Client, error)
}

// AddClientWithOnboarding creates a client and then, one after another,
// the template onboarding cards pointing at the new id. Each step finishes
// before the next starts since the cards need the generated client id.
func AddClientWithOnboarding(ctx context.Context, ds DataSource, c model.Client) (*model.Client, []model.OnboardingCard, error) {
	cw, ok := ds.(ClientWriter)
	if !ok {
		return nil, nil, fmt.Errorf("%s data source is read-only", ds.Kind())
	}
	created, err := cw.AddClient(ctx, c)
	if err != nil {
		return nil, nil, fmt.Errorf("adding client: %w", err)
	}

	ow, ok := ds.(OnboardingWriter)
	if !ok {
		return created, nil, nil
	}
	var cards []model.OnboardingCard
	for _, tmpl := range model.OnboardingTemplate(created.ID) {
		card, err := ow.AddOnboardingCard(ctx, tmpl)
		if err != nil {
			return created, cards, fmt.Errorf("adding onboarding card %q: %w", tmpl.Title, err)
		}
		cards = append(cards, *card)
	}
	return created, cards, nil
}
