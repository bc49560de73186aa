// Package mock provides a deterministic in-memory data source used for
// demos and as the fallback when the configured backend is unusable.
package mock

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
)

// Adapter serves fixture data. Writes are accepted and echoed back but live
// only as long as the instance.
type Adapter struct {
	mu      sync.RWMutex
	clients map[string]model.Client
	cards   map[string]model.OnboardingCard
	leads   map[string]model.Lead
	now     func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces the wall clock used for timestamps and alerts.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithClients replaces the fixture clients.
func WithClients(clients []model.Client) Option {
	return func(a *Adapter) {
		a.clients = make(map[string]model.Client, len(clients))
		for _, c := range clients {
			a.clients[c.ID] = c
		}
	}
}

// NewAdapter creates a mock adapter seeded with the fixture data.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		clients: make(map[string]model.Client),
		cards:   make(map[string]model.OnboardingCard),
		leads:   make(map[string]model.Lead),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, c := range fixtureClients() {
		a.clients[c.ID] = c
	}
	for _, c := range fixtureCards() {
		a.cards[c.ID] = c
	}
	for _, l := range fixtureLeads() {
		a.leads[l.ID] = l
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Kind returns datasource.KindMock.
func (a *Adapter) Kind() datasource.Kind {
	return datasource.KindMock
}

// GetClients returns every client, newest first.
func (a *Adapter) GetClients(ctx context.Context) ([]model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	clients := make([]model.Client, 0, len(a.clients))
	for _, c := range a.clients {
		clients = append(clients, cloneClient(c))
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].CreatedAt.Equal(clients[j].CreatedAt) {
			return clients[i].ID < clients[j].ID
		}
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

// GetClient returns one client.
func (a *Adapter) GetClient(ctx context.Context, id string) (*model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	c, ok := a.clients[id]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "client", ID: id}
	}
	out := cloneClient(c)
	return &out, nil
}

// GetAlerts derives alerts from the in-memory clients.
func (a *Adapter) GetAlerts(ctx context.Context) ([]model.Alert, error) {
	clients, err := a.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	return datasource.DeriveAlerts(clients, a.now()), nil
}

// GetOnboardingCards returns the non-archived cards of clientID, or of all
// clients when clientID is empty, in creation order.
func (a *Adapter) GetOnboardingCards(ctx context.Context, clientID string) ([]model.OnboardingCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	cards := []model.OnboardingCard{}
	for _, c := range a.cards {
		if c.Archived || (clientID != "" && c.ClientID != clientID) {
			continue
		}
		c.Checklist = slices.Clone(c.Checklist)
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
	return cards, nil
}

// AddClient stores c in memory and returns it with id and timestamps set.
func (a *Adapter) AddClient(ctx context.Context, c model.Client) (*model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, &apperr.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.ClientStatusActive
	}
	now := a.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	a.mu.Lock()
	a.clients[c.ID] = cloneClient(c)
	a.mu.Unlock()
	return &c, nil
}

// UpdateClient merges patch over the stored client. Unknown ids yield
// (nil, nil).
func (a *Adapter) UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (*model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.clients[id]
	if !ok {
		return nil, nil
	}
	updated := patch.Apply(c)
	if strings.TrimSpace(updated.Name) == "" {
		return nil, &apperr.ValidationError{Field: "name", Message: "must not be empty"}
	}
	updated.UpdatedAt = a.now()
	a.clients[id] = cloneClient(updated)
	return &updated, nil
}

// ArchiveClient marks a client churned.
func (a *Adapter) ArchiveClient(ctx context.Context, id string) error {
	status := model.ClientStatusChurned
	c, err := a.UpdateClient(ctx, id, model.ClientPatch{Status: &status})
	if err != nil {
		return err
	}
	if c == nil {
		return &apperr.NotFoundError{Entity: "client", ID: id}
	}
	return nil
}

// AddOnboardingCard stores a card for an existing client.
func (a *Adapter) AddOnboardingCard(ctx context.Context, card model.OnboardingCard) (*model.OnboardingCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var errs apperr.ValidationErrors
	if strings.TrimSpace(card.Title) == "" {
		errs.Add("title", "must not be empty")
	}
	if card.Stage == "" {
		card.Stage = model.StageKickoff
	}
	if _, err := model.ParseStage(string(card.Stage)); err != nil {
		errs.Add("stage", err.Error())
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.clients[card.ClientID]; !ok {
		return nil, &apperr.NotFoundError{Entity: "client", ID: card.ClientID}
	}
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.Checklist == nil {
		card.Checklist = []string{}
	}
	now := a.now()
	card.CreatedAt = now
	card.UpdatedAt = now
	a.cards[card.ID] = card
	return &card, nil
}

// MoveOnboardingCard changes a card's stage, keeping its identity.
func (a *Adapter) MoveOnboardingCard(ctx context.Context, id string, stage model.Stage) (*model.OnboardingCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := model.ParseStage(string(stage)); err != nil {
		return nil, &apperr.ValidationError{Field: "stage", Message: err.Error()}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	card, ok := a.cards[id]
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "onboarding_card", ID: id}
	}
	card.Stage = stage
	card.UpdatedAt = a.now()
	a.cards[id] = card
	return &card, nil
}

// ArchiveOnboardingCard hides a completed card from the board.
func (a *Adapter) ArchiveOnboardingCard(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	card, ok := a.cards[id]
	if !ok {
		return &apperr.NotFoundError{Entity: "onboarding_card", ID: id}
	}
	card.Archived = true
	card.UpdatedAt = a.now()
	a.cards[id] = card
	return nil
}

// ConvertLead turns a fixture lead into an onboarding client.
func (a *Adapter) ConvertLead(ctx context.Context, leadID string) (*model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	lead, ok := a.leads[leadID]
	a.mu.Unlock()
	if !ok {
		return nil, &apperr.NotFoundError{Entity: "lead", ID: leadID}
	}
	if lead.Converted() {
		return nil, &apperr.ConflictError{Entity: "lead", Key: leadID}
	}

	client, err := a.AddClient(ctx, model.ClientFromLead(lead))
	if err != nil {
		return nil, fmt.Errorf("converting lead %s: %w", leadID, err)
	}

	a.mu.Lock()
	lead.Stage = model.LeadStageWon
	lead.ClientID = &client.ID
	lead.UpdatedAt = a.now()
	a.leads[leadID] = lead
	a.mu.Unlock()
	return client, nil
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}

func cloneClient(c model.Client) model.Client {
	c.GoalTargets = maps.Clone(c.GoalTargets)
	if c.LatestMetrics != nil {
		m := *c.LatestMetrics
		c.LatestMetrics = &m
	}
	c.Contacts = slices.Clone(c.Contacts)
	c.Access = slices.Clone(c.Access)
	c.Onboarding = slices.Clone(c.Onboarding)
	return c
}

var (
	_ datasource.DataSource       = (*Adapter)(nil)
	_ datasource.ClientWriter     = (*Adapter)(nil)
	_ datasource.OnboardingWriter = (*Adapter)(nil)
	_ datasource.LeadConverter    = (*Adapter)(nil)
)
