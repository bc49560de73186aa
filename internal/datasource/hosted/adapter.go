package hosted

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
)

// Adapter is the hosted-database data source. It owns the pool passed to
// New and closes it on Close.
type Adapter struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// New wraps an open pool.
func New(db DB, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Kind returns datasource.KindHosted.
func (a *Adapter) Kind() datasource.Kind {
	return datasource.KindHosted
}

// Ping checks connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return classify("ping", a.db.Ping(ctx))
}

const clientSelect = `
	SELECT id, name, website, segment, owner, status,
	       monthly_budget, budget_spent_month,
	       goal_targets, latest_metrics, contacts, access, onboarding,
	       created_at, updated_at
	FROM clients`

func scanClient(row pgx.CollectableRow) (model.Client, error) {
	var c model.Client
	var status string
	err := row.Scan(
		&c.ID, &c.Name, &c.Website, &c.Segment, &c.Owner, &status,
		&c.MonthlyBudget, &c.BudgetSpentMonth,
		&c.GoalTargets, &c.LatestMetrics, &c.Contacts, &c.Access, &c.Onboarding,
		&c.CreatedAt, &c.UpdatedAt,
	)
	c.Status = model.ClientStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, err
}

// GetClients returns every client, newest first.
func (a *Adapter) GetClients(ctx context.Context) ([]model.Client, error) {
	rows, err := a.db.Query(ctx, clientSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, classify("list clients", err)
	}
	clients, err := pgx.CollectRows(rows, scanClient)
	if err != nil {
		return nil, classify("list clients", err)
	}
	if clients == nil {
		clients = []model.Client{}
	}
	return clients, nil
}

// GetClient returns one client.
func (a *Adapter) GetClient(ctx context.Context, id string) (*model.Client, error) {
	rows, err := a.db.Query(ctx, clientSelect+" WHERE id = $1", id)
	if err != nil {
		return nil, classify("get client", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "client", ID: id}
	}
	if err != nil {
		return nil, classify("get client", err)
	}
	return &c, nil
}

// GetAlerts derives alerts from the current clients.
func (a *Adapter) GetAlerts(ctx context.Context) ([]model.Alert, error) {
	clients, err := a.GetClients(ctx)
	if err != nil {
		return nil, err
	}
	return datasource.DeriveAlerts(clients, a.now()), nil
}

const cardSelect = `
	SELECT id, client_id, stage, title, responsavel, vencimento,
	       checklist, notas, archived, created_at, updated_at
	FROM onboarding_cards`

func scanCard(row pgx.CollectableRow) (model.OnboardingCard, error) {
	var c model.OnboardingCard
	var stage string
	err := row.Scan(
		&c.ID, &c.ClientID, &stage, &c.Title, &c.Responsavel, &c.Vencimento,
		&c.Checklist, &c.Notas, &c.Archived, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Stage = model.Stage(stage)
	if c.Checklist == nil {
		c.Checklist = []string{}
	}
	return c, err
}

// GetOnboardingCards returns the active cards of clientID, or of every
// client when clientID is empty.
func (a *Adapter) GetOnboardingCards(ctx context.Context, clientID string) ([]model.OnboardingCard, error) {
	query := cardSelect + " WHERE NOT archived"
	var args []any
	if clientID != "" {
		query += " AND client_id = $1"
		args = append(args, clientID)
	}
	query += " ORDER BY created_at"

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list onboarding cards", err)
	}
	cards, err := pgx.CollectRows(rows, scanCard)
	if err != nil {
		return nil, classify("list onboarding cards", err)
	}
	if cards == nil {
		cards = []model.OnboardingCard{}
	}
	return cards, nil
}

const clientInsert = `
	INSERT INTO clients (
		id, name, website, segment, owner, status,
		monthly_budget, budget_spent_month,
		goal_targets, latest_metrics, contacts, access, onboarding,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func clientArgs(c model.Client) []any {
	return []any{
		c.ID, c.Name, c.Website, c.Segment, c.Owner, string(c.Status),
		c.MonthlyBudget, c.BudgetSpentMonth,
		c.GoalTargets, c.LatestMetrics, c.Contacts, c.Access, c.Onboarding,
		c.CreatedAt, c.UpdatedAt,
	}
}

func validateClient(c model.Client) error {
	var errs apperr.ValidationErrors
	if strings.TrimSpace(c.Name) == "" {
		errs.Add("name", "must not be empty")
	}
	if _, err := model.ParseClientStatus(string(c.Status)); err != nil {
		errs.Add("status", err.Error())
	}
	return errs.Err()
}

// AddClient inserts a client, assigning an id when absent.
func (a *Adapter) AddClient(ctx context.Context, c model.Client) (*model.Client, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.ClientStatusActive
	}
	if err := validateClient(c); err != nil {
		return nil, err
	}
	now := a.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := a.db.Exec(ctx, clientInsert, clientArgs(c)...); err != nil {
		return nil, classify("add client", err)
	}
	return &c, nil
}

// UpdateClient merges patch over the stored client inside a transaction.
// A missing client yields (nil, nil).
func (a *Adapter) UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (*model.Client, error) {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return nil, classify("begin update client", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, clientSelect+" WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, classify("load client", err)
	}
	current, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("load client", err)
	}

	updated := patch.Apply(current)
	if err := validateClient(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = a.now()

	_, err = tx.Exec(ctx, `
		UPDATE clients SET
			name = $2, website = $3, segment = $4, owner = $5, status = $6,
			monthly_budget = $7, budget_spent_month = $8,
			goal_targets = $9, latest_metrics = $10, contacts = $11, access = $12, onboarding = $13,
			updated_at = $14
		WHERE id = $1`,
		updated.ID, updated.Name, updated.Website, updated.Segment, updated.Owner, string(updated.Status),
		updated.MonthlyBudget, updated.BudgetSpentMonth,
		updated.GoalTargets, updated.LatestMetrics, updated.Contacts, updated.Access, updated.Onboarding,
		updated.UpdatedAt,
	)
	if err != nil {
		return nil, classify("update client", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit update client", err)
	}
	return &updated, nil
}

// ArchiveClient sets the client's status to churned. Hosted clients are
// never deleted.
func (a *Adapter) ArchiveClient(ctx context.Context, id string) error {
	tag, err := a.db.Exec(ctx,
		`UPDATE clients SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(model.ClientStatusChurned), a.now(),
	)
	if err != nil {
		return classify("archive client", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "client", ID: id}
	}
	return nil
}

// AddOnboardingCard inserts a card. The client reference is enforced by
// the database.
func (a *Adapter) AddOnboardingCard(ctx context.Context, card model.OnboardingCard) (*model.OnboardingCard, error) {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.Stage == "" {
		card.Stage = model.StageKickoff
	}
	var errs apperr.ValidationErrors
	if strings.TrimSpace(card.Title) == "" {
		errs.Add("title", "must not be empty")
	}
	if _, err := model.ParseStage(string(card.Stage)); err != nil {
		errs.Add("stage", err.Error())
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if card.Checklist == nil {
		card.Checklist = []string{}
	}
	now := a.now()
	card.CreatedAt = now
	card.UpdatedAt = now

	_, err := a.db.Exec(ctx, `
		INSERT INTO onboarding_cards (
			id, client_id, stage, title, responsavel, vencimento,
			checklist, notas, archived, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		card.ID, card.ClientID, string(card.Stage), card.Title, card.Responsavel, card.Vencimento,
		card.Checklist, card.Notas, card.Archived, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return nil, classify("add onboarding card", err)
	}
	return &card, nil
}

// MoveOnboardingCard changes only the stage of a card.
func (a *Adapter) MoveOnboardingCard(ctx context.Context, id string, stage model.Stage) (*model.OnboardingCard, error) {
	if _, err := model.ParseStage(string(stage)); err != nil {
		return nil, &apperr.ValidationError{Field: "stage", Message: err.Error()}
	}

	rows, err := a.db.Query(ctx, `
		UPDATE onboarding_cards SET stage = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, client_id, stage, title, responsavel, vencimento,
		          checklist, notas, archived, created_at, updated_at`,
		id, string(stage), a.now(),
	)
	if err != nil {
		return nil, classify("move onboarding card", err)
	}
	card, err := pgx.CollectExactlyOneRow(rows, scanCard)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "onboarding_card", ID: id}
	}
	if err != nil {
		return nil, classify("move onboarding card", err)
	}
	return &card, nil
}

// ArchiveOnboardingCard hides a completed card.
func (a *Adapter) ArchiveOnboardingCard(ctx context.Context, id string) error {
	tag, err := a.db.Exec(ctx,
		`UPDATE onboarding_cards SET archived = TRUE, updated_at = $2 WHERE id = $1`,
		id, a.now(),
	)
	if err != nil {
		return classify("archive onboarding card", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "onboarding_card", ID: id}
	}
	return nil
}

// ConvertLead creates a client from the lead, marks the lead won and links
// the two records, all in one transaction.
func (a *Adapter) ConvertLead(ctx context.Context, leadID string) (*model.Client, error) {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return nil, classify("begin convert lead", err)
	}
	defer tx.Rollback(ctx)

	var lead model.Lead
	var stage string
	err = tx.QueryRow(ctx, `
		SELECT id, name, company, email, phone, segment, stage, client_id
		FROM leads WHERE id = $1 FOR UPDATE`, leadID,
	).Scan(&lead.ID, &lead.Name, &lead.Company, &lead.Email, &lead.Phone, &lead.Segment, &stage, &lead.ClientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "lead", ID: leadID}
	}
	if err != nil {
		return nil, classify("load lead", err)
	}
	lead.Stage = model.LeadStage(stage)
	if lead.Converted() {
		return nil, &apperr.ConflictError{Entity: "lead", Key: leadID}
	}

	client := model.ClientFromLead(lead)
	client.ID = uuid.New().String()
	now := a.now()
	client.CreatedAt = now
	client.UpdatedAt = now
	if err := validateClient(client); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, clientInsert, clientArgs(client)...); err != nil {
		return nil, classify("insert converted client", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET stage = $2, client_id = $3, updated_at = $4 WHERE id = $1`,
		leadID, string(model.LeadStageWon), client.ID, now,
	); err != nil {
		return nil, classify("mark lead won", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit convert lead", err)
	}

	a.logger.Info("lead converted", "lead_id", leadID, "client_id", client.ID)
	return &client, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.db.Close()
	return nil
}

var (
	_ datasource.DataSource       = (*Adapter)(nil)
	_ datasource.ClientWriter     = (*Adapter)(nil)
	_ datasource.OnboardingWriter = (*Adapter)(nil)
	_ datasource.LeadConverter    = (*Adapter)(nil)
)
