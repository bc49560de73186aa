package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
)

const cardColumns = `id, client_id, stage, title, responsavel, vencimento,
	checklist, notas, archived, created_at, updated_at`

type cardRow struct {
	ID          string     `db:"id"`
	ClientID    string     `db:"client_id"`
	Stage       string     `db:"stage"`
	Title       string     `db:"title"`
	Responsavel string     `db:"responsavel"`
	Vencimento  *time.Time `db:"vencimento"`
	Checklist   string     `db:"checklist"`
	Notas       string     `db:"notas"`
	Archived    int        `db:"archived"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r cardRow) toModel() (model.OnboardingCard, error) {
	card := model.OnboardingCard{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Stage:       model.Stage(r.Stage),
		Title:       r.Title,
		Responsavel: r.Responsavel,
		Vencimento:  utcPtr(r.Vencimento),
		Notas:       r.Notas,
		Archived:    r.Archived != 0,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := unmarshalColumn("checklist", r.Checklist, &card.Checklist); err != nil {
		return model.OnboardingCard{}, err
	}
	if card.Checklist == nil {
		card.Checklist = []string{}
	}
	return card, nil
}

func cardArgs(c model.OnboardingCard) ([]interface{}, error) {
	checklist := c.Checklist
	if checklist == nil {
		checklist = []string{}
	}
	encoded, err := marshalColumn("checklist", checklist)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		c.ID, c.ClientID, string(c.Stage), c.Title, c.Responsavel, utcPtr(c.Vencimento),
		encoded, c.Notas, boolToInt(c.Archived), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	}, nil
}

func validateCard(c model.OnboardingCard) error {
	var errs apperr.ValidationErrors
	if strings.TrimSpace(c.Title) == "" {
		errs.Add("title", "must not be empty")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		errs.Add("client_id", "must not be empty")
	}
	if _, err := model.ParseStage(string(c.Stage)); err != nil {
		errs.Add("stage", err.Error())
	}
	return errs.Err()
}

const upsertCardSQL = `INSERT OR REPLACE INTO onboarding_cards (` + cardColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateOnboardingCard inserts a new card. Stage defaults to kickoff.
func (s *SQLiteStore) CreateOnboardingCard(
	ctx context.Context,
	card model.OnboardingCard,
) (*model.OnboardingCard, error) {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.Stage == "" {
		card.Stage = model.StageKickoff
	}
	if err := validateCard(card); err != nil {
		return nil, err
	}
	now := s.now()
	card.CreatedAt = now
	card.UpdatedAt = now

	args, err := cardArgs(card)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO onboarding_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, fmt.Errorf("creating onboarding card: %w", err)
	}
	if card.Checklist == nil {
		card.Checklist = []string{}
	}
	return &card, nil
}

// UpdateOnboardingCard merges patch over the stored card. Moving a card is
// an update with only Stage set.
func (s *SQLiteStore) UpdateOnboardingCard(
	ctx context.Context,
	id string,
	patch model.OnboardingCardPatch,
) (UpdateResult[model.OnboardingCard], error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return UpdateResult[model.OnboardingCard]{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row cardRow
	err = tx.GetContext(ctx, &row, "SELECT "+cardColumns+" FROM onboarding_cards WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateResult[model.OnboardingCard]{}, nil
	}
	if err != nil {
		return UpdateResult[model.OnboardingCard]{}, fmt.Errorf("loading onboarding card %s: %w", id, err)
	}

	current, err := row.toModel()
	if err != nil {
		return UpdateResult[model.OnboardingCard]{}, err
	}
	updated := patch.Apply(current)
	if err := validateCard(updated); err != nil {
		return UpdateResult[model.OnboardingCard]{}, err
	}
	updated.UpdatedAt = s.now()

	args, err := cardArgs(updated)
	if err != nil {
		return UpdateResult[model.OnboardingCard]{}, err
	}
	if _, err := tx.ExecContext(ctx, upsertCardSQL, args...); err != nil {
		return UpdateResult[model.OnboardingCard]{}, fmt.Errorf("updating onboarding card %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return UpdateResult[model.OnboardingCard]{}, fmt.Errorf("committing onboarding card %s: %w", id, err)
	}
	return UpdateResult[model.OnboardingCard]{Entity: &updated, RowsAffected: 1}, nil
}

// GetOnboardingCard retrieves a card by ID. Returns nil without error when
// absent.
func (s *SQLiteStore) GetOnboardingCard(ctx context.Context, id string) (*model.OnboardingCard, error) {
	var row cardRow
	err := s.db.GetContext(ctx, &row, "SELECT "+cardColumns+" FROM onboarding_cards WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting onboarding card %s: %w", id, err)
	}
	card, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListOnboardingCards returns the cards matching filter, newest first.
// Archived cards are hidden unless the filter asks for them.
func (s *SQLiteStore) ListOnboardingCards(
	ctx context.Context,
	filter CardFilter,
) ([]model.OnboardingCard, error) {
	query, args := buildCardQuery(filter)
	return s.selectCards(ctx, query, args...)
}

// SearchOnboardingCards matches query against title, responsavel and notas.
func (s *SQLiteStore) SearchOnboardingCards(ctx context.Context, query string) ([]model.OnboardingCard, error) {
	where, args := searchClause(query, "title", "responsavel", "notas")
	return s.selectCards(ctx,
		"SELECT "+cardColumns+" FROM onboarding_cards WHERE "+where+" ORDER BY created_at DESC",
		args...)
}

// DeleteOnboardingCard removes a card by ID. Deleting a missing id is a no-op.
func (s *SQLiteStore) DeleteOnboardingCard(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM onboarding_cards WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting onboarding card %s: %w", id, err)
	}
	return nil
}

// BulkUpsertOnboardingCards inserts or replaces each card by ID, stopping
// at the first failure without undoing earlier writes.
func (s *SQLiteStore) BulkUpsertOnboardingCards(ctx context.Context, cards []model.OnboardingCard) error {
	if len(cards) == 0 {
		return nil
	}

	stmt, err := s.db.PreparexContext(ctx, upsertCardSQL)
	if err != nil {
		return fmt.Errorf("preparing onboarding card upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for i, c := range cards {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Stage == "" {
			c.Stage = model.StageKickoff
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		if err := validateCard(c); err != nil {
			return fmt.Errorf("upserting onboarding card %d (%s): %w", i, c.ID, err)
		}
		args, err := cardArgs(c)
		if err != nil {
			return fmt.Errorf("upserting onboarding card %d (%s): %w", i, c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upserting onboarding card %d (%s): %w", i, c.ID, err)
		}
	}
	return nil
}

func buildCardQuery(filter CardFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.Stage != nil {
		conditions = append(conditions, "stage = ?")
		args = append(args, string(*filter.Stage))
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = 0")
	}

	query := "SELECT " + cardColumns + " FROM onboarding_cards"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	return query, args
}

func (s *SQLiteStore) selectCards(ctx context.Context, query string, args ...interface{}) ([]model.OnboardingCard, error) {
	var rows []cardRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying onboarding cards: %w", err)
	}

	cards := make([]model.OnboardingCard, 0, len(rows))
	for _, r := range rows {
		card, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("decoding onboarding card %s: %w", r.ID, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}
