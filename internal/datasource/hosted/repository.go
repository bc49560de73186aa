package hosted

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nhle/agency-dashboard/internal/model"
)

// Repository serves the HTTP handlers: campaign ingestion, account
// bindings, the report views and the managing-account cache.
type Repository struct {
	db  DB
	now func() time.Time
}

// NewRepository wraps db. The caller keeps ownership of the pool.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertCampaign inserts the campaign or replaces the row with the same id.
func (r *Repository) UpsertCampaign(ctx context.Context, c model.Campaign) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO campaigns (id, external_id, client_id, platform, name, status, objective, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			client_id   = EXCLUDED.client_id,
			platform    = EXCLUDED.platform,
			name        = EXCLUDED.name,
			status      = EXCLUDED.status,
			objective   = EXCLUDED.objective,
			updated_at  = EXCLUDED.updated_at`,
		c.ID, c.ExternalID, c.ClientID, string(c.Platform), c.Name, c.Status, c.Objective, r.now(),
	)
	return classify("upsert campaign", err)
}

// UpsertAccountBinding stores the binding, replacing the existing one for
// the same client and platform.
func (r *Repository) UpsertAccountBinding(ctx context.Context, b model.AccountBinding) (*model.AccountBinding, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := r.now()

	var out model.AccountBinding
	var platform string
	err := r.db.QueryRow(ctx, `
		INSERT INTO account_bindings (id, client_id, platform, customer_id, login_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (client_id, platform) DO UPDATE SET
			customer_id       = EXCLUDED.customer_id,
			login_customer_id = EXCLUDED.login_customer_id,
			updated_at        = EXCLUDED.updated_at
		RETURNING id, client_id, platform, customer_id, login_customer_id, created_at, updated_at`,
		b.ID, b.ClientID, string(b.Platform), b.CustomerID, b.LoginCustomerID, now,
	).Scan(&out.ID, &out.ClientID, &platform, &out.CustomerID, &out.LoginCustomerID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, classify("upsert account binding", err)
	}
	out.Platform = model.Platform(platform)
	return &out, nil
}

func scanReportRow(row pgx.CollectableRow) (model.ReportRow, error) {
	var r model.ReportRow
	err := row.Scan(&r.ClientID, &r.CustomerID, &r.CampaignID, &r.CampaignName, &r.Date,
		&r.Spend, &r.Impressions, &r.Clicks, &r.Conversions, &r.Revenue)
	return r, err
}

func scanAggregateRow(row pgx.CollectableRow) (model.ReportRow, error) {
	var r model.ReportRow
	err := row.Scan(&r.ClientID, &r.CustomerID, &r.CampaignID, &r.CampaignName,
		&r.Spend, &r.Impressions, &r.Clicks, &r.Conversions, &r.Revenue)
	return r, err
}

// DailyReport returns yesterday's rows, optionally for one client. Customer
// ids are returned unmasked.
func (r *Repository) DailyReport(ctx context.Context, clientID string) ([]model.ReportRow, error) {
	return r.report(ctx, "daily report", `
		SELECT client_id, customer_id, campaign_id, campaign_name, date,
		       spend, impressions, clicks, conversions, revenue
		FROM campaign_daily_report`, clientID, scanReportRow)
}

// ThirtyDayReport returns per-campaign totals over the last 30 days.
func (r *Repository) ThirtyDayReport(ctx context.Context, clientID string) ([]model.ReportRow, error) {
	return r.report(ctx, "30d report", `
		SELECT client_id, customer_id, campaign_id, campaign_name,
		       spend, impressions, clicks, conversions, revenue
		FROM campaign_30d_report`, clientID, scanAggregateRow)
}

func (r *Repository) report(ctx context.Context, op, query, clientID string, scan pgx.RowToFunc[model.ReportRow]) ([]model.ReportRow, error) {
	var args []any
	if clientID != "" {
		query += " WHERE client_id = $1"
		args = append(args, clientID)
	}
	query += " ORDER BY campaign_name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, classify(op, err)
	}
	if out == nil {
		out = []model.ReportRow{}
	}
	return out, nil
}

// CachedMCC returns a previously resolved managing account for the user's
// customer id.
func (r *Repository) CachedMCC(ctx context.Context, userID, customerID string) (string, bool, error) {
	var login string
	err := r.db.QueryRow(ctx,
		`SELECT login_customer_id FROM mcc_resolutions WHERE user_id = $1 AND customer_id = $2`,
		userID, customerID,
	).Scan(&login)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("load mcc resolution", err)
	}
	return login, true, nil
}

// SaveMCC caches a resolution.
func (r *Repository) SaveMCC(ctx context.Context, userID, customerID, loginCustomerID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO mcc_resolutions (user_id, customer_id, login_customer_id, resolved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, customer_id) DO UPDATE SET
			login_customer_id = EXCLUDED.login_customer_id,
			resolved_at       = EXCLUDED.resolved_at`,
		userID, customerID, loginCustomerID, r.now(),
	)
	return classify("save mcc resolution", err)
}

// AccessToken returns the stored ad-platform token of a user, or "" when
// the user never connected an account.
func (r *Repository) AccessToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := r.db.QueryRow(ctx,
		`SELECT access_token FROM google_ads_tokens WHERE user_id = $1`, userID,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify("load access token", err)
	}
	return token, nil
}
