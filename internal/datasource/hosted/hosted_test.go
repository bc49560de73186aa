package hosted

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"bad password", &pgconn.PgError{Code: "28P01"}, apperr.IsAuth},
		{"no privilege", &pgconn.PgError{Code: "42501"}, apperr.IsAuth},
		{"unique", &pgconn.PgError{Code: "23505", TableName: "account_bindings"}, apperr.IsConflict},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "onboarding_cards_client_id_fkey"}, apperr.IsValidation},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "name"}, apperr.IsValidation},
		{"check", &pgconn.PgError{Code: "23514"}, apperr.IsValidation},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), apperr.IsNetwork},
		{"connection reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, apperr.IsNetwork},
		{"broken pipe", fmt.Errorf("write: %w", syscall.EPIPE), apperr.IsNetwork},
		{"unexpected eof", fmt.Errorf("receive message: %w", io.ErrUnexpectedEOF), apperr.IsNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify("op", tt.err); !tt.check(got) {
				t.Fatalf("classify(%v) = %T %v", tt.err, got, got)
			}
		})
	}
}

func TestClassifyKeepsDetails(t *testing.T) {
	err := classify("op", &pgconn.PgError{Code: "23502", ColumnName: "name", Message: "null value"})
	fields := apperr.Fields(err)
	if len(fields) != 1 || fields[0].Field != "name" {
		t.Fatalf("fields = %+v", fields)
	}

	var conflict *apperr.ConflictError
	err = classify("op", &pgconn.PgError{Code: "23505", TableName: "clients", ConstraintName: "clients_pkey"})
	if !errors.As(err, &conflict) || conflict.Entity != "clients" || conflict.Key != "clients_pkey" {
		t.Fatalf("conflict = %+v", err)
	}

	if classify("op", nil) != nil {
		t.Fatal("classify(nil) should be nil")
	}

	plain := errors.New("boom")
	if got := classify("op", plain); !errors.Is(got, plain) || apperr.IsNetwork(got) {
		t.Fatalf("unexpected wrap of plain error: %v", got)
	}
}

func TestOpenWithoutURLIsAuthError(t *testing.T) {
	if _, err := Open(context.Background(), model.HostedConfig{}); !apperr.IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

// openTestDB connects to HOSTED_TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) DB {
	t.Helper()
	url := os.Getenv("HOSTED_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HOSTED_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Open(ctx, model.HostedConfig{DatabaseURL: url})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("EnsureSchema: %v", err)
	}
	return pool
}

func TestAdapterAgainstDatabase(t *testing.T) {
	db := openTestDB(t)
	a := New(db, nil)
	defer a.Close()
	ctx := context.Background()

	created, err := a.AddClient(ctx, model.Client{Name: "Integration " + time.Now().Format(time.RFC3339Nano)})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	owner := "carla"
	updated, err := a.UpdateClient(ctx, created.ID, model.ClientPatch{Owner: &owner})
	if err != nil || updated == nil || updated.Owner != "carla" || updated.Name != created.Name {
		t.Fatalf("UpdateClient = %+v, %v", updated, err)
	}

	missing, err := a.UpdateClient(ctx, "does-not-exist", model.ClientPatch{Owner: &owner})
	if err != nil || missing != nil {
		t.Fatalf("UpdateClient(missing) = %+v, %v", missing, err)
	}

	card, err := a.AddOnboardingCard(ctx, model.OnboardingCard{ClientID: created.ID, Title: "Kickoff"})
	if err != nil {
		t.Fatalf("AddOnboardingCard: %v", err)
	}
	moved, err := a.MoveOnboardingCard(ctx, card.ID, model.StageSetup)
	if err != nil || moved.Stage != model.StageSetup || moved.ID != card.ID {
		t.Fatalf("MoveOnboardingCard = %+v, %v", moved, err)
	}

	if _, err := a.AddOnboardingCard(ctx, model.OnboardingCard{ClientID: "ghost", Title: "x"}); !apperr.IsValidation(err) {
		t.Fatalf("expected foreign key validation error, got %v", err)
	}

	if err := a.ArchiveClient(ctx, created.ID); err != nil {
		t.Fatalf("ArchiveClient: %v", err)
	}
	got, err := a.GetClient(ctx, created.ID)
	if err != nil || got.Status != model.ClientStatusChurned {
		t.Fatalf("archived client = %+v, %v", got, err)
	}
}

func TestRepositoryBindingUpsert(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	ctx := context.Background()

	a := New(db, nil)
	c, err := a.AddClient(ctx, model.Client{Name: "Binding " + time.Now().Format(time.RFC3339Nano)})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	repo := NewRepository(db)
	first, err := repo.UpsertAccountBinding(ctx, model.AccountBinding{
		ClientID: c.ID, Platform: model.PlatformGoogleAds, CustomerID: "1234567890",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := repo.UpsertAccountBinding(ctx, model.AccountBinding{
		ClientID: c.ID, Platform: model.PlatformGoogleAds, CustomerID: "9876543210",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID || second.CustomerID != "9876543210" {
		t.Fatalf("expected one binding per client/platform, got %+v then %+v", first, second)
	}
}

func TestConvertLeadAgainstDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	ctx := context.Background()

	leadID := "lead_" + time.Now().Format("20060102150405.000000000")
	if _, err := db.Exec(ctx,
		`INSERT INTO leads (id, name, company, segment, stage) VALUES ($1, $2, $3, $4, $5)`,
		leadID, "Ana", "Pet Feliz", "pet", string(model.LeadStageNegotiation),
	); err != nil {
		t.Fatalf("seeding lead: %v", err)
	}

	a := New(db, nil)
	client, err := a.ConvertLead(ctx, leadID)
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}
	if client.Name != "Pet Feliz" || client.Status != model.ClientStatusOnboarding {
		t.Fatalf("converted client = %+v", client)
	}

	var stage, linked string
	if err := db.QueryRow(ctx, `SELECT stage, client_id FROM leads WHERE id = $1`, leadID).Scan(&stage, &linked); err != nil {
		t.Fatalf("reading lead: %v", err)
	}
	if stage != string(model.LeadStageWon) || linked != client.ID {
		t.Fatalf("lead stage = %q client = %q, want won and linked to %q", stage, linked, client.ID)
	}

	if _, err := a.ConvertLead(ctx, leadID); !apperr.IsConflict(err) {
		t.Fatalf("second conversion error = %v, want conflict", err)
	}
	if _, err := a.ConvertLead(ctx, "lead_missing"); !apperr.IsNotFound(err) {
		t.Fatalf("missing lead error = %v, want not found", err)
	}
}
