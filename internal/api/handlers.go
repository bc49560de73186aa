package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/agency-dashboard/internal/adsplatform"
	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/watchdog"
)

// Repository is the hosted-database access used by the handlers.
// *hosted.Repository implements it.
type Repository interface {
	UpsertCampaign(ctx context.Context, c model.Campaign) error
	UpsertAccountBinding(ctx context.Context, b model.AccountBinding) (*model.AccountBinding, error)
	DailyReport(ctx context.Context, clientID string) ([]model.ReportRow, error)
	ThirtyDayReport(ctx context.Context, clientID string) ([]model.ReportRow, error)
}

// MCCResolver resolves managing accounts. *adsplatform.Resolver
// implements it.
type MCCResolver interface {
	Resolve(ctx context.Context, userID, customerID string) (*adsplatform.Resolution, error)
}

// SourceProvider returns the active data source. *factory.Manager
// implements it.
type SourceProvider interface {
	Source(ctx context.Context) (datasource.DataSource, error)
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	repo        Repository
	resolver    MCCResolver
	sources     SourceProvider
	loadTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a Handler. loadTimeout bounds data source reads.
func NewHandler(repo Repository, resolver MCCResolver, sources SourceProvider, loadTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:        repo,
		resolver:    resolver,
		sources:     sources,
		loadTimeout: loadTimeout,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// load runs fn against the active data source under the watchdog.
func load[T any](h *Handler, r *http.Request, fn func(context.Context, datasource.DataSource) (T, error)) (T, error) {
	loader := watchdog.New[T](h.loadTimeout)
	return loader.Load(r.Context(), func(ctx context.Context) (T, error) {
		ds, err := h.sources.Source(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, ds)
	})
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := load(h, r, func(ctx context.Context, ds datasource.DataSource) ([]model.Client, error) {
		return ds.GetClients(ctx)
	})
	if err != nil {
		h.respondFailure(w, r, "listing clients", err)
		return
	}
	respond(w, r, http.StatusOK, clients)
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	client, err := load(h, r, func(ctx context.Context, ds datasource.DataSource) (*model.Client, error) {
		return ds.GetClient(ctx, id)
	})
	if err != nil {
		h.respondFailure(w, r, "getting client", err)
		return
	}
	respond(w, r, http.StatusOK, client)
}

func (h *Handler) handleClientOnboarding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cards, err := load(h, r, func(ctx context.Context, ds datasource.DataSource) ([]model.OnboardingCard, error) {
		return ds.GetOnboardingCards(ctx, id)
	})
	if err != nil {
		h.respondFailure(w, r, "listing onboarding cards", err)
		return
	}
	respond(w, r, http.StatusOK, cards)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := load(h, r, func(ctx context.Context, ds datasource.DataSource) ([]model.Alert, error) {
		return ds.GetAlerts(ctx)
	})
	if err != nil {
		h.respondFailure(w, r, "listing alerts", err)
		return
	}
	respond(w, r, http.StatusOK, alerts)
}

// respondFailure maps a classified error to a status. Auth failures get a
// fixed message; everything else passes the error text through.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, "path", r.URL.Path, "error", err)

	switch {
	case apperr.IsValidation(err):
		fields := []FieldError{}
		for _, f := range apperr.Fields(err) {
			fields = append(fields, FieldError{Field: f.Field, Message: f.Message})
		}
		respondError(w, r, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", fields)
	case apperr.IsNotFound(err):
		respondError(w, r, http.StatusNotFound, err.Error(), "NOT_FOUND", nil)
	case apperr.IsConflict(err):
		respondError(w, r, http.StatusConflict, err.Error(), "CONFLICT", nil)
	case apperr.IsAuth(err):
		respondError(w, r, http.StatusBadGateway, "Data source rejected the configured credentials", "BACKEND_AUTH", nil)
	case errors.Is(err, watchdog.ErrTimeout):
		respondError(w, r, http.StatusGatewayTimeout, "Data source did not answer in time", "TIMEOUT", nil)
	case apperr.IsNetwork(err):
		respondError(w, r, http.StatusServiceUnavailable, err.Error(), "NETWORK_ERROR", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, err.Error(), "", nil)
	}
}
