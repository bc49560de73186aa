package adsplatform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/agency-dashboard/internal/customerid"
)

// Resolution error codes returned to the dashboard.
const (
	CodeInvalidCustomerID = "INVALID_CUSTOMER_ID"
	CodeTokenMissing      = "TOKEN_MISSING"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeNoManagingMCC     = "NO_MANAGING_MCC"
	CodeAPIError          = "API_ERROR"
)

// ResolveError is a failed resolution with a code the user can act on.
type ResolveError struct {
	Code string
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// CodeOf returns the resolution code carried by err, or CodeAPIError.
func CodeOf(err error) string {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeAPIError
}

// RemediationMessage returns the guidance shown to the user for code.
func RemediationMessage(code string) string {
	switch code {
	case CodeInvalidCustomerID:
		return "Confira o ID da conta: ele deve ter 10 dígitos (ex.: 123-456-7890)."
	case CodeTokenMissing:
		return "Conecte sua conta Google Ads antes de vincular clientes."
	case CodePermissionDenied:
		return "Sua conta Google não tem acesso a esta conta de anúncios. Verifique suas permissões."
	case CodeNoManagingMCC:
		return "Nenhuma conta gerenciadora (MCC) administra esta conta. Verifique suas permissões ou vincule a conta diretamente."
	}
	return "Não foi possível consultar o Google Ads. Tente novamente em alguns minutos."
}

// Resolution is a successful lookup.
type Resolution struct {
	CustomerID      string `json:"customerId"`
	LoginCustomerID string `json:"resolvedLoginCustomerId"`
	Cached          bool   `json:"cached"`
}

// API is the part of Client used by the resolver.
type API interface {
	ListAccessibleCustomers(ctx context.Context, accessToken string) ([]string, error)
	FindClientLevel(ctx context.Context, accessToken, managerID, targetID string) (int, bool, error)
}

// Cache stores resolutions per user and customer. hosted.Repository
// implements it together with TokenSource.
type Cache interface {
	CachedMCC(ctx context.Context, userID, customerID string) (string, bool, error)
	SaveMCC(ctx context.Context, userID, customerID, loginCustomerID string) error
}

// TokenSource returns a user's ad-platform access token, or "" when the
// user never connected one.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// Resolver finds the top-level manager of a customer account.
type Resolver struct {
	api    API
	cache  Cache
	tokens TokenSource
	logger *slog.Logger
}

// NewResolver wires a resolver.
func NewResolver(api API, cache Cache, tokens TokenSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, cache: cache, tokens: tokens, logger: logger}
}

// Resolve returns the login customer id to use for customerID. A cached
// answer is returned without calling the API.
func (r *Resolver) Resolve(ctx context.Context, userID, customerID string) (*Resolution, error) {
	id := customerid.Sanitize(customerID)
	if !customerid.Valid(id) {
		return nil, &ResolveError{Code: CodeInvalidCustomerID, Err: fmt.Errorf("%q is not a customer id", customerID)}
	}

	login, ok, err := r.cache.CachedMCC(ctx, userID, id)
	if err != nil {
		r.logger.Warn("reading mcc cache", "customer_id", customerid.Mask(id), "error", err)
	}
	if ok {
		return &Resolution{CustomerID: id, LoginCustomerID: login, Cached: true}, nil
	}

	token, err := r.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, &ResolveError{Code: CodeAPIError, Err: err}
	}
	if token == "" {
		return nil, &ResolveError{Code: CodeTokenMissing}
	}

	accessible, err := r.api.ListAccessibleCustomers(ctx, token)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	manager, err := r.deepestManager(ctx, token, accessible, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SaveMCC(ctx, userID, id, manager); err != nil {
		r.logger.Warn("saving mcc resolution", "customer_id", customerid.Mask(id), "error", err)
	}
	return &Resolution{CustomerID: id, LoginCustomerID: manager}, nil
}

// deepestManager searches each accessible account for target and keeps the
// one under which target sits at the greatest depth: that account is the
// top of the hierarchy.
func (r *Resolver) deepestManager(ctx context.Context, token string, accessible []string, target string) (string, error) {
	var (
		best      string
		bestLevel = -1
		denied    int
		searched  int
		lastErr   error
	)
	for _, acc := range accessible {
		acc = customerid.Sanitize(acc)
		if acc == target {
			continue
		}
		searched++
		level, found, err := r.api.FindClientLevel(ctx, token, acc, target)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Permission() {
				denied++
				continue
			}
			lastErr = err
			continue
		}
		if found && level > 0 && level > bestLevel {
			best, bestLevel = acc, level
		}
	}

	if best != "" {
		return best, nil
	}
	if lastErr != nil {
		return "", &ResolveError{Code: CodeAPIError, Err: lastErr}
	}
	if searched > 0 && denied == searched {
		return "", &ResolveError{Code: CodePermissionDenied}
	}
	return "", &ResolveError{Code: CodeNoManagingMCC}
}

func classifyAPIError(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Permission() {
		return &ResolveError{Code: CodePermissionDenied, Err: err}
	}
	return &ResolveError{Code: CodeAPIError, Err: err}
}
