package api

import (
	"encoding/json"
	"net/http"

	"github.com/nhle/agency-dashboard/internal/adsplatform"
	"github.com/nhle/agency-dashboard/internal/customerid"
	"github.com/nhle/agency-dashboard/internal/model"
)

type resolveMCCRequest struct {
	CustomerID string `json:"customerId"`
}

// resolveMCCResponse masks the customer id; the login id is the caller's
// own manager account and is returned in full.
type resolveMCCResponse struct {
	CustomerID              string `json:"customerId"`
	ResolvedLoginCustomerID string `json:"resolvedLoginCustomerId"`
	Cached                  bool   `json:"cached"`
}

func resolveStatus(code string) int {
	switch code {
	case adsplatform.CodeInvalidCustomerID:
		return http.StatusBadRequest
	case adsplatform.CodeAPIError:
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}

func (h *Handler) handleResolveMCC(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	if h.resolver == nil {
		respondError(w, r, http.StatusServiceUnavailable, "Account resolution is not configured", "", nil)
		return
	}

	var req resolveMCCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid JSON payload", "VALIDATION_ERROR", nil)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), userID, req.CustomerID)
	if err != nil {
		code := adsplatform.CodeOf(err)
		h.logger.Warn("mcc resolution failed", "user_id", userID,
			"customer_id", customerid.Mask(customerid.Sanitize(req.CustomerID)), "code", code, "error", err)
		respondError(w, r, resolveStatus(code), adsplatform.RemediationMessage(code), code, nil)
		return
	}

	respond(w, r, http.StatusOK, resolveMCCResponse{
		CustomerID:              customerid.Mask(res.CustomerID),
		ResolvedLoginCustomerID: res.LoginCustomerID,
		Cached:                  res.Cached,
	})
}

type bindingRequest struct {
	ClientID        string `json:"clientId"`
	Platform        string `json:"platform"`
	CustomerID      string `json:"customerId"`
	LoginCustomerID string `json:"loginCustomerId"`
}

// bindingResponse is the stored binding with its customer id masked. When
// the managing account could not be resolved the binding is still saved and
// ResolutionCode tells the dashboard what to show.
type bindingResponse struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"clientId"`
	Platform        model.Platform `json:"platform"`
	CustomerID      string         `json:"customerId"`
	LoginCustomerID string         `json:"loginCustomerId,omitempty"`
	ResolutionCode  string         `json:"resolutionCode,omitempty"`
	Remediation     string         `json:"remediation,omitempty"`
}

func (h *Handler) handleUpsertBinding(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid JSON payload", "VALIDATION_ERROR", nil)
		return
	}

	b := model.AccountBinding{
		ClientID:        req.ClientID,
		Platform:        model.Platform(req.Platform),
		CustomerID:      customerid.Sanitize(req.CustomerID),
		LoginCustomerID: customerid.Sanitize(req.LoginCustomerID),
	}

	var fields []FieldError
	if b.ClientID == "" {
		fields = append(fields, FieldError{Field: "clientId", Message: "is required"})
	}
	if !b.Platform.Valid() {
		fields = append(fields, FieldError{Field: "platform", Message: `must be "google_ads" or "meta_ads"`})
	}
	if b.CustomerID == "" {
		fields = append(fields, FieldError{Field: "customerId", Message: "must contain digits"})
	}
	if len(fields) > 0 {
		respondError(w, r, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", fields)
		return
	}

	resp := bindingResponse{}
	if b.Platform == model.PlatformGoogleAds && b.LoginCustomerID == "" && h.resolver != nil {
		res, err := h.resolver.Resolve(r.Context(), userID, b.CustomerID)
		if err != nil {
			resp.ResolutionCode = adsplatform.CodeOf(err)
			resp.Remediation = adsplatform.RemediationMessage(resp.ResolutionCode)
			h.logger.Warn("linking without managing account", "client_id", b.ClientID, "code", resp.ResolutionCode)
		} else {
			b.LoginCustomerID = res.LoginCustomerID
		}
	}

	saved, err := h.repo.UpsertAccountBinding(r.Context(), b)
	if err != nil {
		h.respondFailure(w, r, "upserting account binding", err)
		return
	}

	resp.ID = saved.ID
	resp.ClientID = saved.ClientID
	resp.Platform = saved.Platform
	resp.CustomerID = customerid.Mask(saved.CustomerID)
	resp.LoginCustomerID = saved.LoginCustomerID
	respond(w, r, http.StatusOK, resp)
}
