package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nhle/agency-dashboard/internal/model"
)

const maxIngestBody = 4 << 20

// campaignPayload is one element of the ingestion body.
type campaignPayload struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	ClientID   string `json:"client_id"`
	Platform   string `json:"platform"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Objective  string `json:"objective"`
}

// IngestResult is the data of a campaign ingestion response.
type IngestResult struct {
	Inserted int          `json:"inserted"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// decodeCampaigns accepts either a single object or an array.
func decodeCampaigns(body []byte) ([]campaignPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] == '[' {
		var batch []campaignPayload
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var single campaignPayload
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []campaignPayload{single}, nil
}

func validateCampaign(p campaignPayload) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(p.ClientID) == "" {
		errs = append(errs, FieldError{Field: "client_id", Message: "is required"})
	}
	if !model.Platform(p.Platform).Valid() {
		errs = append(errs, FieldError{Field: "platform", Message: `must be "google_ads" or "meta_ads"`})
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "is required"})
	}
	switch p.Status {
	case model.CampaignEnabled, model.CampaignPaused, model.CampaignRemoved:
	default:
		errs = append(errs, FieldError{Field: "status", Message: "must be ENABLED, PAUSED or REMOVED"})
	}
	return errs
}

// handleIngestCampaigns upserts a batch of campaigns. Invalid entries are
// reported with their index while the valid ones are still written.
func (h *Handler) handleIngestCampaigns(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Could not read request body", "", nil)
		return
	}
	payloads, err := decodeCampaigns(body)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid JSON payload: "+err.Error(), "VALIDATION_ERROR", nil)
		return
	}

	stamp := h.now().UnixMilli()
	result := IngestResult{}
	for i, p := range payloads {
		index := i
		if fields := validateCampaign(p); len(fields) > 0 {
			for _, f := range fields {
				f.Index = &index
				result.Errors = append(result.Errors, f)
			}
			continue
		}

		c := model.Campaign{
			ID:         p.ID,
			ExternalID: p.ExternalID,
			ClientID:   p.ClientID,
			Platform:   model.Platform(p.Platform),
			Name:       p.Name,
			Status:     p.Status,
			Objective:  p.Objective,
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s_%s_%d_%d", c.Platform, c.ClientID, stamp, i)
		}
		if err := h.repo.UpsertCampaign(r.Context(), c); err != nil {
			h.logger.Error("upserting campaign", "index", i, "campaign_id", c.ID, "error", err)
			result.Errors = append(result.Errors, FieldError{Index: &index, Field: "", Message: err.Error()})
			continue
		}
		result.Inserted++
	}

	if result.Inserted == 0 && len(result.Errors) > 0 {
		respondError(w, r, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", result.Errors)
		return
	}
	h.logger.Info("campaigns ingested", "inserted", result.Inserted, "rejected", len(result.Errors))
	respond(w, r, http.StatusOK, result)
}
