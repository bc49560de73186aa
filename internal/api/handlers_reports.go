package api

import (
	"context"
	"net/http"

	"github.com/nhle/agency-dashboard/internal/customerid"
	"github.com/nhle/agency-dashboard/internal/model"
)

// maskRows masks the customer id of every row in place.
func maskRows(rows []model.ReportRow) []model.ReportRow {
	for i := range rows {
		rows[i].CustomerID = customerid.Mask(rows[i].CustomerID)
	}
	return rows
}

func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request, name string, query func(context.Context, string) ([]model.ReportRow, error)) {
	rows, err := query(r.Context(), r.URL.Query().Get("clientId"))
	if err != nil {
		h.respondFailure(w, r, "loading "+name+" report", err)
		return
	}
	respond(w, r, http.StatusOK, maskRows(rows))
}

func (h *Handler) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, "daily", h.repo.DailyReport)
}

func (h *Handler) handleThirtyDayReport(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, "30d", h.repo.ThirtyDayReport)
}
