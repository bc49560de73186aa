package datasource

import (
	"fmt"
	"time"

	"github.com/nhle/agency-dashboard/internal/model"
)

const (
	// paceThreshold is how far spend may run ahead of the elapsed share of
	// the month before a pace warning is raised.
	paceThreshold = 1.2

	// stalledAfter is the age at which an unfinished onboarding is flagged.
	stalledAfter = 30 * 24 * time.Hour
)

// DeriveAlerts computes the dashboard alerts for clients at instant now.
// Churned clients never produce alerts. The result is never nil.
func DeriveAlerts(clients []model.Client, now time.Time) []model.Alert {
	alerts := []model.Alert{}
	elapsed := monthElapsed(now)

	for _, c := range clients {
		if c.Status == model.ClientStatusChurned {
			continue
		}

		if c.Status == model.ClientStatusAtRisk {
			alerts = append(alerts, newAlert(c, model.AlertAtRisk, model.SeverityCritical,
				"Cliente marcado como em risco"))
		}

		if c.MonthlyBudget > 0 {
			spent := c.BudgetSpentMonth / c.MonthlyBudget
			switch {
			case spent > 1:
				alerts = append(alerts, newAlert(c, model.AlertBudgetOverspent, model.SeverityCritical,
					fmt.Sprintf("Orçamento estourado: %.0f%% do mensal", spent*100)))
			case elapsed > 0 && spent > elapsed*paceThreshold:
				alerts = append(alerts, newAlert(c, model.AlertBudgetPace, model.SeverityWarning,
					fmt.Sprintf("Gasto adiantado: %.0f%% do orçamento com %.0f%% do mês", spent*100, elapsed*100)))
			}
		}

		if c.Status == model.ClientStatusOnboarding && !c.CreatedAt.IsZero() && now.Sub(c.CreatedAt) > stalledAfter {
			done, total := c.OnboardingProgress()
			if total == 0 || done < total {
				alerts = append(alerts, newAlert(c, model.AlertOnboardingStalled, model.SeverityWarning,
					fmt.Sprintf("Onboarding parado há %d dias (%d/%d itens)",
						int(now.Sub(c.CreatedAt).Hours()/24), done, total)))
			}
		}
	}

	return alerts
}

func newAlert(c model.Client, kind, severity, message string) model.Alert {
	return model.Alert{
		ID:         c.ID + ":" + kind,
		ClientID:   c.ID,
		ClientName: c.Name,
		Kind:       kind,
		Severity:   severity,
		Message:    message,
	}
}

// monthElapsed returns the fraction of the calendar month of now that has
// passed, counting the current day as elapsed.
func monthElapsed(now time.Time) float64 {
	days := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return float64(now.Day()) / float64(days)
}
