package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/theme"
)

func renderClients(kind datasource.Kind, clients []model.Client) string {
	title := theme.HeaderStyle.Render(fmt.Sprintf("Clients (%d)", len(clients))) + " " +
		theme.KindStyle(string(kind)).Render(string(kind))
	if len(clients) == 0 {
		return title + "\n" + theme.HelpStyle.Render("no clients")
	}

	idWidth, nameWidth := 2, 4
	for _, c := range clients {
		idWidth = max(idWidth, lipgloss.Width(c.ID))
		nameWidth = max(nameWidth, lipgloss.Width(c.Name))
	}

	var b strings.Builder
	for _, c := range clients {
		status := theme.ClientStatusStyle(string(c.Status)).Render(string(c.Status))
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			lipgloss.NewStyle().Width(idWidth).Render(c.ID),
			lipgloss.NewStyle().Width(nameWidth).Render(c.Name),
			lipgloss.NewStyle().Width(12).Render(status),
			budgetLine(c))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, theme.BorderStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func budgetLine(c model.Client) string {
	if c.MonthlyBudget <= 0 {
		return theme.HelpStyle.Render("no budget")
	}
	return fmt.Sprintf("%.0f / %.0f (%.0f%%)", c.BudgetSpentMonth, c.MonthlyBudget, 100*c.BudgetSpentMonth/c.MonthlyBudget)
}

func renderAlerts(alerts []model.Alert) string {
	title := theme.HeaderStyle.Render(fmt.Sprintf("Alerts (%d)", len(alerts)))
	if len(alerts) == 0 {
		return title + "\n" + theme.HelpStyle.Render("nothing to report")
	}
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, theme.SeverityStyle(a.Severity).Render(strings.ToUpper(a.Severity))+" "+a.ClientID+": "+a.Message)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"))
}

func renderCards(cards []model.OnboardingCard) string {
	title := theme.HeaderStyle.Render(fmt.Sprintf("Onboarding (%d)", len(cards)))
	if len(cards) == 0 {
		return title + "\n" + theme.HelpStyle.Render("no active cards")
	}
	lines := make([]string, 0, len(cards))
	for _, c := range cards {
		line := fmt.Sprintf("[%s] %s (%s)", c.Stage, c.Title, c.ClientID)
		if c.Responsavel != "" {
			line += " @" + c.Responsavel
		}
		if c.Vencimento != nil {
			line += " " + theme.HelpStyle.Render("due "+c.Vencimento.Format("2006-01-02"))
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"))
}
