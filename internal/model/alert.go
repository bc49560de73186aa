package model

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert kinds.
const (
	AlertAtRisk            = "at_risk"
	AlertBudgetOverspent   = "budget_overspent"
	AlertBudgetPace        = "budget_pace"
	AlertOnboardingStalled = "onboarding_stalled"
)

// Alert is a dashboard notice derived from a client's current state.
type Alert struct {
	ID         string `json:"id"`
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	Kind       string `json:"kind"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
}
