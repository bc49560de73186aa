package model

import (
	"fmt"
	"time"
)

// ClientStatus is the lifecycle state of an agency client. Clients are
// never hard-deleted from the hosted store; archiving moves them to
// ClientStatusChurned.
type ClientStatus string

const (
	ClientStatusActive     ClientStatus = "active"
	ClientStatusOnboarding ClientStatus = "onboarding"
	ClientStatusAtRisk     ClientStatus = "at_risk"
	ClientStatusPaused     ClientStatus = "paused"
	ClientStatusChurned    ClientStatus = "churned"
)

// ParseClientStatus validates s against the fixed status set.
func ParseClientStatus(s string) (ClientStatus, error) {
	switch st := ClientStatus(s); st {
	case ClientStatusActive, ClientStatusOnboarding, ClientStatusAtRisk,
		ClientStatusPaused, ClientStatusChurned:
		return st, nil
	}
	return "", fmt.Errorf("unknown client status %q", s)
}

// Client is an agency customer with its budget figures, goal targets, the
// latest metric snapshot and the nested collections edited on the dashboard.
type Client struct {
	// ID is the unique identifier for this client.
	ID string `json:"id"`

	// Name is the display name shown on the dashboard.
	Name string `json:"name"`

	Website string       `json:"website"`
	Segment string       `json:"segment"`
	Owner   string       `json:"owner"`
	Status  ClientStatus `json:"status"`

	// MonthlyBudget is the planned media spend for the current month.
	MonthlyBudget float64 `json:"monthly_budget"`

	// BudgetSpentMonth is the spend accumulated so far this month.
	BudgetSpentMonth float64 `json:"budget_spent_month"`

	// GoalTargets maps a metric key (e.g. "cpa", "roas", "leads") to its
	// target value.
	GoalTargets map[string]float64 `json:"goal_targets,omitempty"`

	// LatestMetrics is the most recent reporting snapshot, if any.
	LatestMetrics *MetricSnapshot `json:"latest_metrics,omitempty"`

	Contacts   []Contact        `json:"contacts,omitempty"`
	Access     []AccessItem     `json:"access,omitempty"`
	Onboarding []OnboardingItem `json:"onboarding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MetricSnapshot holds the aggregated ad metrics for one reporting date.
type MetricSnapshot struct {
	Date        string  `json:"date"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// CPA returns cost per conversion, or zero when there were no conversions.
func (m MetricSnapshot) CPA() float64 {
	if m.Conversions == 0 {
		return 0
	}
	return m.Spend / m.Conversions
}

// ROAS returns revenue over spend, or zero when nothing was spent.
func (m MetricSnapshot) ROAS() float64 {
	if m.Spend == 0 {
		return 0
	}
	return m.Revenue / m.Spend
}

// ConversionRate returns conversions over clicks as a fraction.
func (m MetricSnapshot) ConversionRate() float64 {
	if m.Clicks == 0 {
		return 0
	}
	return m.Conversions / float64(m.Clicks)
}

// Contact is a person on the client side.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// AccessItem records whether the agency has been granted access to one of
// the client's platforms (ad accounts, analytics, CMS).
type AccessItem struct {
	Platform string `json:"platform"`
	Granted  bool   `json:"granted"`
	Notes    string `json:"notes,omitempty"`
}

// OnboardingItem is one entry of the client's onboarding checklist.
type OnboardingItem struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// OnboardingProgress returns how many checklist items are done out of the total.
func (c Client) OnboardingProgress() (done, total int) {
	for _, item := range c.Onboarding {
		if item.Done {
			done++
		}
	}
	return done, len(c.Onboarding)
}

// ClientPatch carries a merge patch for a Client. Nil fields are left
// untouched; non-nil fields overwrite the stored value.
type ClientPatch struct {
	Name             *string             `json:"name,omitempty"`
	Website          *string             `json:"website,omitempty"`
	Segment          *string             `json:"segment,omitempty"`
	Owner            *string             `json:"owner,omitempty"`
	Status           *ClientStatus       `json:"status,omitempty"`
	MonthlyBudget    *float64            `json:"monthly_budget,omitempty"`
	BudgetSpentMonth *float64            `json:"budget_spent_month,omitempty"`
	GoalTargets      *map[string]float64 `json:"goal_targets,omitempty"`
	LatestMetrics    *MetricSnapshot     `json:"latest_metrics,omitempty"`
	Contacts         *[]Contact          `json:"contacts,omitempty"`
	Access           *[]AccessItem       `json:"access,omitempty"`
	Onboarding       *[]OnboardingItem   `json:"onboarding,omitempty"`
}

// Apply merges the patch over c and returns the result. c is not modified.
func (p ClientPatch) Apply(c Client) Client {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Website != nil {
		c.Website = *p.Website
	}
	if p.Segment != nil {
		c.Segment = *p.Segment
	}
	if p.Owner != nil {
		c.Owner = *p.Owner
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.MonthlyBudget != nil {
		c.MonthlyBudget = *p.MonthlyBudget
	}
	if p.BudgetSpentMonth != nil {
		c.BudgetSpentMonth = *p.BudgetSpentMonth
	}
	if p.GoalTargets != nil {
		c.GoalTargets = *p.GoalTargets
	}
	if p.LatestMetrics != nil {
		snapshot := *p.LatestMetrics
		c.LatestMetrics = &snapshot
	}
	if p.Contacts != nil {
		c.Contacts = *p.Contacts
	}
	if p.Access != nil {
		c.Access = *p.Access
	}
	if p.Onboarding != nil {
		c.Onboarding = *p.Onboarding
	}
	return c
}

// IsEmpty reports whether the patch changes nothing.
func (p ClientPatch) IsEmpty() bool {
	return p == ClientPatch{}
}
