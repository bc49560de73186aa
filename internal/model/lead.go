package model

import "time"

// LeadStage is the funnel position of a lead on the sales kanban.
type LeadStage string

const (
	LeadStageNew         LeadStage = "Novo"
	LeadStageContacted   LeadStage = "Contato"
	LeadStageProposal    LeadStage = "Proposta"
	LeadStageNegotiation LeadStage = "Negociação"
	LeadStageWon         LeadStage = "Fechado"
	LeadStageLost        LeadStage = "Perdido"
)

// Lead is a prospect that has not become a client yet. Conversion creates a
// new Client and links it through ClientID; the two records are never merged.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Company    string    `json:"company"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Segment    string    `json:"segment"`
	Value      float64   `json:"value"`
	Stage      LeadStage `json:"stage"`
	LossReason *string   `json:"loss_reason,omitempty"`
	ClientID   *string   `json:"client_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Converted reports whether the lead already produced a client.
func (l Lead) Converted() bool {
	return l.ClientID != nil && *l.ClientID != ""
}

// ClientFromLead builds the client record created when a lead is won.
func ClientFromLead(l Lead) Client {
	name := l.Company
	if name == "" {
		name = l.Name
	}
	c := Client{
		Name:    name,
		Segment: l.Segment,
		Status:  ClientStatusOnboarding,
	}
	if l.Name != "" || l.Email != "" || l.Phone != "" {
		c.Contacts = []Contact{{Name: l.Name, Email: l.Email, Phone: l.Phone}}
	}
	return c
}

// FunnelConversionRate returns won leads over closed leads (won + lost).
func FunnelConversionRate(leads []Lead) float64 {
	var won, closed int
	for _, l := range leads {
		switch l.Stage {
		case LeadStageWon:
			won++
			closed++
		case LeadStageLost:
			closed++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(won) / float64(closed)
}
