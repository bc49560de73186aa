package model

import "time"

// TeamMember is a person on the agency side who can own clients and cards.
type TeamMember struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TeamMemberPatch is a merge patch for a TeamMember.
type TeamMemberPatch struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// Apply merges the patch over m and returns the result.
func (p TeamMemberPatch) Apply(m TeamMember) TeamMember {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Email != nil {
		m.Email = *p.Email
	}
	if p.Role != nil {
		m.Role = *p.Role
	}
	if p.Active != nil {
		m.Active = *p.Active
	}
	return m
}
