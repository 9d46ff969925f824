package org

import "time"

// Company is the top of the tenant hierarchy. Name is globally unique.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Branch belongs to exactly one company.
type Branch struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BranchUpdate carries optional fields for a partial branch update. Nil means
// leave unchanged. The owning company is immutable.
type BranchUpdate struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}
