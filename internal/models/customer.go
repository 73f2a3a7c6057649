package models

import "time"

// UnknownCompany is the company recorded for customers created from an inbound message
const UnknownCompany = "Unknown"

// Customer is a person the business exchanges messages with.
// Phone is the natural key used to match inbound messages.
type Customer struct {
	ID        string    `json:"id"`                // UUID
	Name      string    `json:"name"`              // Display name
	Phone     string    `json:"phone"`             // Normalized, globally unique
	Email     *string   `json:"email,omitempty"`   // Optional contact email
	Company   *string   `json:"company,omitempty"` // Optional company
	Notes     *string   `json:"notes,omitempty"`   // Free-form agent notes
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerRequest represents the request body for creating a customer
type CreateCustomerRequest struct {
	Name    string  `json:"name" binding:"required,max=255"`
	Phone   string  `json:"phone" binding:"required,max=20"`
	Email   *string `json:"email,omitempty" binding:"omitempty,email,max=255"`
	Company *string `json:"company,omitempty" binding:"omitempty,max=255"`
	Notes   *string `json:"notes,omitempty"`
}

// CustomerUpdate lists the customer fields an agent may change.
// The phone number is not updatable: conversations snapshot it.
type CustomerUpdate struct {
	Name    *string `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Email   *string `json:"email,omitempty" binding:"omitempty,email,max=255"`
	Company *string `json:"company,omitempty" binding:"omitempty,max=255"`
	Notes   *string `json:"notes,omitempty"`
}

// Empty reports whether the update changes nothing
func (u CustomerUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Company == nil && u.Notes == nil
}

// Apply copies the set fields onto c
func (u CustomerUpdate) Apply(c *Customer) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Email != nil {
		c.Email = u.Email
	}
	if u.Company != nil {
		c.Company = u.Company
	}
	if u.Notes != nil {
		c.Notes = u.Notes
	}
}
