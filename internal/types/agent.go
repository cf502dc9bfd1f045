package types

import "time"

// Agent is a human agent eligible to receive transferred calls.
// The directory is managed by the CRUD layer; this core only reads it.
type Agent struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	// TransferKey is the single DTMF digit that selects this agent.
	// Unique per owner, enforced at CRUD time.
	TransferKey string    `json:"keyPress"`
	Email       string    `json:"email,omitempty"`
	Department  string    `json:"department,omitempty"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
}
