package domain

import (
	"time"
)

// DefaultCategoryName labels requests for offices without categories.
const DefaultCategoryName = "Geral"

// Office is a representative's office ("gabinete") accepting requests.
type Office struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	Municipality string `json:"municipio"`
	UF           string `json:"uf"`
	Active       bool   `json:"ativo"`
}

// Category classifies a request. OfficeID is empty for general categories.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"nome"`
	OfficeID string `json:"gabinete_id,omitempty"`
	Active   bool   `json:"ativo"`
}

// ContactInput is the data used to find or create a citizen record.
type ContactInput struct {
	Phone        string
	Name         string
	TaxID        string
	Municipality string
	OfficeID     string
}

// Contact is a citizen known to the system.
type Contact struct {
	ID           string
	Name         string
	Phone        string
	TaxID        string
	Municipality string
	OfficeID     string
}

// NewRequest is the data needed to register a citizen request.
type NewRequest struct {
	ContactID   string
	OfficeID    string
	CategoryID  string
	Title       string
	Description string
}

// Request status and priority values assigned on creation.
const (
	RequestStatusReceived = "recebida"
	RequestPriorityMedium = "media"
)

// Request is a registered citizen request ("providência").
type Request struct {
	ID           string
	TrackingCode string
	ContactID    string
	OfficeID     string
	CategoryID   string
	Title        string
	Description  string
	Status       string
	Priority     string
	CreatedAt    time.Time
}
