// Package domain contains core domain types for the ProviDATA intake service.
package domain

import (
	"time"
)

// State is a position in the intake dialogue.
type State string

const (
	StateStart             State = "inicio"
	StateAwaitMunicipality State = "aguardando_cidade"
	StateAwaitOffice       State = "aguardando_gabinete"
	StateAwaitName         State = "aguardando_nome"
	StateAwaitTaxID        State = "aguardando_cpf"
	StateAwaitCategory     State = "aguardando_categoria"
	StateAwaitDescription  State = "aguardando_descricao"
	StateConfirm           State = "confirmacao"
	StateDone              State = "finalizado"
)

// Known reports whether s is one of the enumerated dialogue states.
func (s State) Known() bool {
	switch s {
	case StateStart, StateAwaitMunicipality, StateAwaitOffice, StateAwaitName,
		StateAwaitTaxID, StateAwaitCategory, StateAwaitDescription, StateConfirm, StateDone:
		return true
	}
	return false
}

// Session is the persisted dialogue state for one identity.
type Session struct {
	Identity           string
	State              State
	Municipality       string
	SelectedOfficeID   string
	SelectedOfficeName string
	Collected          Collected
	PendingOptions     *OptionRegistry
	// OptionsVersion counts the registries offered in this session.
	OptionsVersion int64
	LastActivityAt time.Time
	// Version is bumped by the store on every write. Zero means never persisted.
	Version int64
}

// Collected holds the fields captured so far.
type Collected struct {
	FullName     string `json:"nome_completo,omitempty"`
	TaxID        string `json:"cpf,omitempty"`
	CategoryID   string `json:"categoria_id,omitempty"`
	CategoryName string `json:"categoria_nome,omitempty"`
	Description  string `json:"descricao,omitempty"`
}

// NewSession returns a fresh session in the initial state.
func NewSession(identity string, now time.Time) *Session {
	return &Session{
		Identity:       identity,
		State:          StateStart,
		LastActivityAt: now,
	}
}

// Expired reports whether the session has been idle for longer than timeout.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) > timeout
}

// OfferOptions replaces the pending registry with a new numbered menu.
func (s *Session) OfferOptions(kind OptionKind, items []Option) *OptionRegistry {
	s.OptionsVersion++
	s.PendingOptions = &OptionRegistry{Kind: kind, Version: s.OptionsVersion, Items: items}
	return s.PendingOptions
}

// ClearOptions discards the pending registry.
func (s *Session) ClearOptions() {
	s.PendingOptions = nil
}

// Clone returns a deep copy suitable for computing the next state.
func (s *Session) Clone() *Session {
	c := *s
	if s.PendingOptions != nil {
		opts := *s.PendingOptions
		opts.Items = append([]Option(nil), s.PendingOptions.Items...)
		c.PendingOptions = &opts
	}
	return &c
}
