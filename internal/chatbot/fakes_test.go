package chatbot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/ashureev/providata-intake/internal/store"
)

var errBoom = errors.New("boom")

// memorySessions is an in-memory SessionStore with the same version semantics as SQLite.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	saveErr  error
	getErr   error
	writes   int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]domain.Session)}
}

func (m *memorySessions) GetSession(_ context.Context, identity string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[identity]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *memorySessions) SaveSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	current, ok := m.sessions[session.Identity]
	switch {
	case session.Version == 0 && ok:
		return store.ErrVersionConflict
	case session.Version != 0 && (!ok || current.Version != session.Version):
		return store.ErrVersionConflict
	}
	session.Version++
	m.sessions[session.Identity] = *session.Clone()
	m.writes++
	return nil
}

func (m *memorySessions) ResetSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	session.Version = m.sessions[session.Identity].Version + 1
	m.sessions[session.Identity] = *session.Clone()
	m.writes++
	return nil
}

// put stores a session as-is, bypassing version checks.
func (m *memorySessions) put(s *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Version == 0 {
		s.Version = 1
	}
	m.sessions[s.Identity] = *s.Clone()
}

func (m *memorySessions) get(identity string) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[identity]
	if !ok {
		return nil
	}
	return s.Clone()
}

// fakeDirectory serves offices and categories from memory and records writes.
type fakeDirectory struct {
	mu         sync.Mutex
	offices    []domain.Office
	categories map[string][]domain.Category
	contacts   []domain.ContactInput
	requests   []domain.NewRequest
	findErr    error
	createErr  error
}

func (f *fakeDirectory) FindOfficesByMunicipality(_ context.Context, municipality string) ([]domain.Office, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []domain.Office
	for _, o := range f.offices {
		if municipality != "" && ParseInput(o.Municipality).Folded == ParseInput(municipality).Folded {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListMunicipalitiesWithOffices(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, o := range f.offices {
		if !seen[o.Municipality] {
			seen[o.Municipality] = true
			out = append(out, o.Municipality)
		}
	}
	return out, nil
}

func (f *fakeDirectory) FindCategoriesForOffice(_ context.Context, officeID string) ([]domain.Category, error) {
	return f.categories[officeID], nil
}

func (f *fakeDirectory) UpsertContact(_ context.Context, in domain.ContactInput) (domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, in)
	return domain.Contact{ID: "contact-1", Name: in.Name, Phone: in.Phone, TaxID: in.TaxID}, nil
}

func (f *fakeDirectory) CreateRequest(_ context.Context, in domain.NewRequest) (domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Request{}, f.createErr
	}
	f.requests = append(f.requests, in)
	return domain.Request{
		ID:           "request-1",
		TrackingCode: domain.NewTrackingCode(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)),
		ContactID:    in.ContactID,
		OfficeID:     in.OfficeID,
		Title:        in.Title,
		Status:       domain.RequestStatusReceived,
	}, nil
}

func (f *fakeDirectory) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.contacts) + len(f.requests)
}

// recordingMessenger keeps every outbound message.
type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	To   string
	Text string
}

func (r *recordingMessenger) Send(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{To: to, Text: text})
	return r.err
}

func (r *recordingMessenger) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Text
	}
	return out
}

func (r *recordingMessenger) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
