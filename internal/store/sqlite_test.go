package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSessionUnknownIdentity(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSession(context.Background(), "5569999999999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	session := domain.NewSession("5569999089202", now)
	session.State = domain.StateAwaitOffice
	session.Municipality = "Porto Velho"
	session.Collected.FullName = "Maria Silva"
	session.OfferOptions(domain.OptionOffices, []domain.Option{{ID: "g1", Name: "Gabinete Central"}})

	require.NoError(t, s.SaveSession(ctx, session))
	assert.Equal(t, int64(1), session.Version)

	got, err := s.GetSession(ctx, session.Identity)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StateAwaitOffice, got.State)
	assert.Equal(t, "Porto Velho", got.Municipality)
	assert.Equal(t, "Maria Silva", got.Collected.FullName)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, now.Equal(got.LastActivityAt))
	require.NotNil(t, got.PendingOptions)
	assert.Equal(t, domain.OptionOffices, got.PendingOptions.Kind)
	assert.Equal(t, "Gabinete Central", got.PendingOptions.Items[0].Name)
	assert.Equal(t, int64(1), got.OptionsVersion)
}

func TestSaveSessionDetectsStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := domain.NewSession("5569999089202", time.Now())
	require.NoError(t, s.SaveSession(ctx, session))

	first, err := s.GetSession(ctx, session.Identity)
	require.NoError(t, err)
	second, err := s.GetSession(ctx, session.Identity)
	require.NoError(t, err)

	first.State = domain.StateAwaitMunicipality
	require.NoError(t, s.SaveSession(ctx, first))

	second.State = domain.StateAwaitName
	assert.ErrorIs(t, s.SaveSession(ctx, second), ErrVersionConflict)

	got, err := s.GetSession(ctx, session.Identity)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitMunicipality, got.State)
}

func TestSaveSessionInsertConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, domain.NewSession("5569999089202", time.Now())))
	assert.ErrorIs(t, s.SaveSession(ctx, domain.NewSession("5569999089202", time.Now())), ErrVersionConflict)
}

func TestResetSessionOverwritesAnyVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := domain.NewSession("5569999089202", time.Now())
	session.State = domain.StateConfirm
	session.Collected.Description = "Buraco na rua principal"
	require.NoError(t, s.SaveSession(ctx, session))

	fresh := domain.NewSession(session.Identity, time.Now())
	require.NoError(t, s.ResetSession(ctx, fresh))
	assert.Equal(t, int64(2), fresh.Version)

	got, err := s.GetSession(ctx, session.Identity)
	require.NoError(t, err)
	assert.Equal(t, domain.StateStart, got.State)
	assert.Empty(t, got.Collected.Description)
	assert.Nil(t, got.PendingOptions)

	unseen := domain.NewSession("5511988887777", time.Now())
	require.NoError(t, s.ResetSession(ctx, unseen))
	assert.Equal(t, int64(1), unseen.Version)
}

func TestMarkProcessedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first, err := s.MarkProcessed(ctx, "3EB0ABC", now)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkProcessed(ctx, "3EB0ABC", now)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestPruneProcessed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.MarkProcessed(ctx, "old", now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = s.MarkProcessed(ctx, "new", now)
	require.NoError(t, err)

	deleted, err := s.PruneProcessed(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	first, err := s.MarkProcessed(ctx, "old", now)
	require.NoError(t, err)
	assert.True(t, first, "pruned id should be accepted again")
}

func seedOffices(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	offices := []domain.Office{
		{ID: "pvh-2", Name: "Gabinete Vereadora Ana", Municipality: "Porto Velho", UF: "RO", Active: true},
		{ID: "pvh-1", Name: "Gabinete Deputado João", Municipality: "Porto Velho", UF: "RO", Active: true},
		{ID: "jip-1", Name: "Gabinete Ji-Paraná", Municipality: "Ji-Paraná", UF: "RO", Active: true},
		{ID: "ari-1", Name: "Gabinete Inativo", Municipality: "Ariquemes", UF: "RO", Active: false},
	}
	for _, o := range offices {
		require.NoError(t, s.UpsertOffice(ctx, o))
	}
}

func TestFindOfficesByMunicipality(t *testing.T) {
	s := newTestStore(t)
	seedOffices(t, s)
	ctx := context.Background()

	got, err := s.FindOfficesByMunicipality(ctx, "porto")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Gabinete Deputado João", got[0].Name)
	assert.Equal(t, "Porto Velho", got[0].Municipality)

	got, err = s.FindOfficesByMunicipality(ctx, "JI-PARANA")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "jip-1", got[0].ID)

	got, err = s.FindOfficesByMunicipality(ctx, "Ariquemes")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.FindOfficesByMunicipality(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, got, "LIKE wildcards in input must be literal")
}

func TestListMunicipalitiesWithOffices(t *testing.T) {
	s := newTestStore(t)
	seedOffices(t, s)

	got, err := s.ListMunicipalitiesWithOffices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ji-Paraná", "Porto Velho"}, got)
}

func TestFindCategoriesFallsBackToGeneral(t *testing.T) {
	s := newTestStore(t)
	seedOffices(t, s)
	ctx := context.Background()

	require.NoError(t, s.UpsertCategory(ctx, domain.Category{ID: "c1", Name: "Saúde", OfficeID: "pvh-1", Active: true}))
	require.NoError(t, s.UpsertCategory(ctx, domain.Category{ID: "c2", Name: "Infraestrutura", OfficeID: "pvh-1", Active: true}))
	require.NoError(t, s.UpsertCategory(ctx, domain.Category{ID: "c3", Name: "Desligada", OfficeID: "pvh-1", Active: false}))
	require.NoError(t, s.UpsertCategory(ctx, domain.Category{ID: "g1", Name: "Outros", Active: true}))

	got, err := s.FindCategoriesForOffice(ctx, "pvh-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Infraestrutura", got[0].Name)

	got, err = s.FindCategoriesForOffice(ctx, "pvh-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].ID)
	assert.Empty(t, got[0].OfficeID)
}

func TestUpsertContact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertContact(ctx, domain.ContactInput{
		Phone: "5569999089202", Name: "Maria Silva", Municipality: "Porto Velho", OfficeID: "pvh-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.TaxID)

	updated, err := s.UpsertContact(ctx, domain.ContactInput{
		Phone: "5569999089202", Name: "Maria da Silva", TaxID: "12345678909", OfficeID: "jip-1",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Maria da Silva", updated.Name)
	assert.Equal(t, "12345678909", updated.TaxID)
	assert.Equal(t, "Porto Velho", updated.Municipality)
	assert.Equal(t, "pvh-1", updated.OfficeID)
}

func TestCreateRequestRetriesTrackingCodeCollision(t *testing.T) {
	codes := []string{"PROV-20261014-0001", "PROV-20261014-0001", "PROV-20261014-0002"}
	next := 0
	s := newTestStore(t, WithTrackingCodes(func(time.Time) string {
		code := codes[next]
		next++
		return code
	}))
	ctx := context.Background()

	contact, err := s.UpsertContact(ctx, domain.ContactInput{Phone: "5569999089202", Name: "Maria Silva"})
	require.NoError(t, err)

	in := domain.NewRequest{ContactID: contact.ID, OfficeID: "pvh-1", Title: "[WhatsApp] Geral - Buraco", Description: "Buraco na rua principal"}

	first, err := s.CreateRequest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "PROV-20261014-0001", first.TrackingCode)
	assert.Equal(t, domain.RequestStatusReceived, first.Status)

	second, err := s.CreateRequest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "PROV-20261014-0002", second.TrackingCode)

	var history int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_history WHERE action = 'criacao'`).Scan(&history))
	assert.Equal(t, 2, history)
}

func TestLoadSeed(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "seed.json")
	doc := `{
		"gabinetes": [{"id": "pvh-1", "nome": "Gabinete Central", "municipio": "Porto Velho", "uf": "RO"}],
		"categorias": [{"id": "c1", "nome": "Saúde", "gabinete_id": "pvh-1"}, {"id": "c2", "nome": "Antiga", "ativo": false}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	offices, categories, err := LoadSeed(context.Background(), s, path)
	require.NoError(t, err)
	assert.Equal(t, 1, offices)
	assert.Equal(t, 2, categories)

	got, err := s.FindOfficesByMunicipality(context.Background(), "porto velho")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Active)
}
