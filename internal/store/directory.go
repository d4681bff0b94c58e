package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/ashureev/providata-intake/internal/shared"
	"github.com/google/uuid"
)

const historyNoteWhatsApp = "Providência registrada via WhatsApp"

func newUUID() string {
	return uuid.NewString()
}

// UpsertOffice creates or updates an office.
func (s *SQLiteStore) UpsertOffice(ctx context.Context, office domain.Office) error {
	if office.ID == "" {
		office.ID = s.newID()
	}
	query := `
	INSERT INTO offices (id, name, municipality, municipality_folded, uf, active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		municipality = excluded.municipality,
		municipality_folded = excluded.municipality_folded,
		uf = excluded.uf,
		active = excluded.active`

	_, err := s.db.ExecContext(ctx, query,
		office.ID, office.Name, office.Municipality, shared.Fold(office.Municipality),
		office.UF, office.Active, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert office: %w", err)
	}
	return nil
}

// UpsertCategory creates or updates a category.
func (s *SQLiteStore) UpsertCategory(ctx context.Context, category domain.Category) error {
	if category.ID == "" {
		category.ID = s.newID()
	}
	query := `
	INSERT INTO categories (id, name, office_id, active, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		office_id = excluded.office_id,
		active = excluded.active`

	_, err := s.db.ExecContext(ctx, query,
		category.ID, category.Name, nullString(category.OfficeID), category.Active, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// FindOfficesByMunicipality returns active offices whose municipality contains the given text.
func (s *SQLiteStore) FindOfficesByMunicipality(ctx context.Context, municipality string) ([]domain.Office, error) {
	folded := shared.Fold(municipality)
	if folded == "" {
		return nil, nil
	}

	query := `
		SELECT id, name, municipality, uf, active
		FROM offices
		WHERE active = 1 AND municipality_folded LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, escapeLike(folded))
	if err != nil {
		return nil, fmt.Errorf("query offices: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close office rows", "error", closeErr)
		}
	}()

	var offices []domain.Office
	for rows.Next() {
		var o domain.Office
		if err := rows.Scan(&o.ID, &o.Name, &o.Municipality, &o.UF, &o.Active); err != nil {
			return nil, fmt.Errorf("scan office row: %w", err)
		}
		offices = append(offices, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offices: %w", err)
	}
	return offices, nil
}

// ListMunicipalitiesWithOffices returns the municipalities served by an active office.
func (s *SQLiteStore) ListMunicipalitiesWithOffices(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT municipality FROM offices
		WHERE active = 1 AND municipality <> ''
		ORDER BY municipality`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query municipalities: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close municipality rows", "error", closeErr)
		}
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan municipality row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate municipalities: %w", err)
	}
	return names, nil
}

// FindCategoriesForOffice returns the office's categories, falling back to the general ones.
func (s *SQLiteStore) FindCategoriesForOffice(ctx context.Context, officeID string) ([]domain.Category, error) {
	categories, err := s.queryCategories(ctx, `
		SELECT id, name, office_id, active FROM categories
		WHERE office_id = ? AND active = 1 ORDER BY name`, officeID)
	if err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		return categories, nil
	}

	return s.queryCategories(ctx, `
		SELECT id, name, office_id, active FROM categories
		WHERE office_id IS NULL AND active = 1 ORDER BY name`)
}

func (s *SQLiteStore) queryCategories(ctx context.Context, query string, args ...interface{}) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close category rows", "error", closeErr)
		}
	}()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		var officeID sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &officeID, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		c.OfficeID = officeID.String
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// UpsertContact finds the contact by phone or creates it. Name, tax id and
// municipality are updated when provided; the office is kept from creation.
func (s *SQLiteStore) UpsertContact(ctx context.Context, in domain.ContactInput) (domain.Contact, error) {
	now := s.now().Unix()
	query := `
	INSERT INTO contacts (id, name, phone, tax_id, municipality, office_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(phone) DO UPDATE SET
		name = COALESCE(NULLIF(excluded.name, ''), contacts.name),
		tax_id = COALESCE(excluded.tax_id, contacts.tax_id),
		municipality = COALESCE(excluded.municipality, contacts.municipality),
		updated_at = excluded.updated_at
	RETURNING id, name, phone, tax_id, municipality, office_id`

	var c domain.Contact
	var taxID, municipality, officeID sql.NullString
	err := shared.RetryOnConflict(ctx, s.retry, "upsert_contact", func() error {
		return s.db.QueryRowContext(ctx, query,
			s.newID(), in.Name, in.Phone, nullString(in.TaxID),
			nullString(in.Municipality), nullString(in.OfficeID), now, now,
		).Scan(&c.ID, &c.Name, &c.Phone, &taxID, &municipality, &officeID)
	})
	if err != nil {
		return domain.Contact{}, fmt.Errorf("upsert contact: %w", err)
	}

	c.TaxID = taxID.String
	c.Municipality = municipality.String
	c.OfficeID = officeID.String
	return c, nil
}

// CreateRequest inserts the request and its creation history entry in one
// transaction, regenerating the tracking code on a uniqueness collision.
func (s *SQLiteStore) CreateRequest(ctx context.Context, in domain.NewRequest) (domain.Request, error) {
	var lastErr error
	for attempt := 0; attempt < s.codeTries; attempt++ {
		req := domain.Request{
			ID:           s.newID(),
			TrackingCode: s.newCode(s.now()),
			ContactID:    in.ContactID,
			OfficeID:     in.OfficeID,
			CategoryID:   in.CategoryID,
			Title:        in.Title,
			Description:  in.Description,
			Status:       domain.RequestStatusReceived,
			Priority:     domain.RequestPriorityMedium,
			CreatedAt:    s.now(),
		}

		err := shared.RetryOnConflict(ctx, s.retry, "create_request", func() error {
			return s.insertRequest(ctx, req)
		})
		if err == nil {
			return req, nil
		}
		if !shared.IsSQLiteUniqueError(err) {
			return domain.Request{}, fmt.Errorf("create request: %w", err)
		}

		slog.Debug("Tracking code collision, regenerating", "tracking_code", req.TrackingCode, "attempt", attempt+1)
		lastErr = err
	}
	return domain.Request{}, fmt.Errorf("create request after %d attempts: %w", s.codeTries, lastErr)
}

func (s *SQLiteStore) insertRequest(ctx context.Context, req domain.Request) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back request insert", "error", rbErr)
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (id, tracking_code, contact_id, office_id, category_id,
			title, description, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.TrackingCode, req.ContactID, req.OfficeID, nullString(req.CategoryID),
		req.Title, req.Description, req.Status, req.Priority, req.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO request_history (id, request_id, action, status_previous, status_new, note, created_at)
		VALUES (?, ?, 'criacao', NULL, ?, ?, ?)`,
		s.newID(), req.ID, req.Status, historyNoteWhatsApp, req.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
