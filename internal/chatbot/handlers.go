package chatbot

import (
	"context"
	"fmt"

	"github.com/ashureev/providata-intake/internal/domain"
	"github.com/ashureev/providata-intake/internal/observability"
)

const anonymousName = "Cidadão"

func reply(texts ...string) step {
	return step{replies: texts}
}

func (e *Engine) handleStart(_ context.Context, s *domain.Session, _ Input) (step, error) {
	next := s.Clone()
	next.State = domain.StateAwaitMunicipality
	next.ClearOptions()
	return step{next: next, replies: []string{msgWelcome}}, nil
}

func (e *Engine) handleMunicipality(ctx context.Context, s *domain.Session, in Input) (step, error) {
	offices, err := e.directory.FindOfficesByMunicipality(ctx, in.Text)
	if err != nil {
		return step{}, fmt.Errorf("find offices: %w", err)
	}
	if len(offices) == 0 {
		municipalities, err := e.directory.ListMunicipalitiesWithOffices(ctx)
		if err != nil {
			return step{}, fmt.Errorf("list municipalities: %w", err)
		}
		return reply(municipalityNotFound(municipalities)), nil
	}

	items := make([]domain.Option, len(offices))
	for i, o := range offices {
		items[i] = domain.Option{ID: o.ID, Name: o.Name}
	}

	next := s.Clone()
	next.State = domain.StateAwaitOffice
	next.Municipality = offices[0].Municipality
	if next.Municipality == "" {
		next.Municipality = in.Text
	}
	menu := next.OfferOptions(domain.OptionOffices, items)

	return step{
		next:    next,
		replies: []string{fmt.Sprintf(msgSelectOffice, next.Municipality, menu.Render())},
	}, nil
}

func (e *Engine) handleOffice(_ context.Context, s *domain.Session, in Input) (step, error) {
	if !s.PendingOptions.ValidFor(domain.StateAwaitOffice) {
		return step{}, fmt.Errorf("%w: no office menu pending", ErrCorruptSession)
	}
	office, ok := ValidateSelection(in, s.PendingOptions)
	if !ok {
		return reply(invalidOption(s.PendingOptions.Len())), nil
	}

	next := s.Clone()
	next.State = domain.StateAwaitName
	next.SelectedOfficeID = office.ID
	next.SelectedOfficeName = office.Name
	next.ClearOptions()

	return step{next: next, replies: []string{fmt.Sprintf(msgAskName, office.Name)}}, nil
}

func (e *Engine) handleName(_ context.Context, s *domain.Session, in Input) (step, error) {
	name, ok := ValidateName(in)
	if !ok {
		return reply(msgNameTooShort), nil
	}

	next := s.Clone()
	next.State = domain.StateAwaitTaxID
	next.Collected.FullName = name

	return step{next: next, replies: []string{fmt.Sprintf(msgAskTaxID, name)}}, nil
}

func (e *Engine) handleTaxID(ctx context.Context, s *domain.Session, in Input) (step, error) {
	taxID, ok := ValidateTaxID(in)
	if !ok {
		return reply(msgTaxIDInvalid), nil
	}
	if s.SelectedOfficeID == "" {
		return step{}, fmt.Errorf("%w: no office selected", ErrCorruptSession)
	}

	categories, err := e.directory.FindCategoriesForOffice(ctx, s.SelectedOfficeID)
	if err != nil {
		return step{}, fmt.Errorf("find categories: %w", err)
	}

	next := s.Clone()
	next.Collected.TaxID = taxID

	if len(categories) == 0 {
		next.State = domain.StateAwaitDescription
		next.Collected.CategoryID = ""
		next.Collected.CategoryName = domain.DefaultCategoryName
		return step{next: next, replies: []string{msgAskDescriptionGeneral}}, nil
	}

	items := make([]domain.Option, len(categories))
	for i, c := range categories {
		items[i] = domain.Option{ID: c.ID, Name: c.Name}
	}
	next.State = domain.StateAwaitCategory
	menu := next.OfferOptions(domain.OptionCategories, items)

	return step{next: next, replies: []string{fmt.Sprintf(msgSelectCategory, menu.Render())}}, nil
}

func (e *Engine) handleCategory(_ context.Context, s *domain.Session, in Input) (step, error) {
	if !s.PendingOptions.ValidFor(domain.StateAwaitCategory) {
		return step{}, fmt.Errorf("%w: no category menu pending", ErrCorruptSession)
	}
	category, ok := ValidateSelection(in, s.PendingOptions)
	if !ok {
		return reply(invalidOption(s.PendingOptions.Len())), nil
	}

	next := s.Clone()
	next.State = domain.StateAwaitDescription
	next.Collected.CategoryID = category.ID
	next.Collected.CategoryName = category.Name
	next.ClearOptions()

	return step{next: next, replies: []string{fmt.Sprintf(msgAskDescription, category.Name)}}, nil
}

func (e *Engine) handleDescription(_ context.Context, s *domain.Session, in Input) (step, error) {
	description, ok := ValidateDescription(in)
	if !ok {
		return reply(msgDescriptionTooShort), nil
	}

	next := s.Clone()
	next.State = domain.StateConfirm
	next.Collected.Description = description

	return step{next: next, replies: []string{summary(next)}}, nil
}

func (e *Engine) handleConfirm(ctx context.Context, s *domain.Session, in Input) (step, error) {
	switch ValidateConfirmation(in) {
	case DecisionNo:
		return step{cancel: true, replies: []string{msgCancelled}}, nil
	case DecisionUnknown:
		return reply(msgConfirmPrompt), nil
	}

	if s.SelectedOfficeID == "" {
		return step{}, fmt.Errorf("%w: no office selected", ErrCorruptSession)
	}

	name := s.Collected.FullName
	if name == "" {
		name = anonymousName
	}
	contact, err := e.directory.UpsertContact(ctx, domain.ContactInput{
		Phone:        s.Identity,
		Name:         name,
		TaxID:        s.Collected.TaxID,
		Municipality: s.Municipality,
		OfficeID:     s.SelectedOfficeID,
	})
	if err != nil {
		return step{}, fmt.Errorf("upsert contact: %w", err)
	}

	req, err := e.directory.CreateRequest(ctx, domain.NewRequest{
		ContactID:   contact.ID,
		OfficeID:    s.SelectedOfficeID,
		CategoryID:  s.Collected.CategoryID,
		Title:       requestTitle(s),
		Description: s.Collected.Description,
	})
	if err != nil {
		return step{}, fmt.Errorf("create request: %w", err)
	}
	observability.RecordRequestCreated()
	e.logger.Info("Request registered", "identity", s.Identity, "tracking_code", req.TrackingCode, "office_id", s.SelectedOfficeID)

	at := req.CreatedAt
	if at.IsZero() {
		at = e.now()
	}

	next := s.Clone()
	next.State = domain.StateDone
	next.Collected = domain.Collected{}
	next.ClearOptions()

	return step{next: next, replies: []string{created(req.TrackingCode, at.In(e.loc))}}, nil
}

func (e *Engine) handleDone(_ context.Context, _ *domain.Session, _ Input) (step, error) {
	return step{restart: true}, nil
}
