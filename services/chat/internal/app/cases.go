package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"lexilegal/pkg/domain"
)

// CaseDetail is a case together with its linked documents and deadlines.
type CaseDetail struct {
	domain.Case
	Documents []domain.Document `json:"documents"`
	Deadlines []DeadlineView    `json:"deadlines"`
}

// DeadlineView adds the computed overdue flag to a stored deadline.
type DeadlineView struct {
	domain.Deadline
	Overdue bool `json:"overdue"`
}

// CreateCase registers a new case for the user.
func (a *App) CreateCase(user domain.User, title, description string) (domain.Case, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Case{}, errors.New("title required")
	}
	now := time.Now().UTC()
	c := domain.Case{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      domain.CaseActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveCase(c); err != nil {
		return domain.Case{}, fmt.Errorf("save case: %w", err)
	}
	return c, nil
}

// ListCases returns the user's cases, newest first.
func (a *App) ListCases(user domain.User) ([]domain.Case, error) {
	return a.store.ListCasesByUser(user.ID)
}

// GetCase returns one case with its documents and deadlines.
func (a *App) GetCase(user domain.User, id string) (CaseDetail, error) {
	c, err := a.getOwnedCase(user, id)
	if err != nil {
		return CaseDetail{}, err
	}
	docs, err := a.store.ListCaseDocuments(id)
	if err != nil {
		return CaseDetail{}, fmt.Errorf("list case documents: %w", err)
	}
	deadlines, err := a.store.ListDeadlinesByCase(id)
	if err != nil {
		return CaseDetail{}, fmt.Errorf("list deadlines: %w", err)
	}
	now := time.Now().UTC()
	views := make([]DeadlineView, 0, len(deadlines))
	for _, d := range deadlines {
		views = append(views, DeadlineView{Deadline: d, Overdue: d.Overdue(now)})
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return CaseDetail{Case: c, Documents: docs, Deadlines: views}, nil
}

// UpdateCaseStatus moves a case between active, archived, and closed.
func (a *App) UpdateCaseStatus(user domain.User, id string, status domain.CaseStatus) (domain.Case, error) {
	switch status {
	case domain.CaseActive, domain.CaseArchived, domain.CaseClosed:
	default:
		return domain.Case{}, fmt.Errorf("invalid case status: %s", status)
	}
	c, err := a.getOwnedCase(user, id)
	if err != nil {
		return domain.Case{}, err
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveCase(c); err != nil {
		return domain.Case{}, fmt.Errorf("save case: %w", err)
	}
	return c, nil
}

// AttachDocument links one of the user's documents to the case.
func (a *App) AttachDocument(user domain.User, caseID, documentID string) error {
	if _, err := a.getOwnedCase(user, caseID); err != nil {
		return err
	}
	doc, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return err
	}
	if !ok || doc.OwnerID != user.ID {
		return errors.New("document not found")
	}
	return a.store.AttachCaseDocument(caseID, documentID)
}

// CreateDeadline adds a deadline to the case.
func (a *App) CreateDeadline(user domain.User, caseID, description string, dueAt time.Time) (domain.Deadline, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Deadline{}, errors.New("description required")
	}
	if dueAt.IsZero() {
		return domain.Deadline{}, errors.New("dueAt required")
	}
	if _, err := a.getOwnedCase(user, caseID); err != nil {
		return domain.Deadline{}, err
	}
	d := domain.Deadline{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		UserID:      user.ID,
		Description: description,
		DueAt:       dueAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.SaveDeadline(d); err != nil {
		return domain.Deadline{}, fmt.Errorf("save deadline: %w", err)
	}
	return d, nil
}

// SetDeadlineCompleted flips a deadline's completion flag.
func (a *App) SetDeadlineCompleted(user domain.User, caseID, deadlineID string, completed bool) error {
	if _, err := a.getOwnedCase(user, caseID); err != nil {
		return err
	}
	deadlines, err := a.store.ListDeadlinesByCase(caseID)
	if err != nil {
		return err
	}
	for _, d := range deadlines {
		if d.ID == deadlineID {
			return a.store.SetDeadlineCompleted(deadlineID, completed)
		}
	}
	return ErrDeadlineNotFound
}

func (a *App) getOwnedCase(user domain.User, id string) (domain.Case, error) {
	c, ok, err := a.store.GetCase(id)
	if err != nil {
		return domain.Case{}, fmt.Errorf("load case: %w", err)
	}
	if !ok {
		return domain.Case{}, ErrCaseNotFound
	}
	if c.UserID != user.ID {
		return domain.Case{}, ErrCaseForbidden
	}
	return c, nil
}
