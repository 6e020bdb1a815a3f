package store

import (
	"errors"
	"time"

	"lexilegal/pkg/domain"
)

// ErrNotificationNotFound is returned when marking a notification that
// does not exist or belongs to another user.
var ErrNotificationNotFound = errors.New("notification not found")

// DocumentFilter narrows ListDocumentsByOwner.
type DocumentFilter struct {
	DocumentType domain.DocumentType
	Status       domain.DocumentStatus
}

// DeadlineWithCase joins a deadline with the owning case's title, for
// notification rendering.
type DeadlineWithCase struct {
	domain.Deadline
	CaseTitle string
}

// Store defines persistence operations for documents, chat, cases,
// crawler state, and notifications.
type Store interface {
	// documents
	SaveDocument(domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocumentsByOwner(ownerID string, filter DocumentFilter) ([]domain.Document, error)
	SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error
	SetDocumentText(id string, text string) error
	MarkDocumentProcessed(id string, at time.Time) error
	DeleteDocument(id string) error

	// embeddings
	ReplaceChunks(documentID string, chunks []domain.Chunk, vectors [][]float32) error
	CountChunks(documentID string) (int, error)
	MatchChunks(ownerID string, embedding []float32, limit int, threshold float64) ([]domain.SearchHit, error)

	// chat
	AppendChatMessage(domain.Message) error
	ListChatMessages(userID, caseID string, limit int) ([]domain.Message, error)

	// cases
	SaveCase(domain.Case) error
	GetCase(id string) (domain.Case, bool, error)
	ListCasesByUser(userID string) ([]domain.Case, error)
	AttachCaseDocument(caseID, documentID string) error
	ListCaseDocuments(caseID string) ([]domain.Document, error)

	// deadlines
	SaveDeadline(domain.Deadline) error
	ListDeadlinesByCase(caseID string) ([]domain.Deadline, error)
	ListPendingDeadlines() ([]DeadlineWithCase, error)
	SetDeadlineCompleted(id string, completed bool) error
	MarkDeadlinesNotified(ids []string) error

	// crawler
	GetCrawlerState(sourceURL string) (domain.CrawlerState, bool, error)
	InsertCrawlerState(domain.CrawlerState) error
	TouchCrawlerState(sourceURL string, at time.Time) error
	SwapCrawlerHash(sourceURL, oldHash, newHash, snippet string, at time.Time) (bool, error)
	InsertLegalUpdate(domain.LegalUpdate) error
	ListLegalUpdates(limit int) ([]domain.LegalUpdate, error)

	// subscriptions and notifications
	SaveSubscription(domain.Subscription) error
	ListSubscriptionsByUser(userID string) ([]domain.Subscription, error)
	ListActiveSubscribers(source string) ([]domain.Subscription, error)
	InsertNotifications([]domain.Notification) error
	ListNotificationsByUser(userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(id, userID string) error
}
