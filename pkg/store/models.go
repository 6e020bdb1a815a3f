package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type DocumentModel struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"not null;index"`
	FileName      string `gorm:"not null"`
	StorageKey    string
	DocumentType  string `gorm:"not null;index"`
	Source        string
	Status        string `gorm:"not null;index"`
	ErrorMessage  string
	ExtractedText string `gorm:"type:text"`
	SizeBytes     int64
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type DocumentEmbeddingModel struct {
	ID         string `gorm:"primaryKey"`
	DocumentID string `gorm:"not null;index"`
	ChunkIndex int    `gorm:"not null"`
	Content    string `gorm:"type:text;not null"`
	Embedding  *pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt  time.Time `gorm:"not null"`
}

type ChatMessageModel struct {
	ID          string  `gorm:"primaryKey"`
	UserID      string  `gorm:"not null;index"`
	CaseID      *string `gorm:"index"`
	Role        string  `gorm:"not null"`
	Content     string  `gorm:"type:text;not null"`
	Attachments datatypes.JSON `gorm:"type:jsonb"`
	Model       string
	CreatedAt   time.Time `gorm:"not null;index"`
}

type CaseModel struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Description   string `gorm:"type:text"`
	Status        string `gorm:"not null"`
	ExtractedText string `gorm:"type:text"`
	Analysis      string `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type CaseDocumentModel struct {
	CaseID     string `gorm:"primaryKey"`
	DocumentID string `gorm:"primaryKey"`
	CreatedAt  time.Time `gorm:"not null"`
}

type LegalDeadlineModel struct {
	ID               string `gorm:"primaryKey"`
	CaseID           string `gorm:"not null;index"`
	UserID           string `gorm:"not null;index"`
	Description      string `gorm:"not null"`
	DueAt            time.Time `gorm:"not null;index"`
	Completed        bool      `gorm:"not null"`
	NotificationSent bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

type CrawlerStateModel struct {
	ID               string `gorm:"primaryKey"`
	SourceURL        string `gorm:"uniqueIndex;not null"`
	ContentSelector  string
	LastContentHash  string    `gorm:"not null"`
	LastCheckedAt    time.Time `gorm:"not null"`
	UpdateDetectedAt *time.Time
	LastSnippet      string `gorm:"type:text"`
}

type LegalUpdateModel struct {
	ID          string `gorm:"primaryKey"`
	Source      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	URL         string
	PublishedAt time.Time `gorm:"not null;index"`
	IsNew       bool      `gorm:"not null"`
}

type SubscriptionModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;index;uniqueIndex:idx_subscription_user_source"`
	Source       string `gorm:"not null;uniqueIndex:idx_subscription_user_source"`
	Active       bool   `gorm:"not null"`
	EmailEnabled bool   `gorm:"not null"`
	Frequency    string `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type NotificationModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Content   string `gorm:"type:text;not null"`
	Type      string `gorm:"not null"`
	Read      bool   `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
