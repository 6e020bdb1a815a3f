package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusError      DocumentStatus = "error"
)

type DocumentType string

const (
	TypeBrief       DocumentType = "brief"
	TypeContract    DocumentType = "contract"
	TypeRuling      DocumentType = "ruling"
	TypeResearch    DocumentType = "research"
	TypeLegislation DocumentType = "legislation"
	TypeOther       DocumentType = "other"
)

// ValidDocumentType reports whether t is one of the declared document types.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case TypeBrief, TypeContract, TypeRuling, TypeResearch, TypeLegislation, TypeOther:
		return true
	}
	return false
}

type CaseStatus string

const (
	CaseActive   CaseStatus = "active"
	CaseArchived CaseStatus = "archived"
	CaseClosed   CaseStatus = "closed"
)

type Document struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	FileName      string         `json:"fileName"`
	StorageKey    string         `json:"-"`
	DocumentType  DocumentType   `json:"documentType"`
	Source        string         `json:"source,omitempty"`
	Status        DocumentStatus `json:"status"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	ExtractedText string         `json:"-"`
	SizeBytes     int64          `json:"sizeBytes"`
	ProcessedAt   *time.Time     `json:"processedAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Chunk is one embedded slice of a document's extracted text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SearchHit is a semantic-search result: a chunk plus its similarity score.
type SearchHit struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	FileName   string  `json:"fileName"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Attachment describes a file referenced by a chat message.
type Attachment struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"` // document | image | audio
	StorageKey string `json:"storageKey,omitempty"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"`
}

type Message struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	CaseID      string       `json:"caseId,omitempty"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Model       string       `json:"model,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Answer is one completed chat turn as returned to the client.
type Answer struct {
	Content     string    `json:"content"`
	Sources     []Source  `json:"sources,omitempty"`
	Model       string    `json:"model"`
	Approximate bool      `json:"approximate,omitempty"`
	Unsynced    bool      `json:"unsynced,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Source is a citation attached to a web-search answer.
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

type Case struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        CaseStatus `json:"status"`
	ExtractedText string     `json:"-"`
	Analysis      string     `json:"analysis,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Deadline struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"caseId"`
	UserID           string    `json:"userId"`
	Description      string    `json:"description"`
	DueAt            time.Time `json:"dueAt"`
	Completed        bool      `json:"completed"`
	NotificationSent bool      `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Overdue reports whether the deadline has passed without completion.
// Computed at read time, never stored.
func (d Deadline) Overdue(now time.Time) bool {
	return !d.Completed && d.DueAt.Before(now)
}

// CrawlerState is the last-seen content hash for one watched source URL.
type CrawlerState struct {
	ID               string     `json:"id"`
	SourceURL        string     `json:"sourceUrl"`
	ContentSelector  string     `json:"contentSelector"`
	LastContentHash  string     `json:"lastContentHash"`
	LastCheckedAt    time.Time  `json:"lastCheckedAt"`
	UpdateDetectedAt *time.Time `json:"updateDetectedAt,omitempty"`
	LastSnippet      string     `json:"lastSnippet,omitempty"`
}

// LegalUpdate is one detected change on a watched legal source.
type LegalUpdate struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	IsNew       bool      `json:"isNew"`
}

type SubscriptionFrequency string

const (
	FrequencyImmediate SubscriptionFrequency = "immediate"
	FrequencyDaily     SubscriptionFrequency = "daily"
	FrequencyWeekly    SubscriptionFrequency = "weekly"
)

type Subscription struct {
	ID           string                `json:"id"`
	UserID       string                `json:"userId"`
	Source       string                `json:"source"`
	Active       bool                  `json:"active"`
	EmailEnabled bool                  `json:"emailEnabled"`
	Frequency    SubscriptionFrequency `json:"frequency"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"` // deadline | deadline_expired | legal_update
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the identity extracted from a verified access token.
// Accounts themselves live with the external identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
