package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"lexilegal/pkg/domain"
)

const migrateLockID int64 = 52315231

// GormStore implements Store using GORM + Postgres with pgvector.
type GormStore struct {
	db           *gorm.DB
	embeddingDim int
}

type GormStoreOptions struct {
	EmbeddingDim int
}

type GormStoreOption func(*GormStoreOptions)

// WithEmbeddingDim sets the canonical embedding dimension used by storage.
func WithEmbeddingDim(dim int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.EmbeddingDim = dim
	}
}

const defaultEmbeddingDim = 1536

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	embeddingDim := opts.EmbeddingDim
	if embeddingDim <= 0 {
		embeddingDim = defaultEmbeddingDim
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create pgvector extension: %w", err)
		}
		if err := tx.AutoMigrate(
			&DocumentModel{},
			&DocumentEmbeddingModel{},
			&ChatMessageModel{},
			&CaseModel{},
			&CaseDocumentModel{},
			&LegalDeadlineModel{},
			&CrawlerStateModel{},
			&LegalUpdateModel{},
			&SubscriptionModel{},
			&NotificationModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(`
			DO $$
			BEGIN
			IF EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'document_embedding_models' AND column_name = 'embedding'
			) THEN
				ALTER TABLE document_embedding_models ALTER COLUMN embedding TYPE vector(%d);
			END IF;
			END $$;
		`, embeddingDim)).Error; err != nil {
			return fmt.Errorf("alter embedding type: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM document_embedding_models e
				WHERE NOT EXISTS (SELECT 1 FROM document_models d WHERE d.id = e.document_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'document_embedding_models'
					AND constraint_name = 'document_embeddings_document_id_fkey'
				) THEN
					ALTER TABLE document_embedding_models
					ADD CONSTRAINT document_embeddings_document_id_fkey
					FOREIGN KEY (document_id) REFERENCES document_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure embedding foreign key: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, embeddingDim: embeddingDim}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveDocument inserts or updates a document row.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model := documentToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_name", "storage_key", "document_type", "source", "status", "error_message", "size_bytes", "updated_at"}),
	}).Create(&model).Error
}

// GetDocument retrieves a document by ID.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocumentsByOwner returns the owner's documents, newest first.
func (s *GormStore) ListDocumentsByOwner(ownerID string, filter DocumentFilter) ([]domain.Document, error) {
	tx := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC")
	if filter.DocumentType != "" {
		tx = tx.Where("document_type = ?", string(filter.DocumentType))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var models []DocumentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, documentFromModel(m))
	}
	return docs, nil
}

// SetDocumentStatus updates document status/error.
func (s *GormStore) SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error {
	return s.db.Model(&DocumentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// SetDocumentText stores the extracted text.
func (s *GormStore) SetDocumentText(id string, text string) error {
	return s.db.Model(&DocumentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"extracted_text": text,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// MarkDocumentProcessed sets the terminal processed state with a timestamp.
func (s *GormStore) MarkDocumentProcessed(id string, at time.Time) error {
	return s.db.Model(&DocumentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(domain.StatusProcessed),
			"error_message": "",
			"processed_at":  at.UTC(),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DeleteDocument removes the row; embeddings go via FK cascade.
func (s *GormStore) DeleteDocument(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&CaseDocumentModel{}, "document_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&DocumentModel{}, "id = ?", id).Error
	})
}

// ReplaceChunks replaces all embedding rows for a document. chunks and
// vectors are parallel slices; callers pass only successfully embedded
// chunks. Replacement keeps reprocessing idempotent.
func (s *GormStore) ReplaceChunks(documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for _, vec := range vectors {
		if err := s.validateEmbeddingDim(vec); err != nil {
			return err
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&DocumentEmbeddingModel{}, "document_id = ?", documentID).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		models := make([]DocumentEmbeddingModel, 0, len(chunks))
		for i, chunk := range chunks {
			vec := pgvector.NewVector(vectors[i])
			models = append(models, DocumentEmbeddingModel{
				ID:         chunk.ID,
				DocumentID: documentID,
				ChunkIndex: chunk.Index,
				Content:    chunk.Content,
				Embedding:  &vec,
				CreatedAt:  chunk.CreatedAt,
			})
		}
		return tx.CreateInBatches(&models, 200).Error
	})
}

// CountChunks returns the number of embedding rows for a document.
func (s *GormStore) CountChunks(documentID string) (int, error) {
	var count int64
	if err := s.db.Model(&DocumentEmbeddingModel{}).Where("document_id = ?", documentID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// MatchChunks finds the owner's nearest chunks by cosine similarity above
// the threshold.
func (s *GormStore) MatchChunks(ownerID string, embedding []float32, limit int, threshold float64) ([]domain.SearchHit, error) {
	if limit <= 0 {
		return []domain.SearchHit{}, nil
	}
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	var rows []struct {
		ID         string
		DocumentID string
		FileName   string
		Content    string
		Similarity float64
	}
	err := s.db.Raw(`
		SELECT e.id, e.document_id, d.file_name, e.content,
		       1 - (e.embedding <=> ?) AS similarity
		FROM document_embedding_models e
		JOIN document_models d ON d.id = e.document_id
		WHERE d.owner_id = ?
		  AND e.embedding IS NOT NULL
		  AND 1 - (e.embedding <=> ?) > ?
		ORDER BY e.embedding <=> ?
		LIMIT ?`, vec, ownerID, vec, threshold, vec, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, domain.SearchHit{
			ChunkID:    row.ID,
			DocumentID: row.DocumentID,
			FileName:   row.FileName,
			Content:    row.Content,
			Similarity: row.Similarity,
		})
	}
	return hits, nil
}

func (s *GormStore) validateEmbeddingDim(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if s.embeddingDim > 0 && len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.embeddingDim)
	}
	return nil
}

// AppendChatMessage records a message.
func (s *GormStore) AppendChatMessage(msg domain.Message) error {
	model, err := messageToModel(msg)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// ListChatMessages returns recent messages in chronological order.
// Empty caseID selects the general (non-case) chat.
func (s *GormStore) ListChatMessages(userID, caseID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	tx := s.db.Where("user_id = ?", userID)
	if caseID == "" {
		tx = tx.Where("case_id IS NULL")
	} else {
		tx = tx.Where("case_id = ?", caseID)
	}
	var models []ChatMessageModel
	if err := tx.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msg, err := messageFromModel(models[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// SaveCase inserts or updates a case.
func (s *GormStore) SaveCase(c domain.Case) error {
	model := caseToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "status", "extracted_text", "analysis", "updated_at"}),
	}).Create(&model).Error
}

// GetCase retrieves one case.
func (s *GormStore) GetCase(id string) (domain.Case, bool, error) {
	var model CaseModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Case{}, false, nil
		}
		return domain.Case{}, false, err
	}
	return caseFromModel(model), true, nil
}

// ListCasesByUser returns the user's cases, newest first.
func (s *GormStore) ListCasesByUser(userID string) ([]domain.Case, error) {
	var models []CaseModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	cases := make([]domain.Case, 0, len(models))
	for _, m := range models {
		cases = append(cases, caseFromModel(m))
	}
	return cases, nil
}

// AttachCaseDocument links a document to a case (idempotent).
func (s *GormStore) AttachCaseDocument(caseID, documentID string) error {
	model := CaseDocumentModel{CaseID: caseID, DocumentID: documentID, CreatedAt: time.Now().UTC()}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// ListCaseDocuments returns documents linked to a case.
func (s *GormStore) ListCaseDocuments(caseID string) ([]domain.Document, error) {
	var models []DocumentModel
	err := s.db.
		Joins("JOIN case_document_models cd ON cd.document_id = document_models.id").
		Where("cd.case_id = ?", caseID).
		Order("document_models.created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, documentFromModel(m))
	}
	return docs, nil
}

// SaveDeadline inserts or updates a deadline.
func (s *GormStore) SaveDeadline(d domain.Deadline) error {
	model := deadlineToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "due_at", "completed"}),
	}).Create(&model).Error
}

// ListDeadlinesByCase returns deadlines for a case ordered by due date.
func (s *GormStore) ListDeadlinesByCase(caseID string) ([]domain.Deadline, error) {
	var models []LegalDeadlineModel
	if err := s.db.Where("case_id = ?", caseID).Order("due_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	deadlines := make([]domain.Deadline, 0, len(models))
	for _, m := range models {
		deadlines = append(deadlines, deadlineFromModel(m))
	}
	return deadlines, nil
}

// ListPendingDeadlines returns not-completed, not-yet-notified deadlines
// joined with their case title.
func (s *GormStore) ListPendingDeadlines() ([]DeadlineWithCase, error) {
	var rows []struct {
		LegalDeadlineModel
		CaseTitle string
	}
	err := s.db.Model(&LegalDeadlineModel{}).
		Select("legal_deadline_models.*, case_models.title AS case_title").
		Joins("JOIN case_models ON case_models.id = legal_deadline_models.case_id").
		Where("legal_deadline_models.completed = ? AND legal_deadline_models.notification_sent = ?", false, false).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]DeadlineWithCase, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeadlineWithCase{Deadline: deadlineFromModel(row.LegalDeadlineModel), CaseTitle: row.CaseTitle})
	}
	return out, nil
}

// SetDeadlineCompleted flips the completion flag.
func (s *GormStore) SetDeadlineCompleted(id string, completed bool) error {
	return s.db.Model(&LegalDeadlineModel{}).Where("id = ?", id).
		Update("completed", completed).Error
}

// MarkDeadlinesNotified records that notifications went out.
func (s *GormStore) MarkDeadlinesNotified(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Model(&LegalDeadlineModel{}).Where("id IN ?", ids).
		Update("notification_sent", true).Error
}

// GetCrawlerState returns the stored state for a source URL.
func (s *GormStore) GetCrawlerState(sourceURL string) (domain.CrawlerState, bool, error) {
	var model CrawlerStateModel
	if err := s.db.First(&model, "source_url = ?", sourceURL).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.CrawlerState{}, false, nil
		}
		return domain.CrawlerState{}, false, err
	}
	return crawlerStateFromModel(model), true, nil
}

// InsertCrawlerState creates the first-check row for a source URL.
// The unique index on source_url rejects concurrent duplicate inserts.
func (s *GormStore) InsertCrawlerState(state domain.CrawlerState) error {
	model := crawlerStateToModel(state)
	return s.db.Create(&model).Error
}

// TouchCrawlerState updates only the last-checked timestamp.
func (s *GormStore) TouchCrawlerState(sourceURL string, at time.Time) error {
	return s.db.Model(&CrawlerStateModel{}).Where("source_url = ?", sourceURL).
		Update("last_checked_at", at.UTC()).Error
}

// SwapCrawlerHash performs a compare-and-swap on the stored content hash.
// Returns false when the stored hash no longer matches oldHash, meaning a
// concurrent run already recorded the change.
func (s *GormStore) SwapCrawlerHash(sourceURL, oldHash, newHash, snippet string, at time.Time) (bool, error) {
	res := s.db.Model(&CrawlerStateModel{}).
		Where("source_url = ? AND last_content_hash = ?", sourceURL, oldHash).
		Updates(map[string]any{
			"last_content_hash":  newHash,
			"last_checked_at":    at.UTC(),
			"update_detected_at": gorm.Expr("COALESCE(update_detected_at, ?)", at.UTC()),
			"last_snippet":       snippet,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// InsertLegalUpdate appends one detected change.
func (s *GormStore) InsertLegalUpdate(u domain.LegalUpdate) error {
	model := legalUpdateToModel(u)
	return s.db.Create(&model).Error
}

// ListLegalUpdates returns the latest updates, newest first.
func (s *GormStore) ListLegalUpdates(limit int) ([]domain.LegalUpdate, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []LegalUpdateModel
	if err := s.db.Order("published_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	updates := make([]domain.LegalUpdate, 0, len(models))
	for _, m := range models {
		updates = append(updates, legalUpdateFromModel(m))
	}
	return updates, nil
}

// SaveSubscription upserts on (user_id, source).
func (s *GormStore) SaveSubscription(sub domain.Subscription) error {
	model := subscriptionToModel(sub)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "email_enabled", "frequency", "updated_at"}),
	}).Create(&model).Error
}

// ListSubscriptionsByUser returns the user's subscriptions.
func (s *GormStore) ListSubscriptionsByUser(userID string) ([]domain.Subscription, error) {
	var models []SubscriptionModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	subs := make([]domain.Subscription, 0, len(models))
	for _, m := range models {
		subs = append(subs, subscriptionFromModel(m))
	}
	return subs, nil
}

// ListActiveSubscribers returns active subscriptions for a source.
func (s *GormStore) ListActiveSubscribers(source string) ([]domain.Subscription, error) {
	var models []SubscriptionModel
	if err := s.db.Where("source = ? AND active = ?", source, true).Find(&models).Error; err != nil {
		return nil, err
	}
	subs := make([]domain.Subscription, 0, len(models))
	for _, m := range models {
		subs = append(subs, subscriptionFromModel(m))
	}
	return subs, nil
}

// InsertNotifications appends notifications in one batch.
func (s *GormStore) InsertNotifications(items []domain.Notification) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]NotificationModel, 0, len(items))
	for _, n := range items {
		models = append(models, notificationToModel(n))
	}
	return s.db.CreateInBatches(&models, 200).Error
}

// ListNotificationsByUser returns the user's notifications, newest first.
func (s *GormStore) ListNotificationsByUser(userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []NotificationModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		items = append(items, notificationFromModel(m))
	}
	return items, nil
}

// MarkNotificationRead flips the read flag, scoped to the owner.
func (s *GormStore) MarkNotificationRead(id, userID string) error {
	res := s.db.Model(&NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:            d.ID,
		OwnerID:       d.OwnerID,
		FileName:      d.FileName,
		StorageKey:    d.StorageKey,
		DocumentType:  string(d.DocumentType),
		Source:        d.Source,
		Status:        string(d.Status),
		ErrorMessage:  d.ErrorMessage,
		ExtractedText: d.ExtractedText,
		SizeBytes:     d.SizeBytes,
		ProcessedAt:   d.ProcessedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		FileName:      m.FileName,
		StorageKey:    m.StorageKey,
		DocumentType:  domain.DocumentType(m.DocumentType),
		Source:        m.Source,
		Status:        domain.DocumentStatus(m.Status),
		ErrorMessage:  m.ErrorMessage,
		ExtractedText: m.ExtractedText,
		SizeBytes:     m.SizeBytes,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) (ChatMessageModel, error) {
	model := ChatMessageModel{
		ID:        msg.ID,
		UserID:    msg.UserID,
		Role:      msg.Role,
		Content:   msg.Content,
		Model:     msg.Model,
		CreatedAt: msg.CreatedAt,
	}
	if msg.CaseID != "" {
		caseID := msg.CaseID
		model.CaseID = &caseID
	}
	if len(msg.Attachments) > 0 {
		raw, err := json.Marshal(msg.Attachments)
		if err != nil {
			return ChatMessageModel{}, fmt.Errorf("marshal attachments: %w", err)
		}
		model.Attachments = datatypes.JSON(raw)
	}
	return model, nil
}

func messageFromModel(m ChatMessageModel) (domain.Message, error) {
	msg := domain.Message{
		ID:        m.ID,
		UserID:    m.UserID,
		Role:      m.Role,
		Content:   m.Content,
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
	}
	if m.CaseID != nil {
		msg.CaseID = *m.CaseID
	}
	if len(m.Attachments) > 0 {
		if err := json.Unmarshal(m.Attachments, &msg.Attachments); err != nil {
			return domain.Message{}, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return msg, nil
}

func caseToModel(c domain.Case) CaseModel {
	return CaseModel{
		ID:            c.ID,
		UserID:        c.UserID,
		Title:         c.Title,
		Description:   c.Description,
		Status:        string(c.Status),
		ExtractedText: c.ExtractedText,
		Analysis:      c.Analysis,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func caseFromModel(m CaseModel) domain.Case {
	return domain.Case{
		ID:            m.ID,
		UserID:        m.UserID,
		Title:         m.Title,
		Description:   m.Description,
		Status:        domain.CaseStatus(m.Status),
		ExtractedText: m.ExtractedText,
		Analysis:      m.Analysis,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func deadlineToModel(d domain.Deadline) LegalDeadlineModel {
	return LegalDeadlineModel{
		ID:               d.ID,
		CaseID:           d.CaseID,
		UserID:           d.UserID,
		Description:      d.Description,
		DueAt:            d.DueAt,
		Completed:        d.Completed,
		NotificationSent: d.NotificationSent,
		CreatedAt:        d.CreatedAt,
	}
}

func deadlineFromModel(m LegalDeadlineModel) domain.Deadline {
	return domain.Deadline{
		ID:               m.ID,
		CaseID:           m.CaseID,
		UserID:           m.UserID,
		Description:      m.Description,
		DueAt:            m.DueAt,
		Completed:        m.Completed,
		NotificationSent: m.NotificationSent,
		CreatedAt:        m.CreatedAt,
	}
}

func crawlerStateToModel(s domain.CrawlerState) CrawlerStateModel {
	return CrawlerStateModel{
		ID:               s.ID,
		SourceURL:        s.SourceURL,
		ContentSelector:  s.ContentSelector,
		LastContentHash:  s.LastContentHash,
		LastCheckedAt:    s.LastCheckedAt,
		UpdateDetectedAt: s.UpdateDetectedAt,
		LastSnippet:      s.LastSnippet,
	}
}

func crawlerStateFromModel(m CrawlerStateModel) domain.CrawlerState {
	return domain.CrawlerState{
		ID:               m.ID,
		SourceURL:        m.SourceURL,
		ContentSelector:  m.ContentSelector,
		LastContentHash:  m.LastContentHash,
		LastCheckedAt:    m.LastCheckedAt,
		UpdateDetectedAt: m.UpdateDetectedAt,
		LastSnippet:      m.LastSnippet,
	}
}

func legalUpdateToModel(u domain.LegalUpdate) LegalUpdateModel {
	return LegalUpdateModel{
		ID:          u.ID,
		Source:      u.Source,
		Title:       u.Title,
		Description: u.Description,
		URL:         u.URL,
		PublishedAt: u.PublishedAt,
		IsNew:       u.IsNew,
	}
}

func legalUpdateFromModel(m LegalUpdateModel) domain.LegalUpdate {
	return domain.LegalUpdate{
		ID:          m.ID,
		Source:      m.Source,
		Title:       m.Title,
		Description: m.Description,
		URL:         m.URL,
		PublishedAt: m.PublishedAt,
		IsNew:       m.IsNew,
	}
}

func subscriptionToModel(s domain.Subscription) SubscriptionModel {
	return SubscriptionModel{
		ID:           s.ID,
		UserID:       s.UserID,
		Source:       s.Source,
		Active:       s.Active,
		EmailEnabled: s.EmailEnabled,
		Frequency:    string(s.Frequency),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func subscriptionFromModel(m SubscriptionModel) domain.Subscription {
	return domain.Subscription{
		ID:           m.ID,
		UserID:       m.UserID,
		Source:       m.Source,
		Active:       m.Active,
		EmailEnabled: m.EmailEnabled,
		Frequency:    domain.SubscriptionFrequency(m.Frequency),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func notificationToModel(n domain.Notification) NotificationModel {
	return NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		Type:      n.Type,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func notificationFromModel(m NotificationModel) domain.Notification {
	return domain.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Type:      m.Type,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}
