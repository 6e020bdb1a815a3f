package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"lexilegal/internal/util"
	"lexilegal/pkg/ai"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/queue"
	"lexilegal/pkg/storage"
	"lexilegal/pkg/store"
)

const (
	defaultChunkSize       = 1000
	defaultSearchLimit     = 5
	defaultSearchThreshold = 0.75
)

var defaultAllowedExtensions = []string{".pdf", ".txt", ".md", ".html", ".htm"}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL          string
	Store                store.Store
	Objects              storage.ObjectStore
	Embedder             ai.Embedder
	Queue                *queue.RedisJobQueue
	MinioEndpoint        string
	MinioAccessKey       string
	MinioSecretKey       string
	MinioBucket          string
	MinioUseSSL          bool
	RedisAddr            string
	RedisPassword        string
	QueueName            string
	QueueGroup           string
	QueueConcurrency     int
	QueueMaxRetries      int
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	EmbeddingModel       string
	EmbeddingDim         int
	EmbeddingConcurrency int
	ChunkSize            int
	SearchLimit          int
	SearchThreshold      float64
	AllowedExtensions    []string
}

// App wires storage, persistence, and the processing pipeline.
type App struct {
	store            store.Store
	objects          storage.ObjectStore
	embedder         ai.Embedder
	queue            *queue.RedisJobQueue
	chunkSize        int
	embedConcurrency int
	searchLimit      int
	searchThreshold  float64
	allowedExts      map[string]bool
	presignExpiry    time.Duration
}

// New constructs the documents service core.
func New(cfg Config) (*App, error) {
	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
	}
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	embedder := cfg.Embedder
	if embedder == nil {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key required")
		}
		if cfg.EmbeddingModel == "" {
			return nil, fmt.Errorf("embedding model required")
		}
		embedder = ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, "", cfg.EmbeddingModel)
	}
	jobQueue := cfg.Queue
	if jobQueue == nil {
		var err error
		jobQueue, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			Stream:     defaultQueueName(cfg.QueueName),
			Group:      defaultQueueGroup(cfg.QueueGroup),
			Consumer:   util.NewID(),
			MaxRetries: cfg.QueueMaxRetries,
		})
		if err != nil {
			return nil, err
		}
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	embedConcurrency := cfg.EmbeddingConcurrency
	if embedConcurrency <= 0 {
		embedConcurrency = 4
	}
	searchLimit := cfg.SearchLimit
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	searchThreshold := cfg.SearchThreshold
	if searchThreshold <= 0 {
		searchThreshold = defaultSearchThreshold
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = defaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	a := &App{
		store:            dataStore,
		objects:          objects,
		embedder:         embedder,
		queue:            jobQueue,
		chunkSize:        chunkSize,
		embedConcurrency: embedConcurrency,
		searchLimit:      searchLimit,
		searchThreshold:  searchThreshold,
		allowedExts:      allowed,
		presignExpiry:    15 * time.Minute,
	}
	concurrency := cfg.QueueConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	jobQueue.Start(context.Background(), concurrency, a.process)
	return a, nil
}

// Upload stores the file, registers the document, and enqueues processing.
// A blob written before a failed registration is deleted again so no
// orphan objects accumulate.
func (a *App) Upload(owner domain.User, filename string, docType domain.DocumentType, source string, r io.Reader, size int64) (domain.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return domain.Document{}, errors.New("filename required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !a.allowedExts[ext] {
		return domain.Document{}, ErrUnsupportedFileType
	}
	if docType == "" {
		docType = domain.TypeOther
	}
	if !domain.ValidDocumentType(docType) {
		return domain.Document{}, fmt.Errorf("invalid document type: %s", docType)
	}
	now := time.Now().UTC()
	doc := domain.Document{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID,
		FileName:     filename,
		StorageKey:   buildStorageKey(owner.ID, filename),
		DocumentType: docType,
		Source:       strings.TrimSpace(source),
		Status:       domain.StatusPending,
		SizeBytes:    size,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.objects.Put(context.Background(), doc.StorageKey, r, size, contentType); err != nil {
		return domain.Document{}, fmt.Errorf("save file: %w", err)
	}
	if err := a.store.SaveDocument(doc); err != nil {
		_ = a.objects.Delete(context.Background(), doc.StorageKey)
		return domain.Document{}, fmt.Errorf("register document: %w", err)
	}
	if err := a.enqueue(doc.ID); err != nil {
		_ = a.store.SetDocumentStatus(doc.ID, domain.StatusError, err.Error())
		return domain.Document{}, fmt.Errorf("enqueue processing: %w", err)
	}
	return doc, nil
}

func (a *App) enqueue(documentID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := a.queue.Enqueue(ctx, documentID)
	return err
}

// List returns the user's documents, optionally filtered by type and status.
func (a *App) List(user domain.User, filter store.DocumentFilter) ([]domain.Document, error) {
	if filter.DocumentType != "" && !domain.ValidDocumentType(filter.DocumentType) {
		return nil, fmt.Errorf("invalid document type: %s", filter.DocumentType)
	}
	return a.store.ListDocumentsByOwner(user.ID, filter)
}

// Get retrieves one of the user's documents.
func (a *App) Get(user domain.User, id string) (domain.Document, error) {
	doc, ok, err := a.store.GetDocument(id)
	if err != nil {
		return domain.Document{}, err
	}
	if !ok {
		return domain.Document{}, ErrDocumentNotFound
	}
	if doc.OwnerID != user.ID {
		return domain.Document{}, ErrDocumentForbidden
	}
	return doc, nil
}

// GetDownloadURL returns a pre-signed URL and the original filename.
func (a *App) GetDownloadURL(user domain.User, id string) (string, string, error) {
	doc, err := a.Get(user, id)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(doc.StorageKey) == "" {
		return "", "", fmt.Errorf("storage key missing")
	}
	url, err := a.objects.PresignGet(context.Background(), doc.StorageKey, a.presignExpiry)
	if err != nil {
		return "", "", err
	}
	return url, doc.FileName, nil
}

// Delete removes the document row, its embeddings, and the stored file.
func (a *App) Delete(user domain.User, id string) error {
	doc, err := a.Get(user, id)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil
		}
		return err
	}
	if err := a.store.DeleteDocument(id); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if err := a.objects.Delete(context.Background(), doc.StorageKey); err != nil {
			return err
		}
	}
	return nil
}

// Reprocess re-enqueues an existing document through the pipeline.
func (a *App) Reprocess(user domain.User, id string) (domain.Document, error) {
	doc, err := a.Get(user, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := a.store.SetDocumentStatus(id, domain.StatusPending, ""); err != nil {
		return domain.Document{}, err
	}
	if err := a.enqueue(id); err != nil {
		_ = a.store.SetDocumentStatus(id, domain.StatusError, err.Error())
		return domain.Document{}, fmt.Errorf("enqueue processing: %w", err)
	}
	doc.Status = domain.StatusPending
	doc.ErrorMessage = ""
	return doc, nil
}

// GetJob returns a processing job's status.
func (a *App) GetJob(id string) (queue.JobStatus, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	job, ok, err := a.queue.GetJob(ctx, id)
	if err != nil || !ok {
		return queue.JobStatus{}, false
	}
	return job, true
}

// Search embeds the query and returns the user's most similar chunks.
func (a *App) Search(ctx context.Context, user domain.User, query string, limit int, threshold float64) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query required")
	}
	if limit <= 0 || limit > 50 {
		limit = a.searchLimit
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = a.searchThreshold
	}
	embedding, err := a.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingUnavailable, err)
	}
	if len(embedding) == 0 {
		return nil, ErrEmbeddingUnavailable
	}
	hits, err := a.store.MatchChunks(user.ID, embedding, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	return hits, nil
}

func buildStorageKey(ownerID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d-%s%s", ownerID, time.Now().UnixMilli(), util.NewID(), ext)
}

func defaultQueueName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "lexi:documents"
	}
	return name
}

func defaultQueueGroup(name string) string {
	if strings.TrimSpace(name) == "" {
		return "documents"
	}
	return name
}
