package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"lexilegal/internal/util"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/queue"
	"lexilegal/pkg/store"
)

type fakeObjects struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	putErr  error
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return nil
}

func (f *fakeObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeObjects) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

type fakeEmbedder struct {
	failOn string
	err    error
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding provider down")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type failingSaveStore struct {
	store.Store
}

func (s *failingSaveStore) SaveDocument(domain.Document) error {
	return errors.New("db down")
}

func newTestApp(t *testing.T, dataStore store.Store, objects *fakeObjects, embedder *fakeEmbedder) *App {
	t.Helper()
	redisSrv := miniredis.RunT(t)
	q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       redisSrv.Addr(),
		Stream:     "test:documents",
		Consumer:   util.NewID(),
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	a, err := New(Config{
		Store:            dataStore,
		Objects:          objects,
		Embedder:         embedder,
		Queue:            q,
		QueueConcurrency: 1,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

// gateStore holds the processing worker at its first read so uploads can
// be observed before the pipeline advances their status.
type gateStore struct {
	store.Store
	gate chan struct{}
}

func (s *gateStore) GetDocument(id string) (domain.Document, bool, error) {
	<-s.gate
	return s.Store.GetDocument(id)
}

func TestUploadThenListShowsPendingDocument(t *testing.T) {
	objects := newFakeObjects()
	memStore := store.NewMemoryStore()
	gated := &gateStore{Store: memStore, gate: make(chan struct{})}
	t.Cleanup(func() { close(gated.gate) })
	a := newTestApp(t, gated, objects, &fakeEmbedder{})
	user := domain.User{ID: "u1"}

	first, err := a.Upload(user, "demanda.txt", domain.TypeBrief, "", strings.NewReader("texto uno"), 9)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := a.Upload(user, "contrato.txt", domain.TypeContract, "", strings.NewReader("texto dos"), 9)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if objects.count() != 2 {
		t.Fatalf("blobs = %d, want 2", objects.count())
	}

	docs, err := a.List(user, store.DocumentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if docs[0].ID != second.ID || docs[1].ID != first.ID {
		t.Fatalf("expected newest first, got %q then %q", docs[0].FileName, docs[1].FileName)
	}
	for _, doc := range docs {
		if doc.Status != domain.StatusPending {
			t.Fatalf("document %s status = %s, want pending", doc.FileName, doc.Status)
		}
	}

	briefs, err := a.List(user, store.DocumentFilter{DocumentType: domain.TypeBrief})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(briefs) != 1 || briefs[0].ID != first.ID {
		t.Fatalf("type filter returned %+v", briefs)
	}
}

func TestUploadDeletesBlobWhenRegistrationFails(t *testing.T) {
	objects := newFakeObjects()
	dataStore := &failingSaveStore{Store: store.NewMemoryStore()}
	a := newTestApp(t, dataStore, objects, &fakeEmbedder{})

	_, err := a.Upload(domain.User{ID: "u1"}, "demanda.txt", domain.TypeBrief, "", strings.NewReader("texto"), 5)
	if err == nil {
		t.Fatalf("expected registration error")
	}
	if objects.count() != 0 {
		t.Fatalf("expected orphan blob to be deleted, %d objects remain", objects.count())
	}
	if len(objects.deleted) != 1 {
		t.Fatalf("expected one delete call, got %d", len(objects.deleted))
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	objects := newFakeObjects()
	a := newTestApp(t, store.NewMemoryStore(), objects, &fakeEmbedder{})

	_, err := a.Upload(domain.User{ID: "u1"}, "virus.exe", domain.TypeOther, "", strings.NewReader("x"), 1)
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	if objects.count() != 0 {
		t.Fatalf("no blob should be written for rejected upload")
	}
}

func TestProcessDocumentEmbedsAndMarksProcessed(t *testing.T) {
	objects := newFakeObjects()
	memStore := store.NewMemoryStore()
	a := newTestApp(t, memStore, objects, &fakeEmbedder{})

	doc := seedDocument(t, memStore, objects, "contrato.txt", "Cláusula uno.\n\nCláusula dos.")
	if err := a.processDocument(context.Background(), doc); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _, err := memStore.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusProcessed {
		t.Fatalf("status = %s, want processed", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Fatalf("processedAt not set")
	}
	count, _ := memStore.CountChunks(doc.ID)
	if count != 1 {
		t.Fatalf("chunks = %d, want 1", count)
	}
}

func TestProcessDocumentReplacesChunksOnReprocess(t *testing.T) {
	objects := newFakeObjects()
	memStore := store.NewMemoryStore()
	a := newTestApp(t, memStore, objects, &fakeEmbedder{})

	doc := seedDocument(t, memStore, objects, "fallo.txt", "Considerando primero.\n\nConsiderando segundo.")
	for i := 0; i < 3; i++ {
		if err := a.processDocument(context.Background(), doc); err != nil {
			t.Fatalf("process run %d: %v", i, err)
		}
	}
	count, _ := memStore.CountChunks(doc.ID)
	if count != 1 {
		t.Fatalf("reprocessing duplicated chunks: %d", count)
	}
}

func TestProcessDocumentSkipsFailedEmbeddings(t *testing.T) {
	objects := newFakeObjects()
	memStore := store.NewMemoryStore()
	longA := strings.Repeat("a", 900)
	longB := strings.Repeat("maldito ", 100)
	a := newTestApp(t, memStore, objects, &fakeEmbedder{failOn: "maldito"})

	doc := seedDocument(t, memStore, objects, "mixto.txt", longA+"\n\n"+longB)
	if err := a.processDocument(context.Background(), doc); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _, _ := memStore.GetDocument(doc.ID)
	if got.Status != domain.StatusProcessed {
		t.Fatalf("status = %s, want processed despite skipped chunk", got.Status)
	}
	count, _ := memStore.CountChunks(doc.ID)
	if count != 1 {
		t.Fatalf("chunks = %d, want only the embeddable chunk", count)
	}
}

func TestSearchEmbeddingUnavailable(t *testing.T) {
	a := newTestApp(t, store.NewMemoryStore(), newFakeObjects(), &fakeEmbedder{err: errors.New("provider down")})

	_, err := a.Search(context.Background(), domain.User{ID: "u1"}, "plazo de apelación", 0, 0)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestSearchScopedToOwner(t *testing.T) {
	objects := newFakeObjects()
	memStore := store.NewMemoryStore()
	a := newTestApp(t, memStore, objects, &fakeEmbedder{})

	mine := seedDocument(t, memStore, objects, "mio.txt", "Texto mío sobre plazos.")
	theirs := seedDocumentForOwner(t, memStore, objects, "ajeno.txt", "Texto ajeno sobre plazos.", "u2")
	for _, doc := range []domain.Document{mine, theirs} {
		if err := a.processDocument(context.Background(), doc); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	hits, err := a.Search(context.Background(), domain.User{ID: "u1"}, "Texto mío sobre plazos.", 5, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, hit := range hits {
		if hit.DocumentID != mine.ID {
			t.Fatalf("search leaked another owner's chunk: %+v", hit)
		}
	}
}

func seedDocument(t *testing.T, memStore *store.MemoryStore, objects *fakeObjects, name, content string) domain.Document {
	t.Helper()
	return seedDocumentForOwner(t, memStore, objects, name, content, "u1")
}

func seedDocumentForOwner(t *testing.T, memStore *store.MemoryStore, objects *fakeObjects, name, content, owner string) domain.Document {
	t.Helper()
	key := owner + "/" + name
	if err := objects.Put(context.Background(), key, strings.NewReader(content), int64(len(content)), "text/plain"); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	doc := domain.Document{
		ID:           util.NewID(),
		OwnerID:      owner,
		FileName:     name,
		StorageKey:   key,
		DocumentType: domain.TypeOther,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := memStore.SaveDocument(doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}
