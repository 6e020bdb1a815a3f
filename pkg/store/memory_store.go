package store

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"lexilegal/pkg/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	documents     map[string]domain.Document
	chunks        map[string][]memoryChunk
	messages      []domain.Message
	cases         map[string]domain.Case
	caseDocs      map[string][]string
	deadlines     map[string]domain.Deadline
	crawlerStates map[string]domain.CrawlerState
	legalUpdates  []domain.LegalUpdate
	subscriptions map[string]domain.Subscription
	notifications []domain.Notification
}

type memoryChunk struct {
	chunk  domain.Chunk
	vector []float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:     make(map[string]domain.Document),
		chunks:        make(map[string][]memoryChunk),
		cases:         make(map[string]domain.Case),
		caseDocs:      make(map[string][]string),
		deadlines:     make(map[string]domain.Deadline),
		crawlerStates: make(map[string]domain.CrawlerState),
		subscriptions: make(map[string]domain.Subscription),
	}
}

func (s *MemoryStore) SaveDocument(d domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[d.ID] = d
	return nil
}

func (s *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	return d, ok, nil
}

func (s *MemoryStore) ListDocumentsByOwner(ownerID string, filter DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, d := range s.documents {
		if d.OwnerID != ownerID {
			continue
		}
		if filter.DocumentType != "" && d.DocumentType != filter.DocumentType {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (s *MemoryStore) SetDocumentStatus(id string, status domain.DocumentStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil
	}
	d.Status = status
	d.ErrorMessage = errMsg
	d.UpdatedAt = time.Now().UTC()
	s.documents[id] = d
	return nil
}

func (s *MemoryStore) SetDocumentText(id string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil
	}
	d.ExtractedText = text
	d.UpdatedAt = time.Now().UTC()
	s.documents[id] = d
	return nil
}

func (s *MemoryStore) MarkDocumentProcessed(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return nil
	}
	t := at.UTC()
	d.Status = domain.StatusProcessed
	d.ErrorMessage = ""
	d.ProcessedAt = &t
	d.UpdatedAt = time.Now().UTC()
	s.documents[id] = d
	return nil
}

func (s *MemoryStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	for caseID, docIDs := range s.caseDocs {
		kept := docIDs[:0]
		for _, docID := range docIDs {
			if docID != id {
				kept = append(kept, docID)
			}
		}
		s.caseDocs[caseID] = kept
	}
	return nil
}

func (s *MemoryStore) ReplaceChunks(documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]memoryChunk, 0, len(chunks))
	for i, chunk := range chunks {
		rows = append(rows, memoryChunk{chunk: chunk, vector: vectors[i]})
	}
	s.chunks[documentID] = rows
	return nil
}

func (s *MemoryStore) CountChunks(documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

func (s *MemoryStore) MatchChunks(ownerID string, embedding []float32, limit int, threshold float64) ([]domain.SearchHit, error) {
	if limit <= 0 {
		return []domain.SearchHit{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []domain.SearchHit
	for documentID, rows := range s.chunks {
		doc, ok := s.documents[documentID]
		if !ok || doc.OwnerID != ownerID {
			continue
		}
		for _, row := range rows {
			sim := cosineSimilarity(embedding, row.vector)
			if sim <= threshold {
				continue
			}
			hits = append(hits, domain.SearchHit{
				ChunkID:    row.chunk.ID,
				DocumentID: documentID,
				FileName:   doc.FileName,
				Content:    row.chunk.Content,
				Similarity: sim,
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *MemoryStore) AppendChatMessage(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *MemoryStore) ListChatMessages(userID, caseID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var msgs []domain.Message
	for _, m := range s.messages {
		if m.UserID == userID && m.CaseID == caseID {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *MemoryStore) SaveCase(c domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.ID] = c
	return nil
}

func (s *MemoryStore) GetCase(id string) (domain.Case, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	return c, ok, nil
}

func (s *MemoryStore) ListCasesByUser(userID string) ([]domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cases []domain.Case
	for _, c := range s.cases {
		if c.UserID == userID {
			cases = append(cases, c)
		}
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].CreatedAt.After(cases[j].CreatedAt) })
	return cases, nil
}

func (s *MemoryStore) AttachCaseDocument(caseID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.caseDocs[caseID] {
		if existing == documentID {
			return nil
		}
	}
	s.caseDocs[caseID] = append(s.caseDocs[caseID], documentID)
	return nil
}

func (s *MemoryStore) ListCaseDocuments(caseID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, docID := range s.caseDocs[caseID] {
		if d, ok := s.documents[docID]; ok {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (s *MemoryStore) SaveDeadline(d domain.Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[d.ID] = d
	return nil
}

func (s *MemoryStore) ListDeadlinesByCase(caseID string) ([]domain.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Deadline
	for _, d := range s.deadlines {
		if d.CaseID == caseID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (s *MemoryStore) ListPendingDeadlines() ([]DeadlineWithCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DeadlineWithCase
	for _, d := range s.deadlines {
		if d.Completed || d.NotificationSent {
			continue
		}
		title := ""
		if c, ok := s.cases[d.CaseID]; ok {
			title = c.Title
		}
		out = append(out, DeadlineWithCase{Deadline: d, CaseTitle: title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (s *MemoryStore) SetDeadlineCompleted(id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadlines[id]
	if !ok {
		return nil
	}
	d.Completed = completed
	s.deadlines[id] = d
	return nil
}

func (s *MemoryStore) MarkDeadlinesNotified(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if d, ok := s.deadlines[id]; ok {
			d.NotificationSent = true
			s.deadlines[id] = d
		}
	}
	return nil
}

func (s *MemoryStore) GetCrawlerState(sourceURL string) (domain.CrawlerState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.crawlerStates[sourceURL]
	return state, ok, nil
}

func (s *MemoryStore) InsertCrawlerState(state domain.CrawlerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.crawlerStates[state.SourceURL]; exists {
		return fmt.Errorf("crawler state already exists for %s", state.SourceURL)
	}
	s.crawlerStates[state.SourceURL] = state
	return nil
}

func (s *MemoryStore) TouchCrawlerState(sourceURL string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.crawlerStates[sourceURL]
	if !ok {
		return nil
	}
	state.LastCheckedAt = at.UTC()
	s.crawlerStates[sourceURL] = state
	return nil
}

func (s *MemoryStore) SwapCrawlerHash(sourceURL, oldHash, newHash, snippet string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.crawlerStates[sourceURL]
	if !ok || state.LastContentHash != oldHash {
		return false, nil
	}
	t := at.UTC()
	state.LastContentHash = newHash
	state.LastCheckedAt = t
	if state.UpdateDetectedAt == nil {
		state.UpdateDetectedAt = &t
	}
	state.LastSnippet = snippet
	s.crawlerStates[sourceURL] = state
	return true, nil
}

func (s *MemoryStore) InsertLegalUpdate(u domain.LegalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legalUpdates = append(s.legalUpdates, u)
	return nil
}

func (s *MemoryStore) ListLegalUpdates(limit int) ([]domain.LegalUpdate, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	updates := make([]domain.LegalUpdate, len(s.legalUpdates))
	copy(updates, s.legalUpdates)
	sort.Slice(updates, func(i, j int) bool { return updates[i].PublishedAt.After(updates[j].PublishedAt) })
	if len(updates) > limit {
		updates = updates[:limit]
	}
	return updates, nil
}

func subscriptionKey(userID, source string) string {
	return userID + "\x00" + source
}

func (s *MemoryStore) SaveSubscription(sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subscriptionKey(sub.UserID, sub.Source)
	if existing, ok := s.subscriptions[key]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	s.subscriptions[key] = sub
	return nil
}

func (s *MemoryStore) ListSubscriptionsByUser(userID string) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return strings.Compare(subs[i].Source, subs[j].Source) < 0
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}

func (s *MemoryStore) ListActiveSubscribers(source string) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.Source == source && sub.Active {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

func (s *MemoryStore) InsertNotifications(items []domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, items...)
	return nil
}

func (s *MemoryStore) ListNotificationsByUser(userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			items = append(items, n)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStore) MarkNotificationRead(id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			s.notifications[i].Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

var _ Store = (*MemoryStore)(nil)
