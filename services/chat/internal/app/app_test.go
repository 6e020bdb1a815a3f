package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lexilegal/pkg/ai"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/store"
)

type fakeCompletions struct {
	reply    string
	err      error
	failures int
	calls    int
	lastMsgs []ai.Message
}

func (f *fakeCompletions) Complete(_ context.Context, messages []ai.Message, _ ai.Options) (string, error) {
	f.calls++
	f.lastMsgs = messages
	if f.err != nil {
		return "", f.err
	}
	if f.failures > 0 {
		f.failures--
		return "", errors.New("model timeout")
	}
	return f.reply, nil
}

type fakeSearch struct {
	answer ai.SearchAnswer
	err    error
}

func (f *fakeSearch) Search(context.Context, string, string, ai.Options) (ai.SearchAnswer, error) {
	if f.err != nil {
		return ai.SearchAnswer{}, f.err
	}
	return f.answer, nil
}

type failingAppendStore struct {
	store.Store
	failRole string
}

func (s *failingAppendStore) AppendChatMessage(msg domain.Message) error {
	if msg.Role == s.failRole {
		return errors.New("db down")
	}
	return s.Store.AppendChatMessage(msg)
}

func newChatApp(t *testing.T, dataStore store.Store, completions ai.CompletionClient, search ai.SearchClient) *App {
	t.Helper()
	a, err := New(Config{
		Store:           dataStore,
		Completions:     completions,
		Search:          search,
		CompletionModel: "gpt-4",
		PerplexityModel: "sonar",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestSendMessagePersistsBothSides(t *testing.T) {
	memStore := store.NewMemoryStore()
	completions := &fakeCompletions{reply: "El plazo es de tres días hábiles."}
	a := newChatApp(t, memStore, completions, nil)

	user := domain.User{ID: "u1"}
	ans, err := a.SendMessage(context.Background(), user, SendRequest{Content: "¿Plazo para apelar?"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ans.Content != "El plazo es de tres días hábiles." {
		t.Fatalf("answer = %q", ans.Content)
	}
	if ans.Approximate || ans.Unsynced {
		t.Fatalf("clean turn should not be flagged: %+v", ans)
	}
	msgs, _ := memStore.ListChatMessages("u1", "", 10)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Model != "gpt-4" {
		t.Fatalf("assistant model = %q", msgs[1].Model)
	}
}

func TestSendMessageAttachmentPlaceholder(t *testing.T) {
	memStore := store.NewMemoryStore()
	completions := &fakeCompletions{reply: "Recibido."}
	a := newChatApp(t, memStore, completions, nil)

	_, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{
		Content:     "Revisa este contrato",
		Attachments: []domain.Attachment{{Name: "contrato.pdf", Kind: "document"}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, _ := memStore.ListChatMessages("u1", "", 10)
	if !strings.Contains(msgs[0].Content, "[Documento adjunto: contrato.pdf]") {
		t.Fatalf("placeholder missing: %q", msgs[0].Content)
	}
	if len(msgs[0].Attachments) != 1 {
		t.Fatalf("attachment metadata not persisted")
	}
}

func TestSendMessageFallbackMarksApproximate(t *testing.T) {
	memStore := store.NewMemoryStore()
	completions := &fakeCompletions{reply: "Respuesta degradada.", failures: 1}
	a := newChatApp(t, memStore, completions, nil)

	ans, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "hola"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !ans.Approximate {
		t.Fatalf("fallback answer should be approximate")
	}
	if completions.calls != 2 {
		t.Fatalf("calls = %d, want primary + fallback", completions.calls)
	}
}

func TestSendMessageBothAttemptsFail(t *testing.T) {
	memStore := store.NewMemoryStore()
	completions := &fakeCompletions{err: errors.New("provider down")}
	a := newChatApp(t, memStore, completions, nil)

	_, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "hola"})
	if !errors.Is(err, ErrAssistantUnavailable) {
		t.Fatalf("expected ErrAssistantUnavailable, got %v", err)
	}
}

func TestSendMessageSearchModeReturnsSources(t *testing.T) {
	memStore := store.NewMemoryStore()
	search := &fakeSearch{answer: ai.SearchAnswer{
		Content: "Según la Gaceta Oficial...",
		Sources: []string{"https://www.gacetaoficial.gob.pa/x"},
	}}
	a := newChatApp(t, memStore, &fakeCompletions{reply: "sin usar"}, search)

	ans, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "novedades", SearchMode: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].URL != "https://www.gacetaoficial.gob.pa/x" {
		t.Fatalf("sources = %+v", ans.Sources)
	}
	if ans.Model != "sonar" {
		t.Fatalf("model = %q, want search model", ans.Model)
	}
}

func TestSendMessageSearchFailureFallsBackToCompletion(t *testing.T) {
	memStore := store.NewMemoryStore()
	completions := &fakeCompletions{reply: "Respuesta sin búsqueda."}
	a := newChatApp(t, memStore, completions, &fakeSearch{err: errors.New("perplexity down")})

	ans, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "novedades", SearchMode: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !ans.Approximate {
		t.Fatalf("fallback after search failure should be approximate")
	}
	if len(ans.Sources) != 0 {
		t.Fatalf("fallback should carry no sources")
	}
}

func TestSendMessageUnsyncedWhenAssistantPersistFails(t *testing.T) {
	dataStore := &failingAppendStore{Store: store.NewMemoryStore(), failRole: "assistant"}
	completions := &fakeCompletions{reply: "Respuesta."}
	a := newChatApp(t, dataStore, completions, nil)

	ans, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "hola"})
	if err != nil {
		t.Fatalf("send should still return the reply: %v", err)
	}
	if !ans.Unsynced {
		t.Fatalf("answer should be marked unsynced")
	}
	if ans.Content != "Respuesta." {
		t.Fatalf("content = %q", ans.Content)
	}
}

func TestSendMessageIncludesHistoryInPrompt(t *testing.T) {
	memStore := store.NewMemoryStore()
	_ = memStore.AppendChatMessage(domain.Message{
		ID: "m1", UserID: "u1", Role: "user", Content: "primera pregunta", CreatedAt: time.Now().UTC(),
	})
	_ = memStore.AppendChatMessage(domain.Message{
		ID: "m2", UserID: "u1", Role: "assistant", Content: "primera respuesta", CreatedAt: time.Now().UTC(),
	})
	completions := &fakeCompletions{reply: "segunda respuesta"}
	a := newChatApp(t, memStore, completions, nil)

	_, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "segunda pregunta"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(completions.lastMsgs) != 4 {
		t.Fatalf("prompt messages = %d, want system + 2 history + current", len(completions.lastMsgs))
	}
	if completions.lastMsgs[0].Role != "system" {
		t.Fatalf("first message should be the system prompt")
	}
	if completions.lastMsgs[1].Content != "primera pregunta" {
		t.Fatalf("history not included: %+v", completions.lastMsgs)
	}
}

func TestSendMessageCaseScopedRequiresOwnership(t *testing.T) {
	memStore := store.NewMemoryStore()
	_ = memStore.SaveCase(domain.Case{ID: "c1", UserID: "other", Title: "Caso ajeno", Status: domain.CaseActive})
	a := newChatApp(t, memStore, &fakeCompletions{reply: "x"}, nil)

	_, err := a.SendMessage(context.Background(), domain.User{ID: "u1"}, SendRequest{Content: "hola", CaseID: "c1"})
	if !errors.Is(err, ErrCaseForbidden) {
		t.Fatalf("expected ErrCaseForbidden, got %v", err)
	}
}
