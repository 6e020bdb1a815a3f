package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"lexilegal/pkg/ai"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/store"
)

const systemPrompt = "Eres un asistente legal especializado en derecho panameño. " +
	"Respondes en español, con precisión y citando las normas aplicables " +
	"(Código Civil, Código de Trabajo, Código Judicial, leyes especiales) cuando corresponda. " +
	"Si no tienes certeza sobre un punto, lo dices claramente y recomiendas consultar a un abogado."

const searchSystemPrompt = systemPrompt +
	" Usa los resultados de búsqueda para fundamentar la respuesta con fuentes oficiales panameñas."

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	Store           store.Store
	Completions     ai.CompletionClient
	Search          ai.SearchClient
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	CompletionModel string
	PerplexityKey   string
	PerplexityURL   string
	PerplexityModel string
	HistoryLimit    int
	MaxTokens       int
	Temperature     float64
	EmbeddingDim    int
}

// App orchestrates chat turns, cases, and deadlines.
type App struct {
	store           store.Store
	completions     ai.CompletionClient
	search          ai.SearchClient
	completionModel string
	searchModel     string
	historyLimit    int
	maxTokens       int
	temperature     float64
}

// New constructs the application with database-backed storage for messages.
func New(cfg Config) (*App, error) {
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
	completions := cfg.Completions
	if completions == nil {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key required")
		}
		completions = ai.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.CompletionModel, "")
	}
	if cfg.CompletionModel == "" {
		return nil, fmt.Errorf("completion model required")
	}
	search := cfg.Search
	if search == nil && cfg.PerplexityKey != "" {
		var err error
		search, err = ai.NewPerplexityClient(cfg.PerplexityURL, cfg.PerplexityKey, cfg.PerplexityModel)
		if err != nil {
			return nil, err
		}
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &App{
		store:           dataStore,
		completions:     completions,
		search:          search,
		completionModel: cfg.CompletionModel,
		searchModel:     cfg.PerplexityModel,
		historyLimit:    historyLimit,
		maxTokens:       maxTokens,
		temperature:     cfg.Temperature,
	}, nil
}

// SendRequest is one user chat turn.
type SendRequest struct {
	Content     string
	CaseID      string
	Attachments []domain.Attachment
	SearchMode  bool
}

// SendMessage runs one chat turn: persist the user message, build the
// prompt from history, ask the model, persist and return the reply.
// Attachments are recorded inline as placeholders; their real text
// extraction happens in the documents pipeline.
func (a *App) SendMessage(ctx context.Context, user domain.User, req SendRequest) (domain.Answer, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Attachments) == 0 {
		return domain.Answer{}, errors.New("message content required")
	}
	caseID := strings.TrimSpace(req.CaseID)
	if caseID != "" {
		if _, err := a.getOwnedCase(user, caseID); err != nil {
			return domain.Answer{}, err
		}
	}
	content = appendAttachmentPlaceholders(content, req.Attachments)

	history, err := a.store.ListChatMessages(user.ID, caseID, a.historyLimit)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("load history: %w", err)
	}

	userMsg := domain.Message{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		CaseID:      caseID,
		Role:        "user",
		Content:     content,
		Attachments: req.Attachments,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.AppendChatMessage(userMsg); err != nil {
		return domain.Answer{}, fmt.Errorf("save user message: %w", err)
	}

	answer := a.generate(ctx, content, history, req.SearchMode)
	if answer.Content == "" {
		return domain.Answer{}, ErrAssistantUnavailable
	}

	assistantMsg := domain.Message{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CaseID:    caseID,
		Role:      "assistant",
		Content:   answer.Content,
		Model:     answer.Model,
		CreatedAt: answer.CreatedAt,
	}
	if err := a.store.AppendChatMessage(assistantMsg); err != nil {
		// Best effort: the user still gets the reply even when history
		// could not be written.
		slog.Error("save assistant message", "user_id", user.ID, "error", err)
		answer.Unsynced = true
	}
	return answer, nil
}

// generate asks the primary model, falling back once to a degraded prompt
// on failure. A fallback answer is marked approximate.
func (a *App) generate(ctx context.Context, content string, history []domain.Message, searchMode bool) domain.Answer {
	now := time.Now().UTC()
	if searchMode && a.search != nil {
		result, err := a.search.Search(ctx, searchSystemPrompt, content, ai.Options{
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
		})
		if err == nil {
			return domain.Answer{
				Content:   result.Content,
				Sources:   sourcesFromURLs(result.Sources),
				Model:     a.searchModel,
				CreatedAt: now,
			}
		}
		slog.Warn("search completion failed, falling back", "error", err)
		return a.fallback(ctx, content)
	}

	messages := buildMessages(history, content)
	reply, err := a.completions.Complete(ctx, messages, ai.Options{
		Model:       a.completionModel,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err == nil {
		return domain.Answer{Content: reply, Model: a.completionModel, CreatedAt: now}
	}
	slog.Warn("completion failed, falling back", "error", err)
	return a.fallback(ctx, content)
}

// fallback drops the history and retries once with the bare question.
func (a *App) fallback(ctx context.Context, content string) domain.Answer {
	reply, err := a.completions.Complete(ctx, []ai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: content},
	}, ai.Options{
		Model:     a.completionModel,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		slog.Error("fallback completion failed", "error", err)
		return domain.Answer{}
	}
	return domain.Answer{
		Content:     reply,
		Model:       a.completionModel,
		Approximate: true,
		CreatedAt:   time.Now().UTC(),
	}
}

// History returns recent messages in chronological order. An empty caseID
// selects the general chat.
func (a *App) History(user domain.User, caseID string, limit int) ([]domain.Message, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID != "" {
		if _, err := a.getOwnedCase(user, caseID); err != nil {
			return nil, err
		}
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return a.store.ListChatMessages(user.ID, caseID, limit)
}

func appendAttachmentPlaceholders(content string, attachments []domain.Attachment) string {
	var sb strings.Builder
	sb.WriteString(content)
	for _, att := range attachments {
		name := strings.TrimSpace(att.Name)
		if name == "" {
			name = "archivo"
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[Documento adjunto: %s]", name))
	}
	return sb.String()
}

func buildMessages(history []domain.Message, content string) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: "system", Content: systemPrompt})
	for _, msg := range history {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		messages = append(messages, ai.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, ai.Message{Role: "user", Content: content})
	return messages
}

func sourcesFromURLs(urls []string) []domain.Source {
	sources := make([]domain.Source, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		sources = append(sources, domain.Source{URL: url})
	}
	return sources
}
