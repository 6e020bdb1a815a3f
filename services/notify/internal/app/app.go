package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/events"
	"lexilegal/pkg/store"
)

// Config holds runtime configuration for the notify core.
type Config struct {
	DatabaseURL   string
	Store         store.Store
	SweepInterval time.Duration
}

// App manages subscriptions, notifications, and the deadline monitor.
type App struct {
	store         store.Store
	sweepInterval time.Duration
}

// New constructs the notify core.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &App{store: dataStore, sweepInterval: sweepInterval}, nil
}

// SubscriptionRequest creates or updates a source subscription.
type SubscriptionRequest struct {
	Source       string
	Active       *bool
	EmailEnabled bool
	Frequency    domain.SubscriptionFrequency
}

// Subscribe upserts the user's subscription for a source.
func (a *App) Subscribe(user domain.User, req SubscriptionRequest) (domain.Subscription, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return domain.Subscription{}, errors.New("source required")
	}
	frequency := req.Frequency
	if frequency == "" {
		frequency = domain.FrequencyImmediate
	}
	switch frequency {
	case domain.FrequencyImmediate, domain.FrequencyDaily, domain.FrequencyWeekly:
	default:
		return domain.Subscription{}, fmt.Errorf("invalid frequency: %s", frequency)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := time.Now().UTC()
	sub := domain.Subscription{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Source:       source,
		Active:       active,
		EmailEnabled: req.EmailEnabled,
		Frequency:    frequency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveSubscription(sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns the user's subscriptions.
func (a *App) ListSubscriptions(user domain.User) ([]domain.Subscription, error) {
	return a.store.ListSubscriptionsByUser(user.ID)
}

// ListNotifications returns the user's notifications, newest first.
func (a *App) ListNotifications(user domain.User, limit int) ([]domain.Notification, error) {
	return a.store.ListNotificationsByUser(user.ID, limit)
}

// MarkRead marks one of the user's notifications as read.
func (a *App) MarkRead(user domain.User, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("notification id required")
	}
	return a.store.MarkNotificationRead(id, user.ID)
}

// HandleLegalUpdate fans a detected legal update out to the source's
// active subscribers.
func (a *App) HandleLegalUpdate(_ context.Context, event events.LegalUpdateEvent) error {
	subscribers, err := a.store.ListActiveSubscribers(event.Source)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		return nil
	}
	now := time.Now().UTC()
	items := make([]domain.Notification, 0, len(subscribers))
	for _, sub := range subscribers {
		items = append(items, domain.Notification{
			ID:        uuid.NewString(),
			UserID:    sub.UserID,
			Title:     fmt.Sprintf("Actualización legal: %s", event.Source),
			Content:   legalUpdateContent(event),
			Type:      "legal_update",
			CreatedAt: now,
		})
	}
	if err := a.store.InsertNotifications(items); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	slog.Info("legal update fanned out",
		"update_id", event.UpdateID,
		"source", event.Source,
		"subscribers", len(items),
	)
	return nil
}

func legalUpdateContent(event events.LegalUpdateEvent) string {
	var sb strings.Builder
	sb.WriteString(event.Title)
	if event.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(event.Description)
	}
	if event.URL != "" {
		sb.WriteString("\n")
		sb.WriteString(event.URL)
	}
	return sb.String()
}
