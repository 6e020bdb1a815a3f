package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"lexilegal/pkg/domain"
	"lexilegal/pkg/events"
	"lexilegal/pkg/store"
)

func TestSubscribeUpsertsPerSource(t *testing.T) {
	a, _ := newTestApp(t)
	user := domain.User{ID: "user-1"}

	first, err := a.Subscribe(user, SubscriptionRequest{Source: "Gaceta Oficial"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !first.Active || first.Frequency != domain.FrequencyImmediate {
		t.Fatalf("defaults not applied: %+v", first)
	}

	inactive := false
	if _, err := a.Subscribe(user, SubscriptionRequest{
		Source:    "Gaceta Oficial",
		Active:    &inactive,
		Frequency: domain.FrequencyDaily,
	}); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}

	subs, err := a.ListSubscriptions(user)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(subs))
	}
	if subs[0].Active || subs[0].Frequency != domain.FrequencyDaily {
		t.Fatalf("update not applied: %+v", subs[0])
	}
	if subs[0].ID != first.ID {
		t.Fatalf("upsert changed subscription identity: %q != %q", subs[0].ID, first.ID)
	}
}

func TestSubscribeRejectsInvalidInput(t *testing.T) {
	a, _ := newTestApp(t)
	user := domain.User{ID: "user-1"}

	if _, err := a.Subscribe(user, SubscriptionRequest{Source: "  "}); err == nil {
		t.Fatal("expected error for blank source")
	}
	if _, err := a.Subscribe(user, SubscriptionRequest{Source: "Gaceta", Frequency: "hourly"}); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestHandleLegalUpdateFansOutToActiveSubscribers(t *testing.T) {
	a, mem := newTestApp(t)
	subscribe := func(userID string, active bool) {
		t.Helper()
		if err := mem.SaveSubscription(domain.Subscription{
			ID:        "sub-" + userID,
			UserID:    userID,
			Source:    "Gaceta Oficial",
			Active:    active,
			Frequency: domain.FrequencyImmediate,
		}); err != nil {
			t.Fatalf("save subscription: %v", err)
		}
	}
	subscribe("user-1", true)
	subscribe("user-2", true)
	subscribe("user-3", false)

	event := events.LegalUpdateEvent{
		UpdateID:    "upd-1",
		Source:      "Gaceta Oficial",
		Title:       "Ley 123 de 2026",
		Description: "Reforma procesal",
		URL:         "https://gacetaoficial.gob.pa/ley-123",
		DetectedAt:  time.Now().UTC(),
	}
	if err := a.HandleLegalUpdate(context.Background(), event); err != nil {
		t.Fatalf("handle update: %v", err)
	}

	for _, userID := range []string{"user-1", "user-2"} {
		items, err := mem.ListNotificationsByUser(userID, 10)
		if err != nil {
			t.Fatalf("list notifications: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("notifications for %s = %d, want 1", userID, len(items))
		}
		got := items[0]
		if got.Type != "legal_update" {
			t.Fatalf("type = %q, want legal_update", got.Type)
		}
		if got.Title != "Actualización legal: Gaceta Oficial" {
			t.Fatalf("title = %q", got.Title)
		}
	}
	items, _ := mem.ListNotificationsByUser("user-3", 10)
	if len(items) != 0 {
		t.Fatalf("inactive subscriber notified: %+v", items)
	}
}

func TestHandleLegalUpdateNoSubscribers(t *testing.T) {
	a, _ := newTestApp(t)
	event := events.LegalUpdateEvent{UpdateID: "upd-1", Source: "Gaceta Oficial"}
	if err := a.HandleLegalUpdate(context.Background(), event); err != nil {
		t.Fatalf("handle update: %v", err)
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	a, mem := newTestApp(t)
	if err := mem.InsertNotifications([]domain.Notification{{
		ID:        "ntf-1",
		UserID:    "user-1",
		Title:     "Plazo próximo a vencer",
		Content:   "Presentar alegatos",
		Type:      "deadline",
		CreatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := a.MarkRead(domain.User{ID: "user-2"}, "ntf-1"); !errors.Is(err, store.ErrNotificationNotFound) {
		t.Fatalf("expected not-found for other user, got %v", err)
	}
	if err := a.MarkRead(domain.User{ID: "user-1"}, "ntf-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	items, _ := mem.ListNotificationsByUser("user-1", 10)
	if len(items) != 1 || !items[0].Read {
		t.Fatalf("notification not marked read: %+v", items)
	}
}
