package app

import (
	"strings"
	"testing"
	"time"

	"lexilegal/pkg/domain"
	"lexilegal/pkg/store"
)

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	a, err := New(Config{Store: mem})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem
}

func seedDeadline(t *testing.T, mem *store.MemoryStore, id string, dueAt time.Time) {
	t.Helper()
	if err := mem.SaveCase(domain.Case{
		ID:     "case-1",
		UserID: "user-1",
		Title:  "Expediente Pérez",
		Status: domain.CaseActive,
	}); err != nil {
		t.Fatalf("save case: %v", err)
	}
	if err := mem.SaveDeadline(domain.Deadline{
		ID:          id,
		CaseID:      "case-1",
		UserID:      "user-1",
		Description: "Presentar alegatos",
		DueAt:       dueAt,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("save deadline: %v", err)
	}
}

func TestSweepNotifiesUpcomingDeadline(t *testing.T) {
	a, mem := newTestApp(t)
	now := time.Now().UTC()
	seedDeadline(t, mem, "dl-1", now.Add(3*24*time.Hour))

	result, err := a.SweepDeadlines(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Upcoming != 1 || result.Expired != 0 {
		t.Fatalf("result = %+v, want one upcoming", result)
	}
	items, err := mem.ListNotificationsByUser("user-1", 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("notifications = %d, want 1", len(items))
	}
	if items[0].Type != "deadline" {
		t.Fatalf("type = %q, want deadline", items[0].Type)
	}
	if !strings.Contains(items[0].Content, "Expediente Pérez") {
		t.Fatalf("content missing case title: %q", items[0].Content)
	}
}

func TestSweepNotifiesOverdueDeadline(t *testing.T) {
	a, mem := newTestApp(t)
	now := time.Now().UTC()
	seedDeadline(t, mem, "dl-1", now.Add(-24*time.Hour))

	result, err := a.SweepDeadlines(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Expired != 1 || result.Upcoming != 0 {
		t.Fatalf("result = %+v, want one expired", result)
	}
	items, _ := mem.ListNotificationsByUser("user-1", 10)
	if len(items) != 1 || items[0].Type != "deadline_expired" {
		t.Fatalf("notifications = %+v, want one deadline_expired", items)
	}
}

func TestSweepSkipsDistantDeadline(t *testing.T) {
	a, mem := newTestApp(t)
	now := time.Now().UTC()
	seedDeadline(t, mem, "dl-1", now.Add(30*24*time.Hour))

	result, err := a.SweepDeadlines(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Upcoming != 0 || result.Expired != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
	items, _ := mem.ListNotificationsByUser("user-1", 10)
	if len(items) != 0 {
		t.Fatalf("expected no notifications, got %d", len(items))
	}

	// Still pending, so a later sweep inside the window picks it up.
	result, err = a.SweepDeadlines(now.Add(25 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Upcoming != 1 {
		t.Fatalf("second sweep result = %+v, want one upcoming", result)
	}
}

func TestSweepFiresOnlyOnce(t *testing.T) {
	a, mem := newTestApp(t)
	now := time.Now().UTC()
	seedDeadline(t, mem, "dl-1", now.Add(24*time.Hour))

	if _, err := a.SweepDeadlines(now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	result, err := a.SweepDeadlines(now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Upcoming != 0 || result.Expired != 0 {
		t.Fatalf("second sweep result = %+v, want empty", result)
	}
	items, _ := mem.ListNotificationsByUser("user-1", 10)
	if len(items) != 1 {
		t.Fatalf("notifications = %d, want 1", len(items))
	}
}
