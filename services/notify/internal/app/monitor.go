package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/store"
)

// Deadlines this close to their due date trigger a reminder.
const deadlineWarningWindow = 7 * 24 * time.Hour

// SweepResult summarizes one deadline monitor pass.
type SweepResult struct {
	Upcoming int `json:"upcoming"`
	Expired  int `json:"expired"`
}

// SweepDeadlines notifies owners of deadlines due within the warning
// window or already overdue, then marks them so they fire only once.
func (a *App) SweepDeadlines(now time.Time) (SweepResult, error) {
	pending, err := a.store.ListPendingDeadlines()
	if err != nil {
		return SweepResult{}, fmt.Errorf("list pending deadlines: %w", err)
	}
	now = now.UTC()
	var result SweepResult
	var notifications []domain.Notification
	var notified []string
	for _, d := range pending {
		var title, kind string
		switch {
		case d.Overdue(now):
			title = "Plazo vencido"
			kind = "deadline_expired"
			result.Expired++
		case d.DueAt.Sub(now) <= deadlineWarningWindow:
			title = "Plazo próximo a vencer"
			kind = "deadline"
			result.Upcoming++
		default:
			continue
		}
		notifications = append(notifications, domain.Notification{
			ID:        uuid.NewString(),
			UserID:    d.UserID,
			Title:     title,
			Content:   deadlineContent(d),
			Type:      kind,
			CreatedAt: now,
		})
		notified = append(notified, d.ID)
	}
	if len(notifications) == 0 {
		return result, nil
	}
	if err := a.store.InsertNotifications(notifications); err != nil {
		return SweepResult{}, fmt.Errorf("insert notifications: %w", err)
	}
	if err := a.store.MarkDeadlinesNotified(notified); err != nil {
		return SweepResult{}, fmt.Errorf("mark deadlines notified: %w", err)
	}
	slog.Info("deadline sweep complete", "upcoming", result.Upcoming, "expired", result.Expired)
	return result, nil
}

// StartSweeper runs the deadline monitor on an interval until ctx is
// cancelled.
func (a *App) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.sweepInterval)
		defer ticker.Stop()
		if _, err := a.SweepDeadlines(time.Now()); err != nil {
			slog.Error("deadline sweep", "error", err)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.SweepDeadlines(time.Now()); err != nil {
					slog.Error("deadline sweep", "error", err)
				}
			}
		}
	}()
}

func deadlineContent(d store.DeadlineWithCase) string {
	due := d.DueAt.Format("02/01/2006")
	if d.CaseTitle != "" {
		return fmt.Sprintf("%s (caso %q), vence el %s", d.Description, d.CaseTitle, due)
	}
	return fmt.Sprintf("%s, vence el %s", d.Description, due)
}
