// Package push runs the periodic reading-reminder sweep.  Every tick it
// selects users whose reminder time-of-day matches the current minute and
// publishes one push event each; actual delivery happens behind the
// broker.
package push

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/book-garden-api/internal/queue"
	"github.com/iliyamo/book-garden-api/internal/repository"
)

// SettingsStore answers the sweep query.
type SettingsStore interface {
	DueReminders(ctx context.Context, hhmm string) ([]repository.ReminderTarget, error)
}

// Publisher sends push events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev queue.PushEvent) error
}

// Sweeper publishes reading reminders for every user due at the current
// minute.  It is registered as a periodic job on the process scheduler.
type Sweeper struct {
	store SettingsStore
	pub   Publisher
	now   func() time.Time
}

func NewSweeper(store SettingsStore, pub Publisher) *Sweeper {
	return &Sweeper{store: store, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

// Run performs one sweep.  Publish failures are logged per target and do
// not abort the rest of the batch.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()
	targets, err := s.store.DueReminders(ctx, now.Format("15:04"))
	if err != nil {
		return fmt.Errorf("push: due reminders: %w", err)
	}
	for _, t := range targets {
		ev := queue.PushEvent{
			UserID:   t.UserID,
			FCMToken: t.FCMToken,
			Kind:     queue.KindBookReminder,
			Title:    "Time to read",
			Body:     fmt.Sprintf("%s, your garden is waiting for today's pages.", t.Nickname),
			QueuedAt: now.Format(time.RFC3339),
		}
		if err := s.pub.Publish(ctx, ev); err != nil {
			log.Printf("push: publish reminder for user %d failed: %v", t.UserID, err)
		}
	}
	return nil
}
