/*
Package notify provides the notification sinks behind leave.Notifier.

PURPOSE:
  The leave engine hands each committed notification to one Notifier.
  This package supplies the concrete sinks and a fan-out:

  ┌──────────────────┐     ┌─────────────┐
  │ RequestService   │────▶│ Multi       │──▶ StoreSink  (inbox table)
  │ (after commit)   │     └─────────────┘──▶ LogSink    (zap)
  └──────────────────┘                   └──▶ RedisSink  (push + pub/sub)

DELIVERY:
  Best-effort. Multi calls every sink even if one fails and returns the
  joined error; the engine only logs it.

SEE ALSO:
  - leave/notify.go: Notifier interface and message text
  - store/sqlite, store/postgres: notifications table
*/
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MULTI - Fan-out
// =============================================================================

// Multi delivers to every sink in order.
type Multi []leave.Notifier

func (m Multi) Notify(ctx context.Context, n leave.Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// STORE SINK - Notification inbox
// =============================================================================

// StoreSink persists notifications so teachers can read them later.
type StoreSink struct {
	store leave.Store
	now   func() time.Time
}

func NewStoreSink(store leave.Store) *StoreSink {
	return &StoreSink{store: store, now: time.Now}
}

// Notify assigns an id when missing and inserts the notification in its own
// unit of work.
func (s *StoreSink) Notify(ctx context.Context, n leave.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	return s.store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.InsertNotification(ctx, &n)
	})
}

// List returns the inbox of recipient, newest first.
func (s *StoreSink) List(ctx context.Context, recipient generic.TeacherID, unreadOnly bool) ([]leave.Notification, error) {
	var notes []leave.Notification
	err := s.store.View(ctx, func(repo leave.Repository) error {
		var err error
		notes, err = repo.ListNotifications(ctx, recipient, unreadOnly)
		return err
	})
	if err != nil {
		return nil, generic.WrapPersistence("list notifications", err)
	}
	return notes, nil
}

// MarkRead flags one notification of recipient as read.
func (s *StoreSink) MarkRead(ctx context.Context, id string, recipient generic.TeacherID) error {
	err := s.store.WithTx(ctx, func(repo leave.Repository) error {
		ok, err := repo.MarkNotificationRead(ctx, id, recipient)
		if err != nil {
			return err
		}
		if !ok {
			return &generic.NotFoundError{Resource: "notification", Key: id}
		}
		return nil
	})
	return generic.WrapPersistence("mark notification read", err)
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink writes every notification to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, n leave.Notification) error {
	s.logger.Info("notification",
		zap.Int64("recipient_id", int64(n.RecipientID)),
		zap.String("category", string(n.Category)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)
	return nil
}
