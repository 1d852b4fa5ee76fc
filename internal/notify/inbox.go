// Package notify turns reminder decisions into user-visible notifications
// and keeps the in-memory notification inbox.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/medtracker/internal/model"
	"github.com/nhle/medtracker/internal/store"
)

// DefaultInboxLimit caps how many notifications the inbox keeps in memory
// and loads from storage.
const DefaultInboxLimit = 200

// persistTimeout bounds each background write to storage.
const persistTimeout = 5 * time.Second

// persistQueueSize is how many storage writes may wait for the worker.
const persistQueueSize = 256

// Persister is the storage the inbox mirrors its changes to.
// *store.SQLiteStore satisfies it.
type Persister interface {
	SaveNotification(ctx context.Context, n model.Notification) error
	ListNotifications(ctx context.Context, filter store.NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context) error
}

// Inbox is the user-facing list of notifications, newest first. All
// operations update memory synchronously; storage writes happen in the
// background and never roll back the in-memory state.
type Inbox struct {
	mu     sync.RWMutex
	items  []model.Notification
	active *model.Notification
	limit  int

	persist Persister
	logger  *zap.Logger
	now     func() time.Time
	changes chan struct{}

	jobMu   sync.Mutex
	jobs    chan persistJob
	closed  bool
	pending sync.WaitGroup
}

type persistJob struct {
	what string
	fn   func(context.Context, Persister) error
}

// InboxOption customizes an Inbox.
type InboxOption func(*Inbox)

// WithPersister mirrors inbox changes to p.
func WithPersister(p Persister) InboxOption {
	return func(in *Inbox) { in.persist = p }
}

// WithLimit caps the number of notifications kept in memory.
func WithLimit(n int) InboxOption {
	return func(in *Inbox) {
		if n > 0 {
			in.limit = n
		}
	}
}

// WithNow overrides the time source used for CreatedAt.
func WithNow(now func() time.Time) InboxOption {
	return func(in *Inbox) { in.now = now }
}

// NewInbox creates an empty inbox.
func NewInbox(logger *zap.Logger, opts ...InboxOption) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Inbox{
		limit:   DefaultInboxLimit,
		logger:  logger,
		now:     time.Now,
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.persist != nil {
		in.jobs = make(chan persistJob, persistQueueSize)
		go in.run()
	}
	return in
}

// Load replaces the in-memory list with what storage holds. It is a no-op
// without a persister.
func (in *Inbox) Load(ctx context.Context) error {
	if in.persist == nil {
		return nil
	}
	items, err := in.persist.ListNotifications(ctx, store.NotificationFilter{Limit: in.limit})
	if err != nil {
		return fmt.Errorf("loading inbox: %w", err)
	}

	in.mu.Lock()
	in.items = items
	in.active = nil
	in.mu.Unlock()

	in.signal()
	return nil
}

// Add prepends n, assigning an ID and timestamp when missing. A reminder
// becomes the active reminder. The stored copy is returned.
func (in *Inbox) Add(n model.Notification) model.Notification {
	if n.ID == "" {
		if id, err := uuid.NewV7(); err == nil {
			n.ID = id.String()
		} else {
			n.ID = uuid.NewString()
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = in.now()
	}

	in.mu.Lock()
	in.items = append([]model.Notification{n}, in.items...)
	if len(in.items) > in.limit {
		in.items = in.items[:in.limit]
	}
	if n.Type == model.NotificationTypeReminder {
		active := n
		in.active = &active
	}
	in.mu.Unlock()

	in.background("saving notification", func(ctx context.Context, p Persister) error {
		return p.SaveNotification(ctx, n)
	})
	in.signal()
	return n
}

// MarkRead marks one notification as read. It reports whether the
// notification exists.
func (in *Inbox) MarkRead(id string) bool {
	in.mu.Lock()
	found := false
	for i := range in.items {
		if in.items[i].ID == id {
			found = true
			in.items[i].Read = true
			break
		}
	}
	in.mu.Unlock()

	if !found {
		return false
	}
	in.background("marking notification read", func(ctx context.Context, p Persister) error {
		return p.MarkNotificationRead(ctx, id)
	})
	in.signal()
	return true
}

// MarkAllRead marks every notification as read.
func (in *Inbox) MarkAllRead() {
	in.mu.Lock()
	for i := range in.items {
		in.items[i].Read = true
	}
	in.mu.Unlock()

	in.background("marking all notifications read", func(ctx context.Context, p Persister) error {
		return p.MarkAllNotificationsRead(ctx)
	})
	in.signal()
}

// Remove deletes one notification. Removing the active reminder also
// dismisses it.
func (in *Inbox) Remove(id string) bool {
	in.mu.Lock()
	idx := -1
	for i := range in.items {
		if in.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		in.items = append(in.items[:idx], in.items[idx+1:]...)
		if in.active != nil && in.active.ID == id {
			in.active = nil
		}
	}
	in.mu.Unlock()

	if idx < 0 {
		return false
	}
	in.background("deleting notification", func(ctx context.Context, p Persister) error {
		return p.DeleteNotification(ctx, id)
	})
	in.signal()
	return true
}

// ClearAll empties the inbox and dismisses the active reminder.
func (in *Inbox) ClearAll() {
	in.mu.Lock()
	in.items = nil
	in.active = nil
	in.mu.Unlock()

	in.background("clearing notifications", func(ctx context.Context, p Persister) error {
		return p.DeleteAllNotifications(ctx)
	})
	in.signal()
}

// UnreadCount returns how many notifications are unread.
func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()

	n := 0
	for _, item := range in.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Len returns the number of notifications held.
func (in *Inbox) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.items)
}

// List returns a copy of the notifications, newest first.
func (in *Inbox) List() []model.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]model.Notification, len(in.items))
	copy(out, in.items)
	return out
}

// Get returns the notification with the given ID.
func (in *Inbox) Get(id string) (model.Notification, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	for _, item := range in.items {
		if item.ID == id {
			return item, true
		}
	}
	return model.Notification{}, false
}

// Active returns the most recent undismissed reminder.
func (in *Inbox) Active() (model.Notification, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if in.active == nil {
		return model.Notification{}, false
	}
	return *in.active, true
}

// DismissActive clears the active reminder if it refers to the given dose
// occurrence. It reports whether anything was dismissed.
func (in *Inbox) DismissActive(medicationID, day, doseTime string) bool {
	in.mu.Lock()
	dismissed := false
	if a := in.active; a != nil && a.Data != nil &&
		a.Data.MedicationID == medicationID &&
		a.Data.Day == day &&
		a.Data.DoseTime == doseTime {
		in.active = nil
		dismissed = true
	}
	in.mu.Unlock()

	if dismissed {
		in.signal()
	}
	return dismissed
}

// ClearActive dismisses the active reminder unconditionally.
func (in *Inbox) ClearActive() {
	in.mu.Lock()
	had := in.active != nil
	in.active = nil
	in.mu.Unlock()

	if had {
		in.signal()
	}
}

// Changes delivers a signal after every change. Signals coalesce; a
// receiver should re-read the inbox rather than count them.
func (in *Inbox) Changes() <-chan struct{} {
	return in.changes
}

// Wait blocks until every queued storage write has finished.
func (in *Inbox) Wait() {
	in.pending.Wait()
}

// Close stops the storage worker after draining queued writes. Later
// changes stay in memory only.
func (in *Inbox) Close() {
	in.jobMu.Lock()
	if in.jobs != nil && !in.closed {
		in.closed = true
		close(in.jobs)
	}
	in.jobMu.Unlock()
	in.pending.Wait()
}

func (in *Inbox) signal() {
	select {
	case in.changes <- struct{}{}:
	default:
	}
}

// background queues a storage write. Writes run in order on one worker so
// a later change never lands before an earlier one. Failures are logged
// only, and a full queue drops the write rather than block the caller.
func (in *Inbox) background(what string, fn func(context.Context, Persister) error) {
	if in.persist == nil {
		return
	}

	in.jobMu.Lock()
	defer in.jobMu.Unlock()
	if in.closed {
		return
	}

	in.pending.Add(1)
	select {
	case in.jobs <- persistJob{what: what, fn: fn}:
	default:
		in.pending.Done()
		in.logger.Warn("inbox persistence queue full, dropping write", zap.String("op", what))
	}
}

func (in *Inbox) run() {
	for job := range in.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := job.fn(ctx, in.persist); err != nil {
			in.logger.Warn(job.what, zap.Error(err))
		}
		cancel()
		in.pending.Done()
	}
}
