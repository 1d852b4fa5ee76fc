package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/medtracker/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// NotificationFilter controls which inbox entries are listed.
type NotificationFilter struct {
	UnreadOnly bool
	Type       *model.NotificationType
	Limit      int
}

// Store defines the local persistence interface: inbox history and the
// last fetched schedule snapshot.
type Store interface {
	// === Notifications ===

	SaveNotification(ctx context.Context, n model.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context) error
	PruneNotifications(ctx context.Context, before time.Time) (int64, error)

	// === Snapshots ===

	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context, day string) (*model.Snapshot, error)
	PruneSnapshots(ctx context.Context, keepDay string) error

	Close() error
}
