package store

import (
	"database/sql"
	"fmt"
)

// NotificationStore logs sent notifications so periodic tasks do not repeat
// themselves within a day, including across process restarts.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// WasSent reports whether a notification with this kind and reference was
// already recorded.
func (s *NotificationStore) WasSent(kind, ref string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE kind = ? AND ref = ?`,
		kind, ref,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return n > 0, nil
}

// RecordSent marks the notification as sent. Recording the same kind and
// reference twice is a no-op.
func (s *NotificationStore) RecordSent(kind, ref string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO notifications (kind, ref) VALUES (?, ?)`,
		kind, ref,
	)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}
