package store

import (
	"database/sql"
	"fmt"

	"github.com/lileeluna/chores-bot/internal/model"
)

// RosterStore persists the shared chore rotation: an ordered list of member
// ids with no duplicates. Insertion order is preserved via the position column.
type RosterStore struct {
	db *sql.DB
}

func NewRosterStore(db *sql.DB) *RosterStore {
	return &RosterStore{db: db}
}

// AddResult reports the outcome of an AddMembers call.
type AddResult struct {
	Added   []string
	Already []string
	Total   int
}

// AddMembers appends the given member ids that are not already present,
// keeping argument order. Duplicate ids within the call are collapsed.
func (s *RosterStore) AddMembers(ids []string) (*AddResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing := make(map[string]bool)
	rows, err := tx.Query(`SELECT member_id FROM roster`)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan roster member: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	var nextPos int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position), -1) + 1 FROM roster`).Scan(&nextPos); err != nil {
		return nil, fmt.Errorf("next position: %w", err)
	}

	res := &AddResult{}
	for _, id := range ids {
		if existing[id] {
			res.Already = append(res.Already, id)
			continue
		}
		if _, err := tx.Exec(`INSERT INTO roster (member_id, position) VALUES (?, ?)`, id, nextPos); err != nil {
			return nil, fmt.Errorf("insert roster member: %w", err)
		}
		existing[id] = true
		nextPos++
		res.Added = append(res.Added, id)
	}

	if err := tx.QueryRow(`SELECT COUNT(*) FROM roster`).Scan(&res.Total); err != nil {
		return nil, fmt.Errorf("count roster: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// Remove deletes the member from the roster. Returns false if the member was
// not present.
func (s *RosterStore) Remove(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM roster WHERE member_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove roster member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Clear empties the roster.
func (s *RosterStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM roster`); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	return nil
}

// List returns member ids in rotation order. An empty roster yields a nil
// slice.
func (s *RosterStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT member_id FROM roster ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan roster member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Members returns the full roster entries in rotation order.
func (s *RosterStore) Members() ([]model.RosterMember, error) {
	rows, err := s.db.Query(`SELECT member_id, position, added_at FROM roster ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var members []model.RosterMember
	for rows.Next() {
		var m model.RosterMember
		if err := rows.Scan(&m.MemberID, &m.Position, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan roster member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Contains reports whether the member is in the roster.
func (s *RosterStore) Contains(id string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM roster WHERE member_id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check roster member: %w", err)
	}
	return n > 0, nil
}
