package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lileeluna/chores-bot/internal/model"
)

// dateFormat is how last_done is stored: a calendar date with no time of day.
const dateFormat = "2006-01-02"

// ChoreStore persists chores keyed by name.
type ChoreStore struct {
	db querier
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// WithTx returns a store that runs its statements inside tx.
func (s *ChoreStore) WithTx(tx *sql.Tx) *ChoreStore {
	return &ChoreStore{db: tx}
}

const choreCols = `name, assigned_to, frequency_days, last_done, last_done_by, rotation, remind_at, remind_channel, created_at`

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var lastDone sql.NullString
	var lastDoneBy sql.NullString
	var rotation string
	var remindAt sql.NullTime

	err := scanner.Scan(
		&c.Name, &c.AssignedTo, &c.FrequencyDays, &lastDone, &lastDoneBy,
		&rotation, &remindAt, &c.RemindChannel, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastDone.Valid {
		d, err := time.Parse(dateFormat, lastDone.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_done: %w", err)
		}
		c.LastDone = &d
	}
	if lastDoneBy.Valid {
		c.LastDoneBy = &lastDoneBy.String
	}
	if remindAt.Valid {
		t := remindAt.Time
		c.RemindAt = &t
	}
	if err := json.Unmarshal([]byte(rotation), &c.Rotation); err != nil {
		return nil, fmt.Errorf("decode rotation: %w", err)
	}
	return &c, nil
}

// Create inserts a new chore. The name must not already exist.
func (s *ChoreStore) Create(name, assignedTo string, frequencyDays int, rotation []string) (*model.Chore, error) {
	rot, err := json.Marshal(rotation)
	if err != nil {
		return nil, fmt.Errorf("encode rotation: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO chores (name, assigned_to, frequency_days, rotation) VALUES (?, ?, ?, ?)`,
		name, assignedTo, frequencyDays, string(rot),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetByName(name)
}

// GetByName returns the chore, or nil if no chore has that name.
func (s *ChoreStore) GetByName(name string) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE name = ?`, name)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// List returns all chores ordered by name.
func (s *ChoreStore) List() ([]model.Chore, error) {
	rows, err := s.db.Query(`SELECT ` + choreCols + ` FROM chores ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// RecordCompletion writes the fields mutated by a completion: the assignee,
// the completion date and completer, and the next reminder. The single UPDATE
// keeps the transition atomic.
func (s *ChoreStore) RecordCompletion(c *model.Chore) error {
	var lastDone sql.NullString
	if c.LastDone != nil {
		lastDone = sql.NullString{String: c.LastDone.Format(dateFormat), Valid: true}
	}
	var lastDoneBy sql.NullString
	if c.LastDoneBy != nil {
		lastDoneBy = sql.NullString{String: *c.LastDoneBy, Valid: true}
	}
	var remindAt sql.NullTime
	if c.RemindAt != nil {
		// Stored in UTC so ListDueReminders compares like with like
		// regardless of the host timezone.
		remindAt = sql.NullTime{Time: c.RemindAt.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE chores SET assigned_to = ?, last_done = ?, last_done_by = ?, remind_at = ?, remind_channel = ? WHERE name = ?`,
		c.AssignedTo, lastDone, lastDoneBy, remindAt, c.RemindChannel, c.Name,
	)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// Delete removes the chore. Returns false if no chore had that name.
func (s *ChoreStore) Delete(name string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM chores WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete chore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Clear removes all chores.
func (s *ChoreStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM chores`); err != nil {
		return fmt.Errorf("clear chores: %w", err)
	}
	return nil
}

// ListDueReminders returns chores whose persisted reminder time has passed.
func (s *ChoreStore) ListDueReminders(now time.Time) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE remind_at IS NOT NULL AND remind_at <= ? ORDER BY name ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// ClearReminder nulls a chore's pending reminder so it fires at most once.
func (s *ChoreStore) ClearReminder(name string) error {
	if _, err := s.db.Exec(`UPDATE chores SET remind_at = NULL WHERE name = ?`, name); err != nil {
		return fmt.Errorf("clear reminder: %w", err)
	}
	return nil
}
