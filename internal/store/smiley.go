package store

import (
	"database/sql"
	"fmt"

	"github.com/lileeluna/chores-bot/internal/model"
)

// SmileyStore persists the per-member, per-chore credit ledger. Counts never
// go below zero.
type SmileyStore struct {
	db querier
}

func NewSmileyStore(db *sql.DB) *SmileyStore {
	return &SmileyStore{db: db}
}

// WithTx returns a store that runs its statements inside tx.
func (s *SmileyStore) WithTx(tx *sql.Tx) *SmileyStore {
	return &SmileyStore{db: tx}
}

// Award increments the member's credit for the chore, creating the entry at 1.
func (s *SmileyStore) Award(memberID, choreName string) error {
	_, err := s.db.Exec(
		`INSERT INTO smileys (member_id, chore_name, count) VALUES (?, ?, 1)
		 ON CONFLICT (member_id, chore_name) DO UPDATE SET count = count + 1`,
		memberID, choreName,
	)
	if err != nil {
		return fmt.Errorf("award smiley: %w", err)
	}
	return nil
}

// Consume spends one credit if the member has any. Returns true when a credit
// was spent; false (and no change) when the count was already zero.
func (s *SmileyStore) Consume(memberID, choreName string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE smileys SET count = count - 1 WHERE member_id = ? AND chore_name = ? AND count > 0`,
		memberID, choreName,
	)
	if err != nil {
		return false, fmt.Errorf("consume smiley: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Peek returns the member's credit count for the chore, zero if absent.
func (s *SmileyStore) Peek(memberID, choreName string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT count FROM smileys WHERE member_id = ? AND chore_name = ?`,
		memberID, choreName,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("peek smiley: %w", err)
	}
	return count, nil
}

// ListByMember returns the member's nonzero credit entries ordered by chore.
func (s *SmileyStore) ListByMember(memberID string) ([]model.Smiley, error) {
	rows, err := s.db.Query(
		`SELECT member_id, chore_name, count FROM smileys WHERE member_id = ? AND count > 0 ORDER BY chore_name ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list smileys: %w", err)
	}
	defer rows.Close()

	var smileys []model.Smiley
	for rows.Next() {
		var sm model.Smiley
		if err := rows.Scan(&sm.MemberID, &sm.ChoreName, &sm.Count); err != nil {
			return nil, fmt.Errorf("scan smiley: %w", err)
		}
		smileys = append(smileys, sm)
	}
	return smileys, rows.Err()
}
