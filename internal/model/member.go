package model

import "time"

// RosterMember is one entry in the shared chore rotation. MemberID is the
// chat platform's user id; the platform, not this store, decides whether the
// id still belongs to a real account.
type RosterMember struct {
	MemberID string    `json:"member_id"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
}
