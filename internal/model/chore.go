package model

import "time"

// Chore is a recurring task cycled through an ordered rotation of members.
// Name is the registry key and is immutable; changing a chore's name or
// cadence means removing it and creating it again.
type Chore struct {
	Name          string     `json:"name"`
	AssignedTo    string     `json:"assigned_to"`
	FrequencyDays int        `json:"frequency_days"`
	LastDone      *time.Time `json:"last_done"`
	LastDoneBy    *string    `json:"last_done_by"`
	Rotation      []string   `json:"rotation"`
	RemindAt      *time.Time `json:"remind_at"`
	RemindChannel string     `json:"remind_channel"`
	CreatedAt     time.Time  `json:"created_at"`
}
