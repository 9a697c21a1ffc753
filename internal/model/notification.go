package model

// Notification kinds recorded for send deduplication.
const (
	NotifKindOverdueSweep = "overdue_sweep"
)
