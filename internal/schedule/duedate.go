package schedule

import (
	"strings"
	"time"
)

// NextDue returns the calendar date a chore is next due. A chore that has
// never been done is due today.
func NextDue(lastDone *time.Time, frequencyDays int, today time.Time) time.Time {
	if lastDone == nil {
		return startOfDay(today)
	}
	return startOfDay(*lastDone).AddDate(0, 0, frequencyDays)
}

// RemindAt computes when to nudge the assignee after a completion: the
// remainder of the current day plus the chore's cadence in whole days.
func RemindAt(now time.Time, frequencyDays int) time.Time {
	endOfDay := startOfDay(now).AddDate(0, 0, 1)
	return endOfDay.Add(time.Duration(frequencyDays) * 24 * time.Hour)
}

// MonthlyPolicy selects which month's length defines a monthly chore's
// cadence at creation time.
type MonthlyPolicy string

const (
	// MonthlyNext uses the number of days in the month after the current one.
	MonthlyNext MonthlyPolicy = "next"
	// MonthlyCurrent uses the number of days in the current month.
	MonthlyCurrent MonthlyPolicy = "current"
)

// ParseMonthlyPolicy maps a config string to a policy, defaulting to
// MonthlyNext for anything unrecognized.
func ParseMonthlyPolicy(s string) MonthlyPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(MonthlyCurrent)) {
		return MonthlyCurrent
	}
	return MonthlyNext
}

// MonthlyFrequencyDays returns the cadence in days for a monthly chore
// created at now, under the given policy.
func MonthlyFrequencyDays(now time.Time, policy MonthlyPolicy) int {
	year, month, _ := now.Date()
	if policy != MonthlyCurrent {
		month++
	}
	// Day zero of the following month is the last day of the target month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, now.Location()).Day()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
