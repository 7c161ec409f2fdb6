package application

import (
	"time"

	"github.com/example/slotbooking/internal/persistence"
)

var slotTransitions = map[SlotStatus][]SlotStatus{
	persistence.SlotStatusAvailable: {persistence.SlotStatusOnHold},
	persistence.SlotStatusOnHold: {
		persistence.SlotStatusOnHold,
		persistence.SlotStatusBooked,
		persistence.SlotStatusFailed,
		persistence.SlotStatusCancelled,
	},
}

// CanTransition reports whether a slot may move from one status to another.
func CanTransition(from, to SlotStatus) bool {
	for _, allowed := range slotTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// dayKey returns the calendar day of t in loc, used as part of a slot's window identity.
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// startOfDay returns midnight of t's day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
