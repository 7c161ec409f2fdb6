package scheduler

import (
	"fmt"
	"time"

	"github.com/example/slotbooking/internal/persistence"
)

// WindowConfig bounds the bookable part of a day.
type WindowConfig struct {
	Open   string
	Close  string
	Length time.Duration
}

// DefaultWindowConfig is 09:00 to 21:00 in half-hour windows.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Open: "09:00", Close: "21:00", Length: 30 * time.Minute}
}

// Window is one bookable interval and its current occupancy.
type Window struct {
	StartTime string
	EndTime   string
	Status    persistence.SlotStatus
	SlotID    string
	HeldBy    string
	ExpiresAt time.Time
}

// ParseClock parses an "HH:MM" time of day into an offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, fmt.Errorf("time %q must use HH:MM", value)
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("time %q must use HH:MM: %w", value, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(offset time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(offset.Hours()), int(offset.Minutes())%60)
}

// FindOccupant returns the live slot holding the exact window, if any.
// Terminal failed or cancelled slots free their window.
func FindOccupant(slots []persistence.Slot, start, end string) (persistence.Slot, bool) {
	for _, slot := range slots {
		if slot.StartTime != start || slot.EndTime != end {
			continue
		}
		if slot.Status == persistence.SlotStatusOnHold || slot.Status == persistence.SlotStatusBooked {
			return slot, true
		}
	}
	return persistence.Slot{}, false
}

// DayWindows lays the day out in fixed windows and marks each one with the
// live slot occupying it. Windows without a live slot are available.
func DayWindows(cfg WindowConfig, slots []persistence.Slot) ([]Window, error) {
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("window length must be positive")
	}
	open, err := ParseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	closing, err := ParseClock(cfg.Close)
	if err != nil {
		return nil, err
	}
	if closing <= open {
		return nil, fmt.Errorf("close %s must be after open %s", cfg.Close, cfg.Open)
	}

	windows := make([]Window, 0, int((closing-open)/cfg.Length))
	for start := open; start+cfg.Length <= closing; start += cfg.Length {
		window := Window{
			StartTime: formatClock(start),
			EndTime:   formatClock(start + cfg.Length),
			Status:    persistence.SlotStatusAvailable,
		}
		if slot, ok := FindOccupant(slots, window.StartTime, window.EndTime); ok {
			window.Status = slot.Status
			window.SlotID = slot.ID
			window.HeldBy = slot.HeldBy
			window.ExpiresAt = slot.ExpiresAt
		}
		windows = append(windows, window)
	}
	return windows, nil
}
