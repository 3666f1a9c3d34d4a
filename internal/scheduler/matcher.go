package scheduler

import (
	"context"
	"fmt"
	"time"

	"medcontrol/pkg/models"
)

// AlarmStore is the read-only query the scan needs from persistence.
type AlarmStore interface {
	DueAlarms(ctx context.Context, window models.MinuteWindow, day time.Weekday) ([]models.DueAlarm, error)
}

type Matcher struct {
	store    AlarmStore
	location *time.Location
}

func NewMatcher(store AlarmStore, location *time.Location) *Matcher {
	if location == nil {
		location = time.Local
	}
	return &Matcher{
		store:    store,
		location: location,
	}
}

// Match is the outcome of one matcher pass.
type Match struct {
	Window models.MinuteWindow
	Day    time.Weekday
	Alarms []models.DueAlarm
}

// Match selects the alarms set for the minute now falls in whose recurrence
// includes today, in store order. Rows the store returns outside that filter
// are dropped.
func (m *Matcher) Match(ctx context.Context, now time.Time) (Match, error) {
	local := now.In(m.location)
	match := Match{
		Window: models.MinuteWindowAt(local),
		Day:    local.Weekday(),
	}

	candidates, err := m.store.DueAlarms(ctx, match.Window, match.Day)
	if err != nil {
		return match, fmt.Errorf("failed to load due alarms: %w", err)
	}

	match.Alarms = make([]models.DueAlarm, 0, len(candidates))
	for _, c := range candidates {
		if match.Window.Contains(c.Alarm.TimeOfDay) && c.Alarm.Recurrence.Includes(match.Day) {
			match.Alarms = append(match.Alarms, c)
		}
	}

	return match, nil
}
