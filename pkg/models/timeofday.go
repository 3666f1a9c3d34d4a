package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time without a date component.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM:SS" and "HH:MM". Anything after the last
// field is an error.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return TimeOfDayOf(parsed), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
}

// TimeOfDayOf returns the clock reading of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) HHMM() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.seconds() < o.seconds()
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MinuteWindow is the inclusive range [HH:MM:00, HH:MM:59].
type MinuteWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// MinuteWindowAt returns the window for the minute t falls in.
func MinuteWindowAt(t time.Time) MinuteWindow {
	return MinuteWindow{
		Start: TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: 0},
		End:   TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: 59},
	}
}

func (w MinuteWindow) Contains(t TimeOfDay) bool {
	return !t.Before(w.Start) && !w.End.Before(t)
}

func (w MinuteWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}
