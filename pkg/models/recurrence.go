package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidWeekday = errors.New("invalid weekday tag")

// DailyTag is the recurrence sentinel meaning "every day".
const DailyTag = "daily"

var weekdayTags = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Tags written by the first generation of clients.
var legacyWeekdayTags = [7]string{"dom", "seg", "ter", "qua", "qui", "sex", "sab"}

const legacyDailyTag = "diariamente"

// WeekdayTag returns the canonical tag for d.
func WeekdayTag(d time.Weekday) string {
	return weekdayTags[d]
}

// TagsFor returns every stored tag that selects day d: its canonical and
// legacy weekday tags plus both spellings of daily.
func TagsFor(d time.Weekday) []string {
	return []string{weekdayTags[d], legacyWeekdayTags[d], DailyTag, legacyDailyTag}
}

// ParseWeekday maps a canonical or legacy tag to a weekday.
func ParseWeekday(tag string) (time.Weekday, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for i := range weekdayTags {
		if tag == weekdayTags[i] || tag == legacyWeekdayTags[i] {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, tag)
}

// Recurrence is the set of weekdays an alarm fires on.
type Recurrence struct {
	Daily bool
	days  uint8
}

func Daily() Recurrence {
	return Recurrence{Daily: true}
}

func Weekly(days ...time.Weekday) Recurrence {
	var r Recurrence
	for _, d := range days {
		r.days |= 1 << uint(d)
	}
	return r
}

// ParseRecurrence builds a recurrence from a list of tags.
func ParseRecurrence(tags []string) (Recurrence, error) {
	var r Recurrence
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == DailyTag || t == legacyDailyTag {
			r.Daily = true
			continue
		}
		d, err := ParseWeekday(t)
		if err != nil {
			return Recurrence{}, err
		}
		r.days |= 1 << uint(d)
	}
	return r, nil
}

func (r Recurrence) Includes(d time.Weekday) bool {
	return r.Daily || r.days&(1<<uint(d)) != 0
}

func (r Recurrence) IsZero() bool {
	return !r.Daily && r.days == 0
}

// Tags returns canonical tags in week order, or just "daily".
func (r Recurrence) Tags() []string {
	if r.Daily {
		return []string{DailyTag}
	}
	tags := make([]string, 0, 7)
	for i, tag := range weekdayTags {
		if r.days&(1<<uint(i)) != 0 {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (r Recurrence) String() string {
	return strings.Join(r.Tags(), ",")
}

func (r Recurrence) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Tags())
}

func (r *Recurrence) UnmarshalJSON(b []byte) error {
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	parsed, err := ParseRecurrence(tags)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
