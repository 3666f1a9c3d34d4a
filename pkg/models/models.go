package models

import (
	"strconv"
	"strings"
)

const (
	DefaultDoseKind   = "tablet"
	DefaultDoseAmount = "1"
)

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

type Medication struct {
	ID                int64  `json:"id"`
	UserID            int64  `json:"user_id"`
	Name              string `json:"name"`
	CompartmentNumber *int   `json:"compartment_number,omitempty"`
	TotalQuantity     *int   `json:"total_quantity,omitempty"`
	CurrentQuantity   *int   `json:"current_quantity,omitempty"`
	InfoText          string `json:"info_text,omitempty"`
}

type Alarm struct {
	ID           int64      `json:"id"`
	TimeOfDay    TimeOfDay  `json:"time_of_day"`
	Recurrence   Recurrence `json:"recurrence"`
	DoseKind     string     `json:"dose_kind"`
	DoseAmount   string     `json:"dose_amount"`
	MedicationID int64      `json:"medication_id"`
	UserID       int64      `json:"user_id"`
}

// DueAlarm is an alarm joined with the medication it belongs to.
type DueAlarm struct {
	Alarm      Alarm      `json:"alarm"`
	Medication Medication `json:"medication"`
}

// Payload renders the comma separated field list listening clients parse:
// medication name, HH:MM, compartment, dose kind, dose amount. A missing
// compartment renders as an empty field.
func (d DueAlarm) Payload() string {
	compartment := ""
	if d.Medication.CompartmentNumber != nil {
		compartment = strconv.Itoa(*d.Medication.CompartmentNumber)
	}

	kind := d.Alarm.DoseKind
	if kind == "" {
		kind = DefaultDoseKind
	}
	amount := d.Alarm.DoseAmount
	if amount == "" {
		amount = DefaultDoseAmount
	}

	return strings.Join([]string{
		d.Medication.Name,
		d.Alarm.TimeOfDay.HHMM(),
		compartment,
		kind,
		amount,
	}, ",")
}
