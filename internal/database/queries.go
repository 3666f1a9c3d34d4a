package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"medcontrol/pkg/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AlarmStore reads alarms and their medications from PostgreSQL. It never
// writes; alarm and medication records are managed elsewhere.
type AlarmStore struct {
	db     *DB
	logger *zap.Logger
}

func NewAlarmStore(db *DB, logger *zap.Logger) *AlarmStore {
	return &AlarmStore{
		db:     db,
		logger: logger,
	}
}

const dueAlarmsQuery = `
	SELECT
		a.id,
		to_char(a.time_of_day, 'HH24:MI:SS'),
		a.recurrence::text,
		COALESCE(a.dose_kind, ''),
		COALESCE(a.dose_amount, ''),
		a.medication_id,
		a.user_id,
		m.user_id,
		m.name,
		m.compartment_number,
		m.total_quantity,
		m.current_quantity,
		COALESCE(m.info_text, '')
	FROM alarms a
	JOIN medications m ON m.id = a.medication_id
	WHERE a.time_of_day BETWEEN $1 AND $2
	  AND (
		a.recurrence::jsonb ?| $3
		OR (jsonb_typeof(a.recurrence::jsonb) = 'string'
			AND string_to_array(lower(replace(a.recurrence::jsonb #>> '{}', ' ', '')), ',') && $3::text[])
	  )
	ORDER BY a.time_of_day ASC, a.id ASC
`

// DueAlarms returns the alarms set inside window that recur on day. The inner
// join drops alarms whose medication no longer exists.
func (s *AlarmStore) DueAlarms(ctx context.Context, window models.MinuteWindow, day time.Weekday) ([]models.DueAlarm, error) {
	rows, err := s.db.conn.QueryContext(ctx, dueAlarmsQuery,
		window.Start.String(),
		window.End.String(),
		pq.Array(models.TagsFor(day)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due alarms: %w", err)
	}
	defer rows.Close()

	var due []models.DueAlarm
	for rows.Next() {
		var (
			d                                 models.DueAlarm
			timeOfDay, recurrence             string
			medUserID                         sql.NullInt64
			compartment, totalQty, currentQty sql.NullInt64
		)

		err := rows.Scan(
			&d.Alarm.ID, &timeOfDay, &recurrence, &d.Alarm.DoseKind, &d.Alarm.DoseAmount,
			&d.Alarm.MedicationID, &d.Alarm.UserID,
			&medUserID, &d.Medication.Name, &compartment, &totalQty, &currentQty, &d.Medication.InfoText,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due alarm: %w", err)
		}

		d.Alarm.TimeOfDay, err = models.ParseTimeOfDay(timeOfDay)
		if err != nil {
			s.logger.Warn("Skipping alarm with unreadable time",
				zap.Int64("alarm_id", d.Alarm.ID),
				zap.Error(err),
			)
			continue
		}
		d.Alarm.Recurrence, err = parseStoredRecurrence(recurrence)
		if err != nil {
			s.logger.Warn("Skipping alarm with unreadable recurrence",
				zap.Int64("alarm_id", d.Alarm.ID),
				zap.String("recurrence", recurrence),
				zap.Error(err),
			)
			continue
		}

		d.Medication.ID = d.Alarm.MedicationID
		d.Medication.UserID = medUserID.Int64
		d.Medication.CompartmentNumber = nullIntPtr(compartment)
		d.Medication.TotalQuantity = nullIntPtr(totalQty)
		d.Medication.CurrentQuantity = nullIntPtr(currentQty)

		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due alarms: %w", err)
	}

	return due, nil
}

// parseStoredRecurrence accepts the JSON array the column normally holds and
// the comma separated string some older rows carry.
func parseStoredRecurrence(raw string) (models.Recurrence, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		var joined string
		if err := json.Unmarshal([]byte(raw), &joined); err != nil {
			return models.Recurrence{}, fmt.Errorf("recurrence is neither a list nor a string: %w", err)
		}
		tags = strings.Split(joined, ",")
	}
	return models.ParseRecurrence(tags)
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
