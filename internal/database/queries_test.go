package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"medcontrol/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dueAlarmColumns = []string{
	"id", "time_of_day", "recurrence", "dose_kind", "dose_amount", "medication_id", "user_id",
	"med_user_id", "name", "compartment_number", "total_quantity", "current_quantity", "info_text",
}

func setupMockAlarmStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlarmStore) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewAlarmStore(NewFromConn(conn), zap.NewNop())
	return conn, mock, store
}

func TestDueAlarms_Success(t *testing.T) {
	conn, mock, store := setupMockAlarmStore(t)
	defer conn.Close()

	window := models.MinuteWindowAt(time.Date(2026, 10, 19, 9, 0, 12, 0, time.UTC))

	rows := sqlmock.NewRows(dueAlarmColumns).
		AddRow(1, "09:00:00", `["mon"]`, "tablet", "2", 10, 7, 7, "Ibuprofen", 3, 30, 12, "after meals").
		AddRow(2, "09:00:30", `["diariamente"]`, "drops", "5", 11, 8, nil, "Dipyrone", nil, nil, nil, "")

	mock.ExpectQuery(`SELECT .+ FROM alarms a\s+JOIN medications m`).
		WithArgs("09:00:00", "09:00:59", pq.Array([]string{"mon", "seg", "daily", "diariamente"})).
		WillReturnRows(rows)

	due, err := store.DueAlarms(context.Background(), window, time.Monday)
	require.NoError(t, err)
	require.Len(t, due, 2)

	first := due[0]
	assert.Equal(t, int64(1), first.Alarm.ID)
	assert.Equal(t, int64(7), first.Alarm.UserID)
	assert.True(t, first.Alarm.Recurrence.Includes(time.Monday))
	assert.Equal(t, int64(10), first.Medication.ID)
	require.NotNil(t, first.Medication.CompartmentNumber)
	assert.Equal(t, 3, *first.Medication.CompartmentNumber)
	assert.Equal(t, "Ibuprofen,09:00,3,tablet,2", first.Payload())

	second := due[1]
	assert.True(t, second.Alarm.Recurrence.Daily)
	assert.Nil(t, second.Medication.CompartmentNumber)
	assert.Equal(t, "Dipyrone,09:00,,drops,5", second.Payload())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueAlarms_SkipsUnreadableRows(t *testing.T) {
	conn, mock, store := setupMockAlarmStore(t)
	defer conn.Close()

	rows := sqlmock.NewRows(dueAlarmColumns).
		AddRow(1, "09:00:00", `{"bad":true}`, "", "", 10, 7, 7, "Ibuprofen", nil, nil, nil, "").
		AddRow(2, "09:00:00", `"seg,qua"`, "", "", 10, 7, 7, "Ibuprofen", nil, nil, nil, "")

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	window := models.MinuteWindowAt(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	due, err := store.DueAlarms(context.Background(), window, time.Monday)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(2), due[0].Alarm.ID)
	assert.Equal(t, models.Weekly(time.Monday, time.Wednesday), due[0].Alarm.Recurrence)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueAlarms_FiltersCommaSeparatedRecurrenceInSQL(t *testing.T) {
	conn, mock, store := setupMockAlarmStore(t)
	defer conn.Close()

	rows := sqlmock.NewRows(dueAlarmColumns).
		AddRow(3, "09:00:00", `"seg,qua"`, "tablet", "1", 10, 7, 7, "Ibuprofen", 3, nil, nil, "")

	mock.ExpectQuery(`a\.recurrence::jsonb \?\| \$3\s+OR \(jsonb_typeof\(a\.recurrence::jsonb\) = 'string'\s+` +
		`AND string_to_array\(lower\(replace\(a\.recurrence::jsonb #>> '\{\}', ' ', ''\)\), ','\) && \$3::text\[\]\)`).
		WithArgs("09:00:00", "09:00:59", pq.Array([]string{"wed", "qua", "daily", "diariamente"})).
		WillReturnRows(rows)

	window := models.MinuteWindowAt(time.Date(2026, 10, 21, 9, 0, 20, 0, time.UTC))
	due, err := store.DueAlarms(context.Background(), window, time.Wednesday)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].Alarm.Recurrence.Includes(time.Wednesday))
	assert.Equal(t, "Ibuprofen,09:00,3,tablet,1", due[0].Payload())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueAlarms_QueryError(t *testing.T) {
	conn, mock, store := setupMockAlarmStore(t)
	defer conn.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection reset"))

	window := models.MinuteWindowAt(time.Now())
	due, err := store.DueAlarms(context.Background(), window, time.Monday)

	assert.Error(t, err)
	assert.Nil(t, due)
	assert.Contains(t, err.Error(), "failed to query due alarms")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueAlarms_Empty(t *testing.T) {
	conn, mock, store := setupMockAlarmStore(t)
	defer conn.Close()

	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows(dueAlarmColumns))

	due, err := store.DueAlarms(context.Background(), models.MinuteWindowAt(time.Now()), time.Friday)
	require.NoError(t, err)
	assert.Empty(t, due)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore_DueAlarms(t *testing.T) {
	store := NewMemoryStore()
	store.PutMedication(models.Medication{ID: 10, Name: "Ibuprofen"})
	store.PutAlarm(models.Alarm{ID: 2, TimeOfDay: models.TimeOfDay{Hour: 8, Minute: 15, Second: 40}, Recurrence: models.Daily(), MedicationID: 10, UserID: 1})
	store.PutAlarm(models.Alarm{ID: 1, TimeOfDay: models.TimeOfDay{Hour: 8, Minute: 15}, Recurrence: models.Weekly(time.Monday), MedicationID: 10, UserID: 1})
	store.PutAlarm(models.Alarm{ID: 3, TimeOfDay: models.TimeOfDay{Hour: 8, Minute: 15}, Recurrence: models.Weekly(time.Tuesday), MedicationID: 10, UserID: 1})
	// orphaned
	store.PutAlarm(models.Alarm{ID: 4, TimeOfDay: models.TimeOfDay{Hour: 8, Minute: 15}, Recurrence: models.Daily(), MedicationID: 99, UserID: 1})

	window := models.MinuteWindowAt(time.Date(2026, 10, 19, 8, 15, 30, 0, time.UTC))
	due, err := store.DueAlarms(context.Background(), window, time.Monday)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(1), due[0].Alarm.ID)
	assert.Equal(t, int64(2), due[1].Alarm.ID)

	store.DeleteMedication(10)
	due, err = store.DueAlarms(context.Background(), window, time.Monday)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().DueAlarms(ctx, models.MinuteWindowAt(time.Now()), time.Monday)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_LoadSeed(t *testing.T) {
	seed := `{
		"medications": [{"id": 10, "user_id": 7, "name": "Ibuprofen", "compartment_number": 3}],
		"alarms": [
			{"id": 1, "time_of_day": "09:00", "recurrence": ["mon", "qua"], "dose_kind": "tablet", "dose_amount": "2", "medication_id": 10, "user_id": 7}
		]
	}`

	store := NewMemoryStore()
	n, err := store.LoadSeed(strings.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	window := models.MinuteWindowAt(time.Date(2026, 10, 21, 9, 0, 5, 0, time.UTC))
	due, err := store.DueAlarms(context.Background(), window, time.Wednesday)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Ibuprofen,09:00,3,tablet,2", due[0].Payload())
}

func TestMemoryStore_LoadSeedRejectsEmptyRecurrence(t *testing.T) {
	seed := `{"alarms": [{"id": 5, "time_of_day": "09:00", "recurrence": [], "medication_id": 10, "user_id": 7}]}`

	_, err := NewMemoryStore().LoadSeed(strings.NewReader(seed))
	assert.EqualError(t, err, "alarm 5 has no recurrence")
}

func TestMemoryStore_LoadSeedInvalidJSON(t *testing.T) {
	_, err := NewMemoryStore().LoadSeed(strings.NewReader("{"))
	assert.Error(t, err)
}
