package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"medcontrol/pkg/models"
)

// MemoryStore is an in-process alarm store used for local development
// (STORE_DRIVER=memory) and tests. It answers the same query as AlarmStore.
type MemoryStore struct {
	mu          sync.RWMutex
	alarms      map[int64]models.Alarm
	medications map[int64]models.Medication
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alarms:      make(map[int64]models.Alarm),
		medications: make(map[int64]models.Medication),
	}
}

func (s *MemoryStore) PutMedication(m models.Medication) {
	s.mu.Lock()
	s.medications[m.ID] = m
	s.mu.Unlock()
}

func (s *MemoryStore) PutAlarm(a models.Alarm) {
	s.mu.Lock()
	s.alarms[a.ID] = a
	s.mu.Unlock()
}

func (s *MemoryStore) DeleteMedication(id int64) {
	s.mu.Lock()
	delete(s.medications, id)
	s.mu.Unlock()
}

func (s *MemoryStore) DueAlarms(ctx context.Context, window models.MinuteWindow, day time.Weekday) ([]models.DueAlarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []models.DueAlarm
	for _, a := range s.alarms {
		if !window.Contains(a.TimeOfDay) || !a.Recurrence.Includes(day) {
			continue
		}
		med, ok := s.medications[a.MedicationID]
		if !ok {
			continue
		}
		due = append(due, models.DueAlarm{Alarm: a, Medication: med})
	}

	sort.Slice(due, func(i, j int) bool {
		ai, aj := due[i].Alarm, due[j].Alarm
		if ai.TimeOfDay != aj.TimeOfDay {
			return ai.TimeOfDay.Before(aj.TimeOfDay)
		}
		return ai.ID < aj.ID
	})

	return due, nil
}

// Seed is the file format accepted by LoadSeed.
type Seed struct {
	Medications []models.Medication `json:"medications"`
	Alarms      []models.Alarm      `json:"alarms"`
}

// LoadSeed reads a Seed document and adds its rows to the store.
func (s *MemoryStore) LoadSeed(r io.Reader) (int, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return 0, fmt.Errorf("invalid seed document: %w", err)
	}

	for _, m := range seed.Medications {
		s.PutMedication(m)
	}
	for _, a := range seed.Alarms {
		if a.Recurrence.IsZero() {
			return 0, fmt.Errorf("alarm %d has no recurrence", a.ID)
		}
		s.PutAlarm(a)
	}

	return len(seed.Alarms), nil
}

func LoadSeedFile(s *MemoryStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.LoadSeed(f)
}
