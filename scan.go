package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"medcontrol/internal/registry"
	"medcontrol/internal/scheduler"
	"medcontrol/pkg/models"
)

type scanOutput struct {
	At      string         `json:"at"`
	Window  string         `json:"window"`
	Day     string         `json:"day"`
	Matches []scanMatchRow `json:"matches"`
}

type scanMatchRow struct {
	AlarmID int64  `json:"alarm_id"`
	UserID  int64  `json:"user_id"`
	Payload string `json:"payload"`
}

func runScan(at string, asJSON bool, out io.Writer) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, _ := cfg.Location()
	now := time.Now().In(loc)
	if at != "" {
		now, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	sch, err := scheduler.NewScheduler(store.store, registry.New(), scheduler.Options{Location: loc}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ScanTimeout())
	defer cancel()

	match, err := sch.Preview(ctx, now)
	if err != nil {
		return err
	}

	return writeScan(out, now, match, asJSON)
}

func writeScan(out io.Writer, at time.Time, match scheduler.Match, asJSON bool) error {
	result := scanOutput{
		At:      at.Format(time.RFC3339),
		Window:  match.Window.String(),
		Day:     models.WeekdayTag(match.Day),
		Matches: make([]scanMatchRow, 0, len(match.Alarms)),
	}
	for _, due := range match.Alarms {
		result.Matches = append(result.Matches, scanMatchRow{
			AlarmID: due.Alarm.ID,
			UserID:  due.Alarm.UserID,
			Payload: due.Payload(),
		})
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "%s  window %s  day %s  %d match(es)\n", result.At, result.Window, result.Day, len(result.Matches))
	for _, m := range result.Matches {
		fmt.Fprintf(out, "  alarm %d  user %d  %s\n", m.AlarmID, m.UserID, m.Payload)
	}
	return nil
}
