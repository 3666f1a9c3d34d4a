package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options tune the scan cadence.
type Options struct {
	Interval      time.Duration
	AlignToMinute bool
	Location      *time.Location
	Recorder      Recorder
}

// Scheduler is the periodic alarm scan. It is a workers.Worker: the
// WorkerManager owns its cadence, overlap protection and per-run timeout.
type Scheduler struct {
	matcher    *Matcher
	dispatcher *Dispatcher
	recorder   Recorder
	interval   time.Duration
	align      bool
	logger     *zap.Logger

	// Now is overridable in tests.
	Now func() time.Time
}

func NewScheduler(store AlarmStore, devices DeviceLookup, opts Options, logger *zap.Logger) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("scheduler requires an alarm store")
	}
	if devices == nil {
		return nil, errors.New("scheduler requires a device registry")
	}
	if logger == nil {
		return nil, errors.New("scheduler requires a logger")
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}

	return &Scheduler{
		matcher:    NewMatcher(store, opts.Location),
		dispatcher: NewDispatcher(devices, logger),
		recorder:   opts.Recorder,
		interval:   opts.Interval,
		align:      opts.AlignToMinute,
		logger:     logger,
		Now:        time.Now,
	}, nil
}

func (s *Scheduler) Name() string {
	return "alarm-scan"
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// FirstRunDelay puts the first scan one second past the next minute boundary
// so later ticks land inside their minute.
func (s *Scheduler) FirstRunDelay(now time.Time) time.Duration {
	if !s.align {
		return 0
	}
	next := now.Truncate(time.Minute).Add(time.Minute + time.Second)
	return next.Sub(now)
}

func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.Scan(ctx, s.Now())
	return err
}

// Scan runs one tick for the instant now: match, then dispatch. A store
// failure aborts the tick before anything is sent.
func (s *Scheduler) Scan(ctx context.Context, now time.Time) (DispatchResult, error) {
	match, err := s.matcher.Match(ctx, now)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("alarm scan aborted: %w", err)
	}

	s.logger.Debug("Alarm scan",
		zap.String("window", match.Window.String()),
		zap.String("day", match.Day.String()),
		zap.Int("matched", len(match.Alarms)),
	)
	if len(match.Alarms) == 0 {
		return DispatchResult{}, nil
	}

	result := s.dispatcher.Dispatch(ctx, match.Alarms)

	s.logger.Info("Alarm scan dispatched",
		zap.String("window", match.Window.String()),
		zap.Int("matched", len(match.Alarms)),
		zap.Int("delivered", result.Delivered),
		zap.Int("lost", result.Lost),
		zap.Int("failed", result.Failed),
	)

	if s.recorder != nil {
		if err := s.recorder.RecordTick(ctx, now, result); err != nil {
			s.logger.Warn("Failed to record scan outcome", zap.Error(err))
		}
	}

	return result, nil
}

// Preview returns what a scan at now would match without dispatching.
func (s *Scheduler) Preview(ctx context.Context, now time.Time) (Match, error) {
	return s.matcher.Match(ctx, now)
}
