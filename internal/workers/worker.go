package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker is a periodic job run by the WorkerManager.
type Worker interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Aligner is implemented by workers whose first run must wait for a wall-clock
// boundary. FirstRunDelay returns how long to wait from now.
type Aligner interface {
	FirstRunDelay(now time.Time) time.Duration
}

// WorkerManager runs every registered worker on its own ticker. Runs of the
// same worker never overlap: ticks that elapse while a run is in flight are
// dropped, not queued.
type WorkerManager struct {
	workers    []Worker
	runTimeout time.Duration
	logger     *zap.Logger

	// Overridable in tests.
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewWorkerManager(runTimeout time.Duration, logger *zap.Logger) *WorkerManager {
	return &WorkerManager{
		runTimeout: runTimeout,
		logger:     logger,
		now:        time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		cancel: func() {},
	}
}

func (wm *WorkerManager) RegisterWorker(w Worker) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wm.workers = append(wm.workers, w)
	wm.logger.Info("Worker registered",
		zap.String("worker", w.Name()),
		zap.Duration("interval", w.Interval()),
	)
}

// Start launches every registered worker. It returns immediately.
func (wm *WorkerManager) Start(ctx context.Context) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	ctx, wm.cancel = context.WithCancel(ctx)

	for _, worker := range wm.workers {
		wm.wg.Add(1)
		go wm.runWorker(ctx, worker)
	}

	wm.logger.Info("Workers started", zap.Int("count", len(wm.workers)))
}

func (wm *WorkerManager) runWorker(ctx context.Context, w Worker) {
	defer wm.wg.Done()

	if a, ok := w.(Aligner); ok {
		if delay := a.FirstRunDelay(wm.now()); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	ticks, stop := wm.newTicker(w.Interval())
	defer stop()

	wm.executeWorker(ctx, w)
	wm.skipMissedTick(ticks, w)

	for {
		select {
		case <-ctx.Done():
			wm.logger.Info("Worker stopped", zap.String("worker", w.Name()))
			return

		case <-ticks:
			wm.executeWorker(ctx, w)
			wm.skipMissedTick(ticks, w)
		}
	}
}

// skipMissedTick drops a tick that fired while the previous run was in flight.
func (wm *WorkerManager) skipMissedTick(ticks <-chan time.Time, w Worker) {
	select {
	case <-ticks:
		wm.logger.Warn("Worker run overran its interval, tick skipped",
			zap.String("worker", w.Name()),
		)
	default:
	}
}

// executeWorker runs w once under the per-run timeout.
func (wm *WorkerManager) executeWorker(ctx context.Context, w Worker) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, wm.runTimeout)
	defer cancel()

	start := wm.now()
	if err := w.Run(runCtx); err != nil {
		wm.logger.Error("Worker run failed",
			zap.String("worker", w.Name()),
			zap.Error(err),
		)
		return
	}

	wm.logger.Debug("Worker run finished",
		zap.String("worker", w.Name()),
		zap.Duration("duration", wm.now().Sub(start)),
	)
}

// Stop cancels in-flight runs and waits for every worker to return.
func (wm *WorkerManager) Stop() {
	wm.mu.Lock()
	cancel := wm.cancel
	wm.mu.Unlock()

	cancel()
	wm.wg.Wait()
	wm.logger.Info("Workers stopped")
}

type WorkerStats struct {
	TotalWorkers int      `json:"total_workers"`
	WorkerNames  []string `json:"worker_names"`
}

func (wm *WorkerManager) GetStats() WorkerStats {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	names := make([]string, len(wm.workers))
	for i, w := range wm.workers {
		names[i] = w.Name()
	}

	return WorkerStats{
		TotalWorkers: len(wm.workers),
		WorkerNames:  names,
	}
}
