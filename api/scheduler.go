/*
scheduler.go - Automated daily close

PURPOSE:
  Periodically closes finished days: working days without punches get an
  AUSENTE record and days still PENDIENTE are flagged for review. The same
  work is available on demand via POST /api/admin/close-day.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Closes every day from the last closed one up to yesterday, so a
    service that was down for a weekend catches up on start
  - CloseDay is idempotent: re-closing a day changes nothing

USAGE:
  scheduler := NewCloseScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - attendance/service.go: CloseDay
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"go.uber.org/zap"
)

// MaxCatchUpDays bounds how far back the first run closes.
const MaxCatchUpDays = 7

// CloseScheduler runs the daily close on a ticker.
type CloseScheduler struct {
	Service       *attendance.Service
	CheckInterval time.Duration
	Enabled       bool

	now    func() time.Time
	logger *zap.Logger

	ticker     *time.Ticker
	stop       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	lastClosed core.Date
}

// NewCloseScheduler creates a scheduler with a one hour interval.
func NewCloseScheduler(svc *attendance.Service, logger *zap.Logger) *CloseScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloseScheduler{
		Service:       svc,
		CheckInterval: time.Hour,
		Enabled:       true,
		now:           time.Now,
		logger:        logger.Named("scheduler"),
		stop:          make(chan struct{}),
	}
}

// WithClock replaces the scheduler clock. Used in tests.
func (cs *CloseScheduler) WithClock(now func() time.Time) *CloseScheduler {
	cs.now = now
	return cs
}

// Start begins the scheduler.
func (cs *CloseScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.logger.Info("disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.wg.Add(1)
	go cs.run()

	cs.logger.Info("started", zap.Duration("interval", cs.CheckInterval))
}

// Stop stops the scheduler and waits for a running close to finish.
func (cs *CloseScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.ticker = nil
		cs.logger.Info("stopped")
	}
}

func (cs *CloseScheduler) run() {
	defer cs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-cs.stop
		cancel()
	}()

	// Run immediately on start
	cs.RunOnce(ctx)

	for {
		select {
		case <-cs.ticker.C:
			cs.RunOnce(ctx)
		case <-cs.stop:
			return
		}
	}
}

// RunOnce closes every pending day up to yesterday and returns the dates
// it closed.
func (cs *CloseScheduler) RunOnce(ctx context.Context) []core.Date {
	yesterday := core.DateIn(cs.now(), cs.Service.Location()).AddDays(-1)

	from := cs.lastClosed.AddDays(1)
	if cs.lastClosed.IsZero() {
		from = yesterday
	}
	if earliest := yesterday.AddDays(-(MaxCatchUpDays - 1)); from.Before(earliest) {
		from = earliest
	}

	var closed []core.Date
	for d := from; d.BeforeOrEqual(yesterday); d = d.AddDays(1) {
		res, err := cs.Service.CloseDay(ctx, d)
		if err != nil {
			cs.logger.Error("close day failed", zap.String("date", d.String()), zap.Error(err))
			return closed
		}
		cs.lastClosed = d
		closed = append(closed, d)
		cs.logger.Debug("closed",
			zap.String("date", d.String()),
			zap.Int("absent", res.Absent),
			zap.Int("flagged", res.Flagged),
		)
	}
	return closed
}
