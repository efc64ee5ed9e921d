// Package scheduler runs a job on a cron schedule, one run at a time, and
// reports every finished run on a channel.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("scheduler: engine stopped")

type Job func(ctx context.Context) error

// Run describes one finished job execution.
type Run struct {
	Seq        uint64
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

type Engine struct {
	mu      sync.Mutex
	cron    *cron.Cron
	job     Job
	running sync.Mutex
	out     chan Run
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	started bool
	stopped bool
	seq     uint64
	dropped uint64
	skipped uint64
}

// NewEngine validates spec (standard five-field cron or a descriptor such
// as @hourly) and prepares an engine that is not yet running.
func NewEngine(spec string, loc *time.Location, job Job, logger *zap.Logger, bufferSize int) (*Engine, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	e := &Engine{
		job:    job,
		out:    make(chan Run, bufferSize),
		logger: logger.Named("scheduler"),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	cronLogger := cron.PrintfLogger(zap.NewStdLog(e.logger))
	e.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := e.cron.AddFunc(spec, func() { e.execute() }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	return e, nil
}

func (e *Engine) C() <-chan Run {
	return e.out
}

// Start begins firing on schedule. Runs stop when ctx is cancelled or Stop
// is called.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	go func() {
		select {
		case <-ctx.Done():
			e.cancel()
		case <-e.ctx.Done():
		}
	}()
	e.cron.Start()
	e.logger.Info("schedule started", zap.Time("next", e.next()))
}

// Stop waits for an in-flight run to finish and closes C.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.cancel()
	e.mu.Unlock()

	<-e.cron.Stop().Done()
	e.running.Lock()
	close(e.out)
	e.running.Unlock()
}

// RunNow executes the job immediately on the caller's goroutine. It is
// skipped if a scheduled run is still in progress.
func (e *Engine) RunNow() (Run, error) {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return Run{}, ErrStopped
	}
	run, ok := e.execute()
	if !ok {
		return Run{}, errors.New("scheduler: previous run still in progress")
	}
	return run, nil
}

func (e *Engine) Next() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next()
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) Skipped() uint64 {
	return atomic.LoadUint64(&e.skipped)
}

func (e *Engine) next() time.Time {
	entries := e.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (e *Engine) execute() (Run, bool) {
	if !e.running.TryLock() {
		atomic.AddUint64(&e.skipped, 1)
		e.logger.Warn("skipping run, previous run still in progress")
		return Run{}, false
	}
	defer e.running.Unlock()
	if e.ctx.Err() != nil {
		return Run{}, false
	}

	run := Run{Seq: atomic.AddUint64(&e.seq, 1), StartedAt: time.Now()}
	run.Err = e.job(e.ctx)
	run.FinishedAt = time.Now()
	if run.Err != nil {
		e.logger.Error("run failed", zap.Uint64("seq", run.Seq), zap.Error(run.Err))
	} else {
		e.logger.Debug("run finished", zap.Uint64("seq", run.Seq), zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	}

	select {
	case e.out <- run:
	default:
		atomic.AddUint64(&e.dropped, 1)
	}
	return run, true
}
