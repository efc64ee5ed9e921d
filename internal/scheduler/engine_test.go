package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngineFiresOnSchedule(t *testing.T) {
	var calls int32
	engine, err := NewEngine("@every 1s", time.UTC, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil, 4)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.Start(context.Background())
	defer engine.Stop()

	if engine.Next().IsZero() {
		t.Fatal("expected a next fire time")
	}
	run := waitRun(t, engine.C(), 3*time.Second)
	if run.Seq != 1 || run.Err != nil {
		t.Fatalf("unexpected run %+v", run)
	}
	if atomic.LoadInt32(&calls) < 1 {
		t.Fatal("job was not called")
	}
}

func TestRunNowReportsErrorsAndDrops(t *testing.T) {
	boom := errors.New("boom")
	engine, err := NewEngine("0 * * * *", time.UTC, func(context.Context) error { return boom }, nil, 1)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer engine.Stop()

	run, err := engine.RunNow()
	if err != nil || !errors.Is(run.Err, boom) {
		t.Fatalf("unexpected run %+v %v", run, err)
	}
	if _, err := engine.RunNow(); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if engine.Dropped() != 1 {
		t.Fatalf("expected one dropped run, got %d", engine.Dropped())
	}
	if got := waitRun(t, engine.C(), time.Second); got.Seq != 1 {
		t.Fatalf("expected first run on channel, got %+v", got)
	}
}

func TestRunNowAfterStop(t *testing.T) {
	engine, err := NewEngine("@hourly", nil, func(context.Context) error { return nil }, nil, 1)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.Stop()
	if _, err := engine.RunNow(); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if _, ok := <-engine.C(); ok {
		t.Fatal("channel should be closed after stop")
	}
}

func TestNewEngineValidates(t *testing.T) {
	if _, err := NewEngine("every tuesday", time.UTC, func(context.Context) error { return nil }, nil, 1); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if _, err := NewEngine("@hourly", time.UTC, nil, nil, 1); err == nil {
		t.Fatal("expected missing job error")
	}
}

func waitRun(t *testing.T, ch <-chan Run, timeout time.Duration) Run {
	t.Helper()
	select {
	case run := <-ch:
		return run
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for run")
		return Run{}
	}
}
