package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingInvoiceSweeper struct {
	calls   atomic.Int64
	removed int64
}

func (s *countingInvoiceSweeper) Sweep(_ context.Context, _ time.Duration) (int64, error) {
	s.calls.Add(1)
	return s.removed, nil
}

type countingEventSweeper struct {
	calls atomic.Int64
}

func (s *countingEventSweeper) Sweep(_ context.Context, _ time.Time) (int64, error) {
	s.calls.Add(1)
	return 0, nil
}

func TestCleanupWorker_SweepsImmediatelyAndOnTicks(t *testing.T) {
	invoices := &countingInvoiceSweeper{removed: 3}
	events := &countingEventSweeper{}
	w := NewCleanupWorker(invoices, events, 24*time.Hour, 25*time.Millisecond, zap.NewNop())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(70 * time.Millisecond)
	w.Stop()

	got := invoices.calls.Load()
	if got < 2 {
		t.Errorf("invoice sweep calls = %d, want at least 2 (startup + tick)", got)
	}
	if events.calls.Load() != got {
		t.Errorf("event sweep calls = %d, want %d", events.calls.Load(), got)
	}
}

func TestCleanupWorker_StopHaltsSweeps(t *testing.T) {
	invoices := &countingInvoiceSweeper{}
	w := NewCleanupWorker(invoices, nil, 24*time.Hour, 20*time.Millisecond, zap.NewNop())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()

	before := invoices.calls.Load()
	time.Sleep(60 * time.Millisecond)
	if after := invoices.calls.Load(); after != before {
		t.Errorf("sweep calls advanced after Stop(): before=%d after=%d", before, after)
	}
}

func TestCleanupWorker_StartIsIdempotent(t *testing.T) {
	invoices := &countingInvoiceSweeper{}
	w := NewCleanupWorker(invoices, nil, 24*time.Hour, time.Hour, zap.NewNop())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestManager_StartAndStopAll(t *testing.T) {
	m := NewManager(zap.NewNop())
	invoices := &countingInvoiceSweeper{}
	w := NewCleanupWorker(invoices, nil, 24*time.Hour, time.Hour, zap.NewNop())
	m.Register(w)

	if m.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", m.Count())
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	m.StopAll()

	if invoices.calls.Load() == 0 {
		t.Error("expected at least one sweep before shutdown")
	}
}
