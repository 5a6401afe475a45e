package cli

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestSignalHandler_New(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := NewSignalHandler(cancel, nil)

	if handler == nil {
		t.Fatal("NewSignalHandler should not return nil")
	}
	if handler.cancel == nil {
		t.Error("SignalHandler.cancel should be set")
	}
	if handler.logger == nil {
		t.Error("SignalHandler.logger should default to a no-op logger")
	}
	if handler.signals == nil || handler.shutdown == nil {
		t.Error("SignalHandler channels should be initialized")
	}
}

func TestSignalHandler_FirstSignalCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := NewSignalHandler(cancel, nil)

	var callbacks atomic.Int32
	handler.OnShutdown(func() { callbacks.Add(1) })
	handler.OnShutdown(func() { callbacks.Add(1) })

	handler.StartWithNotify(false)
	defer handler.Stop()

	handler.signals <- syscall.SIGINT

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}

	handler.Wait()
	if got := callbacks.Load(); got != 2 {
		t.Errorf("shutdown callbacks = %d, want 2", got)
	}
}

func TestSignalHandler_SecondSignalForces(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	handler := NewSignalHandler(cancel, nil)

	forced := make(chan struct{})
	handler.OnForce(func() { close(forced) })

	handler.StartWithNotify(false)
	defer handler.Stop()

	handler.signals <- syscall.SIGTERM
	handler.Wait()
	handler.signals <- syscall.SIGTERM

	select {
	case <-forced:
	case <-time.After(time.Second):
		t.Fatal("force callback was not called")
	}
}

func TestSignalHandler_StopWithoutSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := NewSignalHandler(cancel, nil)

	handler.StartWithNotify(false)
	handler.Stop()
	handler.Stop()

	if ctx.Err() != nil {
		t.Error("Stop must not cancel the run")
	}
}
