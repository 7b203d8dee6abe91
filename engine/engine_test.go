package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestEngine(t *testing.T, options ...EngineBuilderOption) (Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	b := renderer.NewHeadlessBackend(320, 240, renderer.MSAAOff)
	options = append([]EngineBuilderOption{
		WithLogger(zap.New(core)),
		WithTickRate(500),
		WithUpdateTimeout(5 * time.Millisecond),
		WithContextOptions(WithRenderer(headless(b)), WithWorkers(1)),
	}, options...)
	e, err := NewEngine(options...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e, logs
}

// runWithTimeout runs e and fails the test if it does not return in time.
func runWithTimeout(t *testing.T, e Engine) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.Quit()
		t.Fatal("engine did not stop")
	}
}

func TestEngineRunsTicksAndFrames(t *testing.T) {
	e, _ := newTestEngine(t)
	var ticks atomic.Int32
	var scene component.Handle
	e.SetTickCallback(func(dt float32) {
		if ticks.Add(1) == 1 {
			scene = e.Client().Scene()
			return
		}
		if ticks.Load() >= 5 {
			e.Quit()
		}
	})
	var rendered atomic.Int32
	e.SetRenderCallback(func(dt float32, stats FrameStats) {
		rendered.Add(1)
	})

	runWithTimeout(t, e)

	if ticks.Load() < 5 {
		t.Errorf("expected at least 5 ticks, got %d", ticks.Load())
	}
	if e.Frames() == 0 || rendered.Load() != int32(e.Frames()) {
		t.Errorf("expected the render callback once per frame, got %d callbacks for %d frames", rendered.Load(), e.Frames())
	}
	if a := e.Context().Active(); a.Scene != scene {
		t.Errorf("expected the first scene to be active, got %d", a.Scene)
	}
}

func TestEngineRecoversFromPanics(t *testing.T) {
	e, logs := newTestEngine(t)
	e.SetTickCallback(func(float32) {
		panic("boom")
	})

	runWithTimeout(t, e)

	entries := logs.FilterMessage("engine: control goroutine recovered from panic").All()
	if len(entries) != 1 {
		t.Fatalf("expected one recovered panic, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["panic"]; got != "boom" {
		t.Errorf("expected panic value boom, got %v", got)
	}
}

func TestEngineProfiling(t *testing.T) {
	e, logs := newTestEngine(t, WithProfiling(true), WithProfilerInterval(time.Millisecond))
	e.SetRenderCallback(func(float32, FrameStats) {
		if logs.FilterMessage("profiler").Len() > 0 {
			e.Quit()
		}
	})

	runWithTimeout(t, e)

	entry := logs.FilterMessage("profiler").All()[0]
	if _, ok := entry.ContextMap()["fps"]; !ok {
		t.Errorf("expected an fps field, got %v", entry.ContextMap())
	}
}

func TestSetTickRateWhileRunning(t *testing.T) {
	e, _ := newTestEngine(t)
	var ticks atomic.Int32
	e.SetTickCallback(func(float32) {
		switch ticks.Add(1) {
		case 1:
			e.SetTickRate(1000)
		case 3:
			e.Quit()
		}
	})

	runWithTimeout(t, e)

	if ticks.Load() < 3 {
		t.Errorf("expected ticks to continue after a rate change, got %d", ticks.Load())
	}
}
