package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/control"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"go.uber.org/zap"
)

// engine implements the Engine interface.
// Coordinates the control, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	quitCtx     context.Context
	cancel      context.CancelFunc

	window window.Window
	logger *zap.Logger

	ctx        Context
	ctxOptions []ContextBuilderOption
	frameSync  *FrameSync
	client     control.Client

	profilingEnabled bool
	profilerInterval time.Duration

	engineTickRate time.Duration
	updateTimeout  time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32, stats FrameStats)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	frames           atomic.Uint64
}

// Engine is the main entry point for the engine.
// It orchestrates the control loop, the render loop, and window management.
type Engine interface {
	// Context returns the render-side context.
	//
	// Returns:
	//   - Context: the context frames are run on
	Context() Context

	// Client returns the control-side client scripts and tick callbacks drive the scene with.
	// It must only be used from the tick callback or before Run.
	//
	// Returns:
	//   - control.Client: the client
	Client() control.Client

	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// SetTickRate sets the control tick rate in updates per second.
	//
	// Parameters:
	//   - fps: target updates per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each control tick.
	// Commands produced through Client during the callback are flushed together once it returns.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds and the frame's counters
	SetRenderCallback(callback func(deltaTime float32, stats FrameStats))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of frames rendered so far.
	Frames() uint64

	// Run starts the engine loops. It blocks until the window closes or Quit is called,
	// then releases the renderer.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// The context is created from the options given through WithContextOptions, with the
// engine's frame handshake and profiler added.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the context could not be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		logger:           zap.NewNop(),
		frameSync:        NewFrameSync(),
		engineTickRate:   time.Second / 60,
		updateTimeout:    100 * time.Millisecond,
		profilerInterval: time.Second,
	}
	for _, opt := range options {
		opt(e)
	}
	e.quitCtx, e.cancel = context.WithCancel(context.Background())

	ctxOptions := append([]ContextBuilderOption{WithContextLogger(e.logger)}, e.ctxOptions...)
	ctxOptions = append(ctxOptions, WithFrameSync(e.frameSync))
	if e.profilingEnabled {
		p := profiler.NewProfiler(profiler.WithLogger(e.logger), profiler.WithInterval(e.profilerInterval))
		ctxOptions = append(ctxOptions, WithContextProfiler(p))
	}
	c, err := NewContext(ctxOptions...)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	e.ctx = c
	e.client = control.NewClient(c.Queue(), c.Allocator(), control.WithLogger(e.logger))

	if e.window != nil {
		e.bindWindow()
	}
	return e, nil
}

// bindWindow routes window events to the render context and the client's input state.
func (e *engine) bindWindow() {
	in := e.client.Input()
	e.window.SetResizeCallback(func(width, height int) {
		e.ctx.Resize(width, height)
	})
	e.window.SetKeyCallback(func(code uint32, down bool) {
		if down {
			in.KeyDown(code)
		} else {
			in.KeyUp(code)
		}
	})
	e.window.SetMouseButtonCallback(func(button uint8, down bool, x, y int32) {
		in.SetButton(button, down, x, y)
	})
	e.window.SetMouseMoveCallback(in.MouseMove)
	e.window.SetScrollCallback(in.Scroll)
}

func (e *engine) Context() Context { return e.ctx }

func (e *engine) Client() control.Client { return e.client }

func (e *engine) Window() window.Window { return e.window }

func (e *engine) Frames() uint64 { return e.frames.Load() }

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.ctx.Release()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			e.logger.Warn("engine: window close failed", zap.Error(err))
		}
	}
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit and asks the window
// loop to return. Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
		e.cancel()
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// handle launches the control, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleControl()
	go e.handleRender()
	go e.handleQuit()
}

// handleControl runs the fixed-rate control tick loop in its own goroutine.
// Each tick runs the tick callback, flushes the client's commands, signals the render
// goroutine and waits for it to take the update. Exits when the quit channel is closed.
func (e *engine) handleControl() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine: control goroutine recovered from panic", zap.Any("panic", r))
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
			e.client.Flush()
			e.frameSync.UpdateDone()
			if err := e.frameSync.WaitForFrame(e.quitCtx); err != nil {
				return
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop in its own goroutine.
// Each iteration waits for a control update (or the update timeout, so the window keeps
// presenting while scripts stall), then runs one context frame.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine: render goroutine recovered from panic", zap.Any("panic", r))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		e.frameSync.WaitForUpdate(e.updateTimeout)

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		stats := e.ctx.Frame(dt)
		e.frames.Add(1)

		if e.renderCallback != nil {
			e.renderCallback(dt, stats)
		}

		if e.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// SetTickRate sets the control tick rate in updates per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each control tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called after each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32, stats FrameStats)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
