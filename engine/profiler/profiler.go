package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Sample is the work one frame did, passed to Tick.
type Sample struct {
	Commands  int
	Matrices  int
	DrawCalls int
	Instances int
}

// Report is one interval's worth of statistics.
type Report struct {
	FPS             float64
	CommandsPerSec  float64
	MatricesPerSec  float64
	DrawCallsPerFrm float64
	InstancesPerFrm float64
	HeapMB          float64
	AllocRateMB     float64
	SysMB           float64
	GCCount         uint32
	LastPauseUs     uint64
	MaxPauseUs      uint64
}

// Profiler tracks frame rate, per-frame work and memory statistics.
// It logs a Report at a configurable interval.
type Profiler struct {
	logger         *zap.Logger
	now            func() time.Time
	frameCount     int
	totals         Sample
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options for logger and interval
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         zap.NewNop(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the work the frame did.
// Logs performance statistics when the update interval has elapsed.
//
// Parameters:
//   - s: the frame's counters
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(s Sample) bool {
	p.frameCount++
	p.totals.Commands += s.Commands
	p.totals.Matrices += s.Matrices
	p.totals.DrawCalls += s.DrawCalls
	p.totals.Instances += s.Instances

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	secs := elapsed.Seconds()
	frames := float64(p.frameCount)
	r := Report{
		FPS:             frames / secs,
		CommandsPerSec:  float64(p.totals.Commands) / secs,
		MatricesPerSec:  float64(p.totals.Matrices) / secs,
		DrawCallsPerFrm: float64(p.totals.DrawCalls) / frames,
		InstancesPerFrm: float64(p.totals.Instances) / frames,
	}

	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / secs

	r.GCCount = p.memStats.NumGC
	if r.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		r.LastPauseUs = p.memStats.PauseNs[(r.GCCount-1)%256] / 1000
		start := p.lastGCCount
		if r.GCCount-start > 256 {
			start = r.GCCount - 256
		}
		for i := start; i < r.GCCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("profiler",
		zap.Float64("fps", r.FPS),
		zap.Float64("commands_per_sec", r.CommandsPerSec),
		zap.Float64("matrices_per_sec", r.MatricesPerSec),
		zap.Float64("draw_calls", r.DrawCallsPerFrm),
		zap.Float64("instances", r.InstancesPerFrm),
		zap.Float64("heap_mb", r.HeapMB),
		zap.Float64("alloc_rate_mb", r.AllocRateMB),
		zap.Uint32("gc", r.GCCount),
		zap.Uint64("gc_last_us", r.LastPauseUs),
		zap.Uint64("gc_max_us", r.MaxPauseUs),
		zap.Float64("sys_mb", r.SysMB),
	)

	p.last = r
	p.frameCount = 0
	p.totals = Sample{}
	p.lastTime = currentTime
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recently logged Report.
func (p *Profiler) Last() Report {
	return p.last
}
