package engine

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/command"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"go.uber.org/zap"
)

// FrameRequest asks a FrameSource for the next frame of a video or webcam.
type FrameRequest struct {
	Handle   component.Handle
	Type     component.Type
	Path     string
	DeviceID int
	Rate     float32
	Loop     bool
	DT       float32
}

// FrameSource produces decoded video and webcam frames. Decoding lives outside the engine;
// the engine only uploads what the source hands back.
type FrameSource interface {
	// NextFrame returns the frame to show for req, or false if nothing new is available.
	NextFrame(req FrameRequest) (common.ImageData, bool)
}

// RendererFactory builds the renderer for a context's store and index.
type RendererFactory func(store component.Store, index scene.Index, logger *zap.Logger) (renderer.Renderer, error)

// FrameStats counts the work done by one Frame call.
type FrameStats struct {
	Commands  int
	Matrices  int
	Groups    int
	Streams   int
	Collected int
	Render    renderer.Stats
}

// engineContext is the implementation of the Context interface.
type engineContext struct {
	mu sync.Mutex

	store    component.Store
	index    scene.Index
	tree     transform.Hierarchy
	queue    command.Queue
	renderer renderer.Renderer
	profiler *profiler.Profiler
	sync     *FrameSync
	sources  FrameSource
	images   command.ImageLoader
	logger   *zap.Logger

	newRenderer RendererFactory
	workers     int
	debug       bool

	active command.Active
	target command.Target
	time   float32
	frames uint64
}

// Context owns everything the render side mutates: the component store, the hierarchy,
// the scene index, the command queue and the renderer. The active scene, camera and root
// pass are held here by handle.
type Context interface {
	// Frame runs one frame: swap and drain the command queue, rebuild stale matrices,
	// refresh stale primitive groups, pump video and webcam frames, render, collect
	// destroyed records and tick the profiler.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//
	// Returns:
	//   - FrameStats: counters for the frame
	Frame(dt float32) FrameStats

	// Queue returns the command queue the control side pushes to.
	Queue() command.Queue

	// Allocator returns the handle allocator the control side names records with.
	Allocator() *component.HandleAllocator

	// Store returns the component store. It belongs to the render goroutine.
	Store() component.Store

	// Tree returns the transform hierarchy. It belongs to the render goroutine.
	Tree() transform.Hierarchy

	// Scenes returns the scene index. It belongs to the render goroutine.
	Scenes() scene.Index

	// Renderer returns the renderer.
	Renderer() renderer.Renderer

	// Active returns the current scene, camera and root pass selections.
	Active() command.Active

	// Resize forwards a new surface size to the renderer.
	Resize(width, height int)

	// Release frees the renderer's GPU objects.
	Release()
}

var _ Context = &engineContext{}

// NewContext creates a Context with a fresh store, hierarchy, index and queue.
// Without WithRenderer the context renders into a headless backend.
//
// Parameters:
//   - options: functional options for logging, workers, renderer and frame sources
//
// Returns:
//   - Context: the new context
//   - error: an error if the renderer could not be created
func NewContext(options ...ContextBuilderOption) (Context, error) {
	c := &engineContext{
		logger:  zap.NewNop(),
		queue:   command.NewQueue(),
		workers: 4,
		newRenderer: func(store component.Store, index scene.Index, logger *zap.Logger) (renderer.Renderer, error) {
			return renderer.NewRenderer(renderer.BackendTypeHeadless, nil, store, index, renderer.WithLogger(logger))
		},
	}
	for _, opt := range options {
		opt(c)
	}

	c.store = component.NewStore(component.WithLogger(c.logger))
	c.index = scene.NewIndex(c.store, scene.WithWorkers(c.workers), scene.WithLogger(c.logger))
	c.tree = transform.NewHierarchy(c.store, transform.WithSceneTracker(c.index), transform.WithLogger(c.logger))

	r, err := c.newRenderer(c.store, c.index, c.logger)
	if err != nil {
		return nil, err
	}
	c.renderer = r

	c.target = command.Target{
		Store:  c.store,
		Tree:   c.tree,
		Scenes: c.index,
		Images: c.images,
		Active: &c.active,
		Log:    c.logger,
		Debug:  c.debug,
	}
	return c, nil
}

func (c *engineContext) Frame(dt float32) FrameStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st FrameStats
	c.time += dt
	c.frames++

	c.queue.Swap()
	if c.sync != nil {
		c.sync.NextFrame()
	}
	st.Commands = c.queue.Drain(&c.target)
	st.Matrices = c.tree.RebuildDirty()
	component.EachOf(c.store, component.TypeScene, func(s *component.Scene) bool {
		st.Groups += c.index.RefreshStalePrimitiveGroups(s.Handle())
		return true
	})
	if c.sources != nil {
		st.Streams = c.pumpSources(dt)
	}

	rs, err := c.renderer.Render(renderer.Frame{
		Scene:    c.active.Scene,
		Camera:   c.active.Camera,
		RootPass: c.active.RootPass,
		Time:     c.time,
	})
	if err != nil {
		c.logger.Warn("engine: frame dropped", zap.Uint64("frame", c.frames), zap.Error(err))
	}
	st.Render = rs

	st.Collected = c.store.CollectGarbage()

	if c.profiler != nil {
		c.profiler.Tick(profiler.Sample{
			Commands:  st.Commands,
			Matrices:  st.Matrices,
			DrawCalls: rs.DrawCalls,
			Instances: rs.Instances,
		})
	}
	return st
}

// pumpSources uploads the next frame of every playing video and live webcam.
func (c *engineContext) pumpSources(dt float32) int {
	n := 0
	component.EachOf(c.store, component.TypeVideo, func(v *component.Video) bool {
		if v.Paused || v.Texture == 0 {
			return true
		}
		img, ok := c.sources.NextFrame(FrameRequest{
			Handle: v.Handle(),
			Type:   component.TypeVideo,
			Path:   v.Path,
			Rate:   v.Rate,
			Loop:   v.Loop,
			DT:     dt,
		})
		if ok && c.upload(v.Texture, img) {
			n++
		}
		return true
	})
	component.EachOf(c.store, component.TypeWebcam, func(w *component.Webcam) bool {
		if w.Freeze || w.Texture == 0 {
			return true
		}
		img, ok := c.sources.NextFrame(FrameRequest{
			Handle:   w.Handle(),
			Type:     component.TypeWebcam,
			DeviceID: w.DeviceID,
			DT:       dt,
		})
		if ok && c.upload(w.Texture, img) {
			w.LastFrame++
			n++
		}
		return true
	})
	return n
}

// upload writes img into a texture, reallocating it only when the size changes.
func (c *engineContext) upload(h component.Handle, img common.ImageData) bool {
	tex, err := c.store.Texture(h)
	if err != nil {
		c.logger.Debug("engine: stream texture missing", zap.Uint64("handle", uint64(h)), zap.Error(err))
		return false
	}
	d := tex.Desc
	sameShape := d.Width == img.Width && d.Height == img.Height &&
		(d.Format == component.FormatRGBA8Unorm || d.Format == component.FormatRGBA8UnormSrgb)
	if !sameShape {
		command.Upload(tex, img, d.Format == component.FormatRGBA8UnormSrgb)
		return true
	}
	region := component.FullWrite(d)
	if err := component.ValidateTextureWrite(d, region, len(img.Pixels)); err != nil {
		c.logger.Warn("engine: stream frame rejected", zap.Uint64("handle", uint64(h)), zap.Error(err))
		return false
	}
	tex.Pending = append(tex.Pending, component.TextureWrite{Region: region, Data: img.Pixels})
	return true
}

func (c *engineContext) Queue() command.Queue { return c.queue }

func (c *engineContext) Allocator() *component.HandleAllocator { return c.store.Allocator() }

func (c *engineContext) Store() component.Store { return c.store }

func (c *engineContext) Tree() transform.Hierarchy { return c.tree }

func (c *engineContext) Scenes() scene.Index { return c.index }

func (c *engineContext) Renderer() renderer.Renderer { return c.renderer }

func (c *engineContext) Active() command.Active {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *engineContext) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.renderer.Resize(width, height)
}

func (c *engineContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.Release()
}
