package scripting

import (
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-scene/engine/control"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM that drives the scene through a control.Client.
// Single-goroutine access only (the control goroutine).
type Engine struct {
	vm     *lua.LState
	log    *zap.Logger
	client control.Client
	dir    string
	time   float64
}

// NewEngine creates a Lua VM with the gg module bound to client.
// Scripts reach the module both as the global gg and through require("gg").
//
// Parameters:
//   - client: the client every gg call goes through
//   - options: functional options for logging and the script directory
//
// Returns:
//   - *Engine: the new engine
func NewEngine(client control.Client, options ...EngineBuilderOption) *Engine {
	if client == nil {
		panic("scripting: NewEngine requires a client")
	}
	e := &Engine{
		vm:     lua.NewState(),
		log:    zap.NewNop(),
		client: client,
	}
	for _, opt := range options {
		opt(e)
	}

	e.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e.vm.PreloadModule("gg", e.loader)
	if err := e.vm.DoString(`gg = require("gg")`); err != nil {
		panic(fmt.Sprintf("scripting: load gg module: %v", err))
	}
	if e.dir != "" {
		pkg := e.vm.GetGlobal("package").(*lua.LTable)
		path := filepath.Join(e.dir, "?.lua") + ";" + lua.LVAsString(pkg.RawGetString("path"))
		pkg.RawSetString("path", lua.LString(path))
	}
	return e
}

// Load runs a script file. Relative paths are resolved against the script directory.
//
// Parameters:
//   - path: the script to run
//
// Returns:
//   - error: the load or runtime error, wrapped with the path
func (e *Engine) Load(path string) error {
	if e.dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// Update calls the script's global update(dt), if it defines one.
//
// Parameters:
//   - dt: seconds since the previous update
//
// Returns:
//   - error: the script error, if update raised one
func (e *Engine) Update(dt float32) error {
	e.time += float64(dt)
	fn := e.vm.GetGlobal("update")
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt)); err != nil {
		return fmt.Errorf("lua update: %w", err)
	}
	return nil
}

// Time returns the sum of every dt passed to Update.
func (e *Engine) Time() float64 { return e.time }

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}
