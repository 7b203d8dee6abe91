package scripting

import "go.uber.org/zap"

// EngineBuilderOption is a functional option applied to a scripting engine during construction via NewEngine.
type EngineBuilderOption func(*Engine)

// WithLogger sets the logger for script loading and gg.log.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op logger
//
// Returns:
//   - EngineBuilderOption: a function that applies the logger option to an engine
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithScriptDir sets the directory scripts are loaded and required from.
//
// Parameters:
//   - dir: the script directory
//
// Returns:
//   - EngineBuilderOption: a function that applies the directory option to an engine
func WithScriptDir(dir string) EngineBuilderOption {
	return func(e *Engine) {
		e.dir = dir
	}
}
