package transform

import "go.uber.org/zap"

// HierarchyBuilderOption is a functional option for configuring a Hierarchy.
type HierarchyBuilderOption func(*hierarchy)

// WithSceneTracker sets the tracker notified about scene membership and world changes.
//
// Parameters:
//   - t: the tracker, usually the engine's scene.Index
//
// Returns:
//   - HierarchyBuilderOption: option function to apply
func WithSceneTracker(t SceneTracker) HierarchyBuilderOption {
	return func(h *hierarchy) {
		h.tracker = t
	}
}

// WithLogger sets the logger used for hierarchy diagnostics.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op logger
//
// Returns:
//   - HierarchyBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) HierarchyBuilderOption {
	return func(h *hierarchy) {
		if logger != nil {
			h.logger = logger
		}
	}
}
