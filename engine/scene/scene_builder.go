package scene

import "go.uber.org/zap"

// IndexBuilderOption is a functional option for configuring an Index.
// Use the With* functions to create options.
type IndexBuilderOption func(i *index)

// WithWorkers sets the number of worker goroutines used by RefreshStalePrimitiveGroups.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - IndexBuilderOption: option function to apply
func WithWorkers(n int) IndexBuilderOption {
	return func(i *index) {
		if n < 1 {
			n = 1
		}
		i.workers = n
	}
}

// WithLogger sets the logger used for index diagnostics.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op logger
//
// Returns:
//   - IndexBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) IndexBuilderOption {
	return func(i *index) {
		if logger != nil {
			i.logger = logger
		}
	}
}
