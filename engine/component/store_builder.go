package component

import "go.uber.org/zap"

// StoreBuilderOption is a functional option for configuring a Store.
type StoreBuilderOption func(*store)

// WithLogger sets the logger used for sweep diagnostics.
//
// Parameters:
//   - logger: the logger to use; nil keeps the no-op logger
//
// Returns:
//   - StoreBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) StoreBuilderOption {
	return func(s *store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllocator shares an existing handle allocator, typically the one the control side
// names records with.
//
// Parameters:
//   - a: the allocator to share
//
// Returns:
//   - StoreBuilderOption: option function to apply
func WithAllocator(a *HandleAllocator) StoreBuilderOption {
	return func(s *store) {
		if a != nil {
			s.alloc = a
		}
	}
}
