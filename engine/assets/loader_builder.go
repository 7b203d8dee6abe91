package assets

import "go.uber.org/zap"

// LoaderBuilderOption is a functional option applied to a Loader during construction via NewLoader.
type LoaderBuilderOption func(*Loader)

// WithDir sets the directory relative paths are resolved against.
func WithDir(dir string) LoaderBuilderOption {
	return func(l *Loader) {
		l.dir = dir
	}
}

// WithConcurrency sets how many files may be decoded at once.
//
// Parameters:
//   - n: the decode limit; values <= 0 are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the concurrency option to a loader
func WithConcurrency(n int) LoaderBuilderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithMaxSize scales decoded images down so neither side exceeds n pixels.
func WithMaxSize(n int) LoaderBuilderOption {
	return func(l *Loader) {
		l.maxSize = n
	}
}

// WithLogger sets the loader's logger.
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *Loader) {
		if logger != nil {
			l.log = logger
		}
	}
}
