package control

import "go.uber.org/zap"

// ClientBuilderOption is a functional option applied to a client during construction via NewClient.
type ClientBuilderOption func(*client)

// WithLogger sets the client's logger.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op logger
//
// Returns:
//   - ClientBuilderOption: a function that applies the logger option to a client
func WithLogger(logger *zap.Logger) ClientBuilderOption {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInput shares an existing input state with the client.
func WithInput(in *Input) ClientBuilderOption {
	return func(c *client) {
		if in != nil {
			c.input = in
		}
	}
}
