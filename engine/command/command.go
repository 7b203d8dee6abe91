package command

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/transform"
	"go.uber.org/zap"
)

// ErrInvalidArgument is returned for out-of-range slots, locations and enum values. Valid
// control code never produces one, so it is a structural violation.
var ErrInvalidArgument = fmt.Errorf("%w: invalid argument", component.ErrStructural)

// Command is one deferred mutation produced on the control side and applied on the render
// side. Commands are plain values that own all of their data.
type Command interface {
	// Kind names the command for logs.
	Kind() string
	// Execute applies the command.
	Execute(t *Target) error
}

// ImageLoader decodes an image file into RGBA8 pixels.
type ImageLoader interface {
	LoadImage(path string) (common.ImageData, error)
}

// Active holds the engine context's current selections by handle.
type Active struct {
	Scene    component.Handle
	Camera   component.Handle
	RootPass component.Handle
}

// Target is everything a command may mutate.
type Target struct {
	Store  component.Store
	Tree   transform.Hierarchy
	Scenes scene.Index
	Images ImageLoader
	Active *Active
	Log    *zap.Logger

	// Debug makes structural violations panic instead of being logged and dropped.
	Debug bool
}

// handle classifies a failed command.
func (t *Target) handle(cmd Command, err error) {
	log := t.Log
	if log == nil {
		log = zap.NewNop()
	}
	switch {
	case errors.Is(err, component.ErrNotFound):
		log.Debug("command: target no longer exists", zap.String("kind", cmd.Kind()), zap.Error(err))
	case errors.Is(err, component.ErrStructural):
		if t.Debug {
			panic(fmt.Sprintf("command: %s: %v", cmd.Kind(), err))
		}
		log.Error("command: dropped structural violation", zap.String("kind", cmd.Kind()), zap.Error(err))
	default:
		log.Warn("command: failed", zap.String("kind", cmd.Kind()), zap.Error(err))
	}
}

// Func adapts a function to a Command. It is meant for engine-internal hooks and tests;
// control code builds the typed commands.
type Func struct {
	Name string
	Fn   func(t *Target) error
}

func (c Func) Kind() string { return c.Name }

func (c Func) Execute(t *Target) error { return c.Fn(t) }
