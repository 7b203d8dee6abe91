package command

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/component"
)

// SetBackground sets a scene's clear color.
type SetBackground struct {
	Scene component.Handle
	Color common.Color
}

func (c SetBackground) Kind() string { return "set_background" }

func (c SetBackground) Execute(t *Target) error {
	s, err := t.Store.Scene(c.Scene)
	if err != nil {
		return err
	}
	s.Desc.Background = c.Color
	return nil
}

// SetAmbient sets a scene's ambient light color.
type SetAmbient struct {
	Scene component.Handle
	Color [3]float32
}

func (c SetAmbient) Kind() string { return "set_ambient" }

func (c SetAmbient) Execute(t *Target) error {
	s, err := t.Store.Scene(c.Scene)
	if err != nil {
		return err
	}
	s.Desc.Ambient = c.Color
	return nil
}

// SetFog replaces a scene's fog settings.
type SetFog struct {
	Scene component.Handle
	Fog   component.Fog
}

func (c SetFog) Kind() string { return "set_fog" }

func (c SetFog) Execute(t *Target) error {
	s, err := t.Store.Scene(c.Scene)
	if err != nil {
		return err
	}
	s.Desc.Fog = c.Fog
	return nil
}

// SetMainCamera sets the camera a scene is drawn with when a pass names none.
type SetMainCamera struct {
	Scene  component.Handle
	Camera component.Handle
}

func (c SetMainCamera) Kind() string { return "set_main_camera" }

func (c SetMainCamera) Execute(t *Target) error {
	s, err := t.Store.Scene(c.Scene)
	if err != nil {
		return err
	}
	if c.Camera != 0 {
		if _, err := t.Store.Camera(c.Camera); err != nil {
			return err
		}
	}
	s.Desc.MainCamera = c.Camera
	return nil
}

// SetActiveScene selects the scene drawn when there is no root pass.
type SetActiveScene struct {
	Scene component.Handle
}

func (c SetActiveScene) Kind() string { return "set_active_scene" }

func (c SetActiveScene) Execute(t *Target) error {
	if c.Scene != 0 {
		if _, err := t.Store.Scene(c.Scene); err != nil {
			return err
		}
	}
	t.Active.Scene = c.Scene
	return nil
}

// SetActiveCamera overrides the active scene's main camera.
type SetActiveCamera struct {
	Camera component.Handle
}

func (c SetActiveCamera) Kind() string { return "set_active_camera" }

func (c SetActiveCamera) Execute(t *Target) error {
	if c.Camera != 0 {
		if _, err := t.Store.Camera(c.Camera); err != nil {
			return err
		}
	}
	t.Active.Camera = c.Camera
	return nil
}

// SetRootPass selects the first pass of the frame's pass chain.
type SetRootPass struct {
	Pass component.Handle
}

func (c SetRootPass) Kind() string { return "set_root_pass" }

func (c SetRootPass) Execute(t *Target) error {
	if c.Pass != 0 {
		if _, err := t.Store.Pass(c.Pass); err != nil {
			return err
		}
	}
	t.Active.RootPass = c.Pass
	return nil
}
