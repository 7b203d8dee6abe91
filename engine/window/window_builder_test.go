package window

import "testing"

func TestBuilderOptions(t *testing.T) {
	tests := []struct {
		name          string
		opts          []WindowBuilderOption
		title         string
		width, height int32
	}{
		{"defaults kept", nil, "base", 640, 480},
		{"all set", []WindowBuilderOption{WithTitle("demo"), WithWidth(1920), WithHeight(1080)}, "demo", 1920, 1080},
		{"non-positive sizes ignored", []WindowBuilderOption{WithWidth(0), WithHeight(-5)}, "base", 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &engineWindow{title: "base"}
			w.width.Store(640)
			w.height.Store(480)
			for _, opt := range tt.opts {
				opt(w)
			}
			if w.title != tt.title || w.width.Load() != tt.width || w.height.Load() != tt.height {
				t.Errorf("expected %q %dx%d, got %q %dx%d", tt.title, tt.width, tt.height, w.title, w.width.Load(), w.height.Load())
			}
		})
	}
}
