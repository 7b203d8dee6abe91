// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Color is a linear RGBA color.
type Color [4]float32

var (
	// White is opaque white, used for the white pixel fallback texture.
	White = Color{1, 1, 1, 1}
	// Black is opaque black.
	Black = Color{0, 0, 0, 1}
	// Magenta marks textures that failed to load.
	Magenta = Color{1, 0, 1, 1}
)

// RGBA8 converts the color to four 8-bit channels, clamping each channel to [0, 1].
//
// Returns:
//   - [4]byte: the quantized color
func (c Color) RGBA8() [4]byte {
	var out [4]byte
	for i, v := range c {
		out[i] = byte(Clamp(v, 0, 1)*255 + 0.5)
	}
	return out
}

// ImageData holds decoded RGBA8 pixel data ready for upload.
type ImageData struct {
	// Pixels is row-major RGBA data, 4 bytes per pixel.
	Pixels []byte
	// Width is the image width in pixels.
	Width uint32
	// Height is the image height in pixels.
	Height uint32
}

// SolidImage returns a width x height image filled with c.
func SolidImage(c Color, width, height uint32) ImageData {
	px := c.RGBA8()
	pixels := make([]byte, int(width*height)*4)
	for i := 0; i < len(pixels); i += 4 {
		copy(pixels[i:i+4], px[:])
	}
	return ImageData{Pixels: pixels, Width: width, Height: height}
}
