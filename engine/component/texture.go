package component

import "fmt"

// TextureFormat is the texel format of a texture.
type TextureFormat uint8

const (
	FormatRGBA8Unorm TextureFormat = iota
	FormatRGBA8UnormSrgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Float
	// FormatSurface is the window surface format; it is only valid as a pipeline color target.
	FormatSurface
)

// Components returns the number of channels per texel.
func (f TextureFormat) Components() int {
	switch f {
	case FormatR32Float:
		return 1
	default:
		return 4
	}
}

// BytesPerTexel returns the size of one texel in bytes.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	case FormatR32Float:
		return 4
	default:
		return 4
	}
}

// TextureDesc describes the shape of a texture.
type TextureDesc struct {
	Format TextureFormat
	Width  uint32
	Height uint32
	Depth  uint32
	Mips   uint32
	// Cube marks a six-layer texture viewed as a cubemap. Layers are the +X, -X, +Y,
	// -Y, +Z and -Z faces in that order.
	Cube bool
}

// CubeFaces is the layer count of a cubemap.
const CubeFaces = 6

// TextureWriteDesc describes the region a write covers.
type TextureWriteDesc struct {
	Mip     uint32
	OffsetX uint32
	OffsetY uint32
	OffsetZ uint32
	Width   uint32
	Height  uint32
	Depth   uint32
}

// FullWrite returns a write covering mip 0 of a texture with the given description.
func FullWrite(desc TextureDesc) TextureWriteDesc {
	return TextureWriteDesc{Width: desc.Width, Height: desc.Height, Depth: max(desc.Depth, 1)}
}

// ValidateTextureWrite checks a write against a texture's description before it is queued.
//
// Parameters:
//   - desc: the destination texture description
//   - w: the write region
//   - bytes: length of the pixel data in bytes
//
// Returns:
//   - error: ErrWriteOutOfBounds, ErrInvalidMip or ErrPixelDataLength wrapped with detail, or nil
func ValidateTextureWrite(desc TextureDesc, w TextureWriteDesc, bytes int) error {
	depth := max(desc.Depth, 1)
	wd := max(w.Depth, 1)
	if uint64(w.OffsetX)+uint64(w.Width) > uint64(desc.Width) ||
		uint64(w.OffsetY)+uint64(w.Height) > uint64(desc.Height) ||
		uint64(w.OffsetZ)+uint64(wd) > uint64(depth) {
		return fmt.Errorf("%w: texture [%d, %d, %d], offset [%d, %d, %d], region [%d, %d, %d]",
			ErrWriteOutOfBounds, desc.Width, desc.Height, depth, w.OffsetX, w.OffsetY, w.OffsetZ, w.Width, w.Height, wd)
	}
	if w.Mip >= max(desc.Mips, 1) {
		return fmt.Errorf("%w: texture has %d mips, write targets mip %d", ErrInvalidMip, max(desc.Mips, 1), w.Mip)
	}
	expected := int(w.Width) * int(w.Height) * int(wd) * desc.Format.BytesPerTexel()
	if bytes < expected {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrPixelDataLength, expected, bytes)
	}
	return nil
}

// TextureWrite is a validated pending upload into a texture.
type TextureWrite struct {
	Region TextureWriteDesc
	Data   []byte
}

// Texture is a sampled image. Generation is bumped on creation and on every reallocation,
// never on content writes.
type Texture struct {
	Base

	Desc       TextureDesc
	Generation uint64
	Pending    []TextureWrite
}

func (t *Texture) setDefaults() {
	t.Desc = TextureDesc{Format: FormatRGBA8Unorm, Width: 1, Height: 1, Depth: 1, Mips: 1}
	t.Generation = 1
}

// Reallocate replaces the texture description, drops pending writes made against the old
// shape, and bumps the generation.
func (t *Texture) Reallocate(desc TextureDesc) {
	desc.Depth = max(desc.Depth, 1)
	if desc.Cube {
		desc.Depth = CubeFaces
	}
	desc.Mips = max(desc.Mips, 1)
	t.Desc = desc
	t.Pending = nil
	t.Generation++
}
