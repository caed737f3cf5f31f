package gpu

import "fmt"

type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatRGBA32F
	FormatR8
	FormatDepth32F
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA16F:
		return "rgba16f"
	case FormatRGBA32F:
		return "rgba32f"
	case FormatR8:
		return "r8"
	case FormatDepth32F:
		return "depth32f"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Channels is the number of stored components per texel.
func (f Format) Channels() int {
	switch f {
	case FormatR8, FormatDepth32F:
		return 1
	}
	return 4
}

func (f Format) IsDepth() bool { return f == FormatDepth32F }

func (f Format) IsFloat() bool {
	return f == FormatRGBA16F || f == FormatRGBA32F || f == FormatDepth32F
}

// Normalized formats clamp writes to [0,1] and quantize to 8 bits.
func (f Format) Normalized() bool { return f == FormatRGBA8 || f == FormatR8 }

// ColorRenderable reports whether f may be bound as a color attachment.
func (f Format) ColorRenderable() bool {
	return f == FormatRGBA8 || f == FormatRGBA16F || f == FormatRGBA32F
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type Wrap int

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// TextureDesc describes a 2D texture, or a 3D one when Depth > 1.
type TextureDesc struct {
	Label  string
	Width  int
	Height int
	Depth  int
	Format Format
	Filter Filter
	Wrap   Wrap
}

func (d TextureDesc) Is3D() bool { return d.Depth > 1 }

// Texels is the number of texels, counting every slice of a 3D texture.
func (d TextureDesc) Texels() int {
	depth := d.Depth
	if depth < 1 {
		depth = 1
	}
	return d.Width * d.Height * depth
}

// Floats is the length of the slice WriteTexture expects.
func (d TextureDesc) Floats() int {
	return d.Texels() * d.Format.Channels()
}

// Validate checks the description against the device limits.
func (d TextureDesc) Validate(caps Caps) error {
	if d.Width <= 0 || d.Height <= 0 || d.Depth < 0 {
		return fmt.Errorf("%w %q: size %dx%dx%d", ErrInvalidTexture, d.Label, d.Width, d.Height, d.Depth)
	}
	if d.Width > caps.MaxTextureSize || d.Height > caps.MaxTextureSize || d.Depth > caps.MaxTextureSize {
		return fmt.Errorf("%w: texture %q is %dx%dx%d, limit %d", ErrMissingCapability, d.Label, d.Width, d.Height, d.Depth, caps.MaxTextureSize)
	}
	if d.Is3D() && !caps.Textures3D {
		return fmt.Errorf("%w: 3D texture %q", ErrMissingCapability, d.Label)
	}
	if d.Is3D() && d.Format.IsDepth() {
		return fmt.Errorf("%w %q: 3D depth texture", ErrInvalidTexture, d.Label)
	}
	return nil
}
