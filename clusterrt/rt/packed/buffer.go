// Package packed stores fixed-size float records in a texture so shading
// code can look them up by record index.
//
// A record of n floats occupies ceil(n/4) rows of 4 floats. Row r of record
// i lives at texel (i, r) of an elementCount × rows RGBA32F texture, which is
// flat offset 4*i + 4*r*elementCount in the backing array.
package packed

import (
	"errors"
	"fmt"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrInvalidSize = errors.New("packed: element count and size must be positive")

type Buffer struct {
	elementCount int
	elementSize  int
	rows         int
	data         []float32
	tex          gpu.Texture
}

// New allocates room for elementCount records of elementSize floats.
// The buffer never grows.
func New(elementCount, elementSize int) (*Buffer, error) {
	if elementCount <= 0 || elementSize <= 0 {
		return nil, fmt.Errorf("%w: %d x %d", ErrInvalidSize, elementCount, elementSize)
	}
	rows := (elementSize + 3) / 4
	return &Buffer{
		elementCount: elementCount,
		elementSize:  elementSize,
		rows:         rows,
		data:         make([]float32, elementCount*rows*4),
	}, nil
}

func (b *Buffer) ElementCount() int { return b.elementCount }
func (b *Buffer) ElementSize() int  { return b.elementSize }
func (b *Buffer) Rows() int         { return b.rows }
func (b *Buffer) Len() int          { return len(b.data) }

// Data exposes the backing array. It is what Flush uploads.
func (b *Buffer) Data() []float32 { return b.data }

// Index is the flat offset of row slot of record i.
func (b *Buffer) Index(i, slot int) int {
	return 4*i + 4*slot*b.elementCount
}

// Offset is the flat offset of float component c of record i.
func (b *Buffer) Offset(i, c int) int {
	b.check(i, c)
	return b.Index(i, c/4) + c%4
}

func (b *Buffer) Write(i, c int, v float32) {
	b.data[b.Offset(i, c)] = v
}

func (b *Buffer) Read(i, c int) float32 {
	return b.data[b.Offset(i, c)]
}

// WriteVec3 writes v to components c, c+1, c+2 of record i.
func (b *Buffer) WriteVec3(i, c int, v mgl32.Vec3) {
	for k := 0; k < 3; k++ {
		b.Write(i, c+k, v[k])
	}
}

func (b *Buffer) check(i, c int) {
	if i < 0 || i >= b.elementCount || c < 0 || c >= b.rows*4 {
		panic(fmt.Sprintf("packed: record %d component %d out of range (%d records of %d floats)", i, c, b.elementCount, b.elementSize))
	}
}

// Attach creates the texture the buffer is flushed to.
func (b *Buffer) Attach(dev gpu.Device, label string) error {
	if b.tex != nil {
		dev.Release(b.tex)
	}
	tex, err := dev.CreateTexture(gpu.TextureDesc{
		Label:  label,
		Width:  b.elementCount,
		Height: b.rows,
		Format: gpu.FormatRGBA32F,
		Filter: gpu.FilterNearest,
		Wrap:   gpu.WrapClamp,
	})
	if err != nil {
		return fmt.Errorf("packed: attach %q: %w", label, err)
	}
	b.tex = tex
	return nil
}

func (b *Buffer) Texture() gpu.Texture { return b.tex }

// Flush uploads the backing array to the attached texture. Only that
// texture is written.
func (b *Buffer) Flush(dev gpu.Device) error {
	if b.tex == nil {
		return errors.New("packed: flush before attach")
	}
	return dev.WriteTexture(b.tex, b.data)
}

// Fetcher reads one texel of a packed texture.
type Fetcher func(x, y int) mgl32.Vec4

// Component reads float c of record i through fetch using the same layout
// Offset writes with.
func Component(fetch Fetcher, i, c int) float32 {
	return fetch(i, c/4)[c%4]
}

// SampledComponent is Component for a texture bound to a shading sampler.
func SampledComponent(s gpu.Sampler, b gpu.Binding, i, c int) float32 {
	return s.Fetch(b, i, c/4)[c%4]
}

// SampledRow returns row slot of record i as a vector.
func SampledRow(s gpu.Sampler, b gpu.Binding, i, slot int) mgl32.Vec4 {
	return s.Fetch(b, i, slot)
}
