// Package gpu is the device abstraction the renderer is written against.
// A Device is created by the host and injected into every component that
// allocates or draws; nothing in the renderer reaches for a global context.
package gpu

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMissingCapability     = errors.New("gpu: missing required capability")
	ErrProgramLink           = errors.New("gpu: program link failed")
	ErrIncompleteFramebuffer = errors.New("gpu: framebuffer incomplete")
	ErrInvalidTexture        = errors.New("gpu: invalid texture")
	ErrUnboundTexture        = errors.New("gpu: texture binding not set")
	ErrForeignResource       = errors.New("gpu: resource belongs to another device")
)

// Caps lists what a device can do. RequireCaps compares two of them.
type Caps struct {
	MaxTextureSize      int
	MaxColorAttachments int
	FloatRenderTargets  bool
	Textures3D          bool
}

// RequireCaps returns ErrMissingCapability naming the first unmet requirement.
func RequireCaps(have, need Caps) error {
	switch {
	case have.MaxTextureSize < need.MaxTextureSize:
		return fmt.Errorf("%w: max texture size %d < %d", ErrMissingCapability, have.MaxTextureSize, need.MaxTextureSize)
	case have.MaxColorAttachments < need.MaxColorAttachments:
		return fmt.Errorf("%w: %d color attachments < %d", ErrMissingCapability, have.MaxColorAttachments, need.MaxColorAttachments)
	case need.FloatRenderTargets && !have.FloatRenderTargets:
		return fmt.Errorf("%w: float render targets", ErrMissingCapability)
	case need.Textures3D && !have.Textures3D:
		return fmt.Errorf("%w: 3D textures", ErrMissingCapability)
	}
	return nil
}

// Resource is anything a Device allocates.
type Resource interface {
	ID() uuid.UUID
	Label() string
}

type Texture interface {
	Resource
	Desc() TextureDesc
}

type Framebuffer interface {
	Resource
	Size() (width, height int)
	ColorCount() int
	HasDepth() bool
}

type Program interface {
	Resource
	// Slot resolves a symbolic binding to the slot fixed at build time.
	Slot(b Binding) (int, bool)
	Bindings() []Binding
	Outputs() int
}

type Mesh interface {
	Resource
	IndexCount() int
}

// PassDesc starts a render pass on a framebuffer. Color attachment i is
// cleared to ClearColors[i] (zero when absent); depth is cleared to 1.
type PassDesc struct {
	Label       string
	Target      Framebuffer
	ClearColors []ClearColor
}

// ClearColor is the clear value of one color attachment.
type ClearColor [4]float32

// Pass records draws into a single framebuffer. Draw calls execute
// synchronously and return once every fragment of the draw is written.
type Pass interface {
	Draw(rc RenderContext, mesh Mesh) error
	DrawFullscreen(rc RenderContext) error
	End() error
}

type Device interface {
	Caps() Caps
	CreateTexture(desc TextureDesc) (Texture, error)
	// WriteTexture replaces the full contents of tex. data holds
	// Width*Height*Depth*Channels floats in row-major order.
	WriteTexture(tex Texture, data []float32) error
	ReadTexture(tex Texture) ([]float32, error)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	CreateProgram(desc ProgramDesc) (Program, error)
	CreateMesh(vertices []Vertex, indices []uint32) (Mesh, error)
	BeginPass(desc PassDesc) (Pass, error)
	Release(res Resource)
	Destroy()
}
