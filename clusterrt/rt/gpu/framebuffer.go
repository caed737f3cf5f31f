package gpu

import "fmt"

// MaxColorAttachments is the largest number of color outputs a program or
// framebuffer may use.
const MaxColorAttachments = 4

type FramebufferDesc struct {
	Label string
	Color []Texture
	Depth Texture
}

// CheckFramebuffer performs the completeness check a device runs right after
// attachments are bound. Any failure wraps ErrIncompleteFramebuffer.
func CheckFramebuffer(desc FramebufferDesc, caps Caps) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %q: %s", ErrIncompleteFramebuffer, desc.Label, fmt.Sprintf(format, args...))
	}
	if len(desc.Color) == 0 && desc.Depth == nil {
		return fail("no attachments")
	}
	limit := min(caps.MaxColorAttachments, MaxColorAttachments)
	if len(desc.Color) > limit {
		return fail("%d color attachments, limit %d", len(desc.Color), limit)
	}
	w, h := -1, -1
	sameSize := func(td TextureDesc) bool {
		if w < 0 {
			w, h = td.Width, td.Height
			return true
		}
		return td.Width == w && td.Height == h
	}
	for i, tex := range desc.Color {
		if tex == nil {
			return fail("color attachment %d missing", i)
		}
		td := tex.Desc()
		if !td.Format.ColorRenderable() || td.Is3D() {
			return fail("color attachment %d (%s) not renderable", i, td.Format)
		}
		if td.Format.IsFloat() && !caps.FloatRenderTargets {
			return fail("color attachment %d needs float render targets", i)
		}
		if !sameSize(td) {
			return fail("color attachment %d is %dx%d, expected %dx%d", i, td.Width, td.Height, w, h)
		}
	}
	if desc.Depth != nil {
		td := desc.Depth.Desc()
		if !td.Format.IsDepth() {
			return fail("depth attachment has format %s", td.Format)
		}
		if !sameSize(td) {
			return fail("depth attachment is %dx%d, expected %dx%d", td.Width, td.Height, w, h)
		}
	}
	return nil
}
