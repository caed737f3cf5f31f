package gpu

import "fmt"

// RenderContext is the per-pass state handed to every draw: the active
// program, its uniform block and the textures bound to its symbolic inputs.
// It is a value; With returns a copy so a scene can override per-model maps
// without touching the caller's context.
type RenderContext struct {
	Program  Program
	Uniforms any
	Textures [NumBindings]Texture
}

func NewRenderContext(p Program, uniforms any) RenderContext {
	return RenderContext{Program: p, Uniforms: uniforms}
}

// With returns a copy of rc with b bound to tex.
func (rc RenderContext) With(b Binding, tex Texture) RenderContext {
	if b.Valid() {
		rc.Textures[b] = tex
	}
	return rc
}

// Resolve returns the program's textures in slot order, failing with
// ErrUnboundTexture if any declared binding is empty.
func (rc RenderContext) Resolve() ([]Texture, error) {
	if rc.Program == nil {
		return nil, fmt.Errorf("%w: no program", ErrProgramLink)
	}
	bindings := rc.Program.Bindings()
	out := make([]Texture, len(bindings))
	for _, b := range bindings {
		slot, _ := rc.Program.Slot(b)
		tex := rc.Textures[b]
		if tex == nil {
			return nil, fmt.Errorf("%w: %s for program %q", ErrUnboundTexture, b, rc.Program.Label())
		}
		out[slot] = tex
	}
	return out, nil
}
