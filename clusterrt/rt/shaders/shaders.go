// Package shaders embeds the WGSL used by the window presenter.
package shaders

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed blit.wgsl
var BlitWGSL string

// Blit entry points.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Validate compiles src to SPIR-V. The presenter runs it before handing the
// WGSL to the device so a broken shader fails with a readable error instead
// of a driver panic.
func Validate(label, src string) ([]byte, error) {
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("shaders: %s: %w", label, err)
	}
	return spirv, nil
}
