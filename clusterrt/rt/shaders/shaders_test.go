package shaders

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlitSourceHasEntryPoints(t *testing.T) {
	for _, want := range []string{"@vertex", "@fragment", VertexEntry, FragmentEntry, "texture_2d<f32>", "textureSample"} {
		assert.Contains(t, BlitWGSL, want)
	}
}

func TestBlitCompilesToSPIRV(t *testing.T) {
	spirv, err := Validate("blit", BlitWGSL)
	if err != nil && (strings.Contains(err.Error(), "not yet implemented") || strings.Contains(err.Error(), "not supported")) {
		t.Skipf("naga feature not available: %v", err)
	}
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(spirv), 4)
	assert.Equal(t, uint32(0x07230203), binary.LittleEndian.Uint32(spirv))
}

func TestValidateRejectsBrokenSource(t *testing.T) {
	_, err := Validate("broken", "@fragment fn fs_main( -> {")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
