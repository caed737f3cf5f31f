package gpu

import "fmt"

// Binding is a symbolic texture input of a program. Programs declare the
// bindings they sample and the device resolves each to a slot once, when
// the program is built.
type Binding int

const (
	BindAlbedoMap Binding = iota
	BindNormalMap
	BindGBufferPosition
	BindGBufferAlbedo
	BindGBufferNormal
	BindLightBuffer
	BindClusterBuffer
	BindShadowMap
	BindVolumeDensity
	BindVolumePass
	BindHDR

	NumBindings
)

var bindingNames = [NumBindings]string{
	BindAlbedoMap:       "albedo_map",
	BindNormalMap:       "normal_map",
	BindGBufferPosition: "gbuffer_position",
	BindGBufferAlbedo:   "gbuffer_albedo",
	BindGBufferNormal:   "gbuffer_normal",
	BindLightBuffer:     "light_buffer",
	BindClusterBuffer:   "cluster_buffer",
	BindShadowMap:       "shadow_map",
	BindVolumeDensity:   "volume_density",
	BindVolumePass:      "volume_pass",
	BindHDR:             "hdr",
}

func (b Binding) Valid() bool { return b >= 0 && b < NumBindings }

func (b Binding) String() string {
	if b.Valid() {
		return bindingNames[b]
	}
	return fmt.Sprintf("binding(%d)", int(b))
}
