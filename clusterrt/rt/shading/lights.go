package shading

import (
	"github.com/gekko3d/clusterfog/clusterrt/rt/core"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/packed"

	"github.com/go-gl/mathgl/mgl32"
)

// NewLightBuffer allocates a packed buffer for n light records.
func NewLightBuffer(n int) (*packed.Buffer, error) {
	return packed.New(max(n, 1), core.LightFloats)
}

// PackLights writes pos.xyz, radius, color.rgb and a zero pad per light.
func PackLights(buf *packed.Buffer, lights []core.Light) {
	for i, l := range lights {
		buf.WriteVec3(i, 0, l.Position)
		buf.Write(i, 3, l.Radius)
		buf.WriteVec3(i, 4, l.Color)
		buf.Write(i, 7, 0)
	}
}

// UnpackLight reads light i from the light buffer bound at b.
func UnpackLight(s gpu.Sampler, b gpu.Binding, i int) core.Light {
	r0 := packed.SampledRow(s, b, i, 0)
	r1 := packed.SampledRow(s, b, i, 1)
	return core.Light{
		Position: mgl32.Vec3{r0[0], r0[1], r0[2]},
		Radius:   r0[3],
		Color:    mgl32.Vec3{r1[0], r1[1], r1[2]},
	}
}

// ClusterCount reads the light count of a cell from the cluster buffer
// bound at b, clamped to capacity.
func ClusterCount(s gpu.Sampler, b gpu.Binding, cell, capacity int) int {
	return min(int(packed.SampledComponent(s, b, cell, 0)), capacity)
}

// ClusterLight reads the k-th light index of a cell.
func ClusterLight(s gpu.Sampler, b gpu.Binding, cell, k int) int {
	return int(packed.SampledComponent(s, b, cell, k+1))
}
