package graph

import (
	"errors"
	"testing"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"
	"github.com/gekko3d/clusterfog/clusterrt/rt/shading"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPass records its execution and optionally clears its first target.
type stubPass struct {
	name          string
	reads, writes []string
	clear         *mgl32.Vec4
	log           *[]string
	err           error
}

func (p *stubPass) Name() string     { return p.name }
func (p *stubPass) Reads() []string  { return p.reads }
func (p *stubPass) Writes() []string { return p.writes }

func (p *stubPass) Execute(f *Frame) error {
	if p.log != nil {
		*p.log = append(*p.log, p.name)
	}
	if p.err != nil {
		return p.err
	}
	if p.clear != nil {
		pass, err := f.Device().BeginPass(gpu.PassDesc{
			Target:      f.Target(p.writes[0]).Framebuffer,
			ClearColors: clearTo(1, *p.clear),
		})
		if err != nil {
			return err
		}
		return pass.End()
	}
	return nil
}

func standardSpecs() []TargetSpec {
	return []TargetSpec{ShadowTarget(64), GBufferTarget(), VolumeTarget(2), HDRTarget(), DisplayTarget()}
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		passes  []Pass
		wantErr error
	}{
		{
			name: "deferred order",
			passes: []Pass{
				&stubPass{name: "shadow", writes: []string{TargetShadow}},
				&stubPass{name: "geometry", writes: []string{TargetGBuffer}},
				&stubPass{name: "volume", reads: []string{TargetGBuffer}, writes: []string{TargetVolume}},
				&stubPass{name: "shading", reads: []string{TargetShadow, TargetGBuffer, TargetVolume}, writes: []string{TargetHDR}},
				&stubPass{name: "tonemap", reads: []string{TargetHDR}, writes: []string{TargetDisplay}},
			},
		},
		{
			name: "volume before geometry",
			passes: []Pass{
				&stubPass{name: "volume", reads: []string{TargetGBuffer}, writes: []string{TargetVolume}},
				&stubPass{name: "geometry", writes: []string{TargetGBuffer}},
			},
			wantErr: ErrPassOrder,
		},
		{
			name: "pass reads its own output",
			passes: []Pass{
				&stubPass{name: "tonemap", reads: []string{TargetHDR}, writes: []string{TargetHDR}},
			},
			wantErr: ErrPassOrder,
		},
		{
			name: "unknown target",
			passes: []Pass{
				&stubPass{name: "bloom", writes: []string{"bloom"}},
			},
			wantErr: ErrUnknownTarget,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := New(nil, nil, standardSpecs(), tc.passes...)
			err := g.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDuplicateTargetRejected(t *testing.T) {
	g := New(nil, nil, []TargetSpec{HDRTarget(), HDRTarget()})
	assert.Error(t, g.Validate())
}

func TestSizeRules(t *testing.T) {
	w, h := ShadowTarget(1024).SizeFor(640, 480)
	assert.Equal(t, [2]int{1024, 1024}, [2]int{w, h})
	w, h = VolumeTarget(2).SizeFor(641, 480)
	assert.Equal(t, [2]int{320, 240}, [2]int{w, h})
	w, h = VolumeTarget(4).SizeFor(2, 2)
	assert.Equal(t, [2]int{1, 1}, [2]int{w, h})
	w, h = HDRTarget().SizeFor(640, 480)
	assert.Equal(t, [2]int{640, 480}, [2]int{w, h})
	assert.False(t, ShadowTarget(16).Relative())
	assert.True(t, GBufferTarget().Relative())
}

func TestBuildAllocatesTargets(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	g := New(dev, nil, standardSpecs())
	require.NoError(t, g.Build(32, 16))

	gb := g.Target(TargetGBuffer)
	require.NotNil(t, gb)
	assert.Len(t, gb.Color, 3)
	assert.NotNil(t, gb.Depth)
	w, h := gb.Size()
	assert.Equal(t, [2]int{32, 16}, [2]int{w, h})

	w, h = g.Target(TargetVolume).Size()
	assert.Equal(t, [2]int{16, 8}, [2]int{w, h})
	assert.Nil(t, g.Target(TargetVolume).Depth)

	w, h = g.Target(TargetShadow).Size()
	assert.Equal(t, [2]int{64, 64}, [2]int{w, h})
	assert.Equal(t, gpu.FormatRGBA8, g.Target(TargetDisplay).Color[0].Desc().Format)
}

func TestIncompleteTargetIsFatal(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	bad := TargetSpec{Name: "mask", Color: []gpu.Format{gpu.FormatR8}}
	g := New(dev, nil, []TargetSpec{HDRTarget(), bad})
	err := g.Build(8, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrIncompleteFramebuffer)
	assert.ErrorIs(t, g.Execute(&Frame{}), ErrNotBuilt)
}

func TestResizeAppliedAtNextExecute(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	var ran []string
	g := New(dev, nil, standardSpecs(),
		&stubPass{name: "a", writes: []string{TargetHDR}, log: &ran},
		&stubPass{name: "b", reads: []string{TargetHDR}, writes: []string{TargetDisplay}, log: &ran},
	)
	require.NoError(t, g.Build(32, 32))
	live := dev.Live()
	shadowBefore := g.Target(TargetShadow).Color[0].ID()
	hdrBefore := g.Target(TargetHDR).Color[0].ID()

	g.RequestResize(10, 10)
	g.RequestResize(48, 24)
	w, h := g.Size()
	assert.Equal(t, [2]int{32, 32}, [2]int{w, h}, "resize must wait for the next frame")

	u := &shading.Uniforms{}
	require.NoError(t, g.Execute(&Frame{Uniforms: u}))
	assert.Equal(t, []string{"a", "b"}, ran)

	w, h = g.Target(TargetHDR).Size()
	assert.Equal(t, [2]int{48, 24}, [2]int{w, h})
	w, h = g.Target(TargetVolume).Size()
	assert.Equal(t, [2]int{24, 12}, [2]int{w, h})
	assert.NotEqual(t, hdrBefore, g.Target(TargetHDR).Color[0].ID())
	assert.Equal(t, shadowBefore, g.Target(TargetShadow).Color[0].ID(), "shadow map is fixed size")
	assert.Equal(t, 48, u.Width)
	assert.Equal(t, 24, u.Height)

	assert.Equal(t, live, dev.Live(), "old relative targets are released")
}

func TestExecuteStopsAtFirstError(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	boom := errors.New("boom")
	var ran []string
	g := New(dev, nil, standardSpecs(),
		&stubPass{name: "a", writes: []string{TargetHDR}, log: &ran, err: boom},
		&stubPass{name: "b", reads: []string{TargetHDR}, writes: []string{TargetDisplay}, log: &ran},
	)
	require.NoError(t, g.Build(8, 8))
	err := g.Execute(&Frame{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"a"`)
	assert.Equal(t, []string{"a"}, ran)
}

type scopeRecorder struct{ events []string }

func (s *scopeRecorder) BeginScope(name string) { s.events = append(s.events, "+"+name) }
func (s *scopeRecorder) EndScope(name string)   { s.events = append(s.events, "-"+name) }

func TestTonemapPassWritesDisplay(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	tm, err := NewTonemapPass(dev)
	require.NoError(t, err)
	grey := mgl32.Vec4{0.5, 0.25, 2, 1}
	g := New(dev, nil, []TargetSpec{HDRTarget(), DisplayTarget()},
		&stubPass{name: "fill", writes: []string{TargetHDR}, clear: &grey},
		tm,
	)
	require.NoError(t, g.Build(4, 4))

	cfg := shading.DefaultConfig()
	cfg.ToneMap = shading.ToneMapConfig{Operator: shading.ToneLinear, Exposure: 1, Gamma: 1}
	scopes := &scopeRecorder{}
	require.NoError(t, g.Execute(&Frame{Uniforms: &shading.Uniforms{Config: cfg}, Profiler: scopes}))
	assert.Equal(t, []string{"+fill", "-fill", "+tonemap", "-tonemap"}, scopes.events)

	px, err := dev.ReadTexture(g.Target(TargetDisplay).Color[0])
	require.NoError(t, err)
	require.Len(t, px, 4*4*4)
	for i := 0; i < len(px); i += 4 {
		assert.InDelta(t, 0.5, px[i], 1.0/255)
		assert.InDelta(t, 0.25, px[i+1], 1.0/255)
		assert.InDelta(t, 1, px[i+2], 1e-6)
	}
}

func TestPassNeedsBoundInputs(t *testing.T) {
	dev := soft.New(soft.Options{})
	defer dev.Destroy()

	vp, err := NewVolumePass(dev)
	require.NoError(t, err)
	g := New(dev, nil, standardSpecs(),
		&stubPass{name: "shadow", writes: []string{TargetShadow}},
		&stubPass{name: "geometry", writes: []string{TargetGBuffer}},
		vp,
	)
	require.NoError(t, g.Build(8, 8))
	err = g.Execute(&Frame{Uniforms: &shading.Uniforms{}})
	assert.Error(t, err, "missing volume snapshot")
}
