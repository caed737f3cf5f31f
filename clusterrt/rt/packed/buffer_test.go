package packed

import (
	"math"
	"testing"

	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu"
	"github.com/gekko3d/clusterfog/clusterrt/rt/gpu/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSizes(t *testing.T) {
	tests := []struct {
		count, size int
		rows, len   int
	}{
		{100, 8, 2, 800},
		{3375, 33, 9, 3375 * 36},
		{1, 1, 1, 4},
		{5, 4, 1, 20},
		{5, 5, 2, 40},
	}
	for _, tc := range tests {
		b, err := New(tc.count, tc.size)
		require.NoError(t, err)
		assert.Equal(t, tc.rows, b.Rows(), "rows for size %d", tc.size)
		assert.Equal(t, tc.len, b.Len(), "len for %dx%d", tc.count, tc.size)
	}

	_, err := New(0, 8)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(4, -1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestIndexLayout(t *testing.T) {
	b, err := New(10, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Index(0, 0))
	assert.Equal(t, 12, b.Index(3, 0))
	assert.Equal(t, 4*3+4*1*10, b.Index(3, 1))
	assert.Equal(t, b.Index(3, 1)+2, b.Offset(3, 6))
	assert.Panics(t, func() { b.Offset(10, 0) })
	assert.Panics(t, func() { b.Offset(0, 8) })
}

func TestRoundTripThroughDevice(t *testing.T) {
	const count, size = 7, 11
	b, err := New(count, size)
	require.NoError(t, err)

	value := func(i, c int) float32 {
		return float32(math.Sin(float64(i*size+c))) * 1e3
	}
	for i := 0; i < count; i++ {
		for c := 0; c < size; c++ {
			b.Write(i, c, value(i, c))
		}
	}
	b.Write(2, 3, float32(math.Inf(-1)))

	dev := soft.New(soft.Options{})
	require.NoError(t, b.Attach(dev, "records"))
	require.NoError(t, b.Flush(dev))

	reloaded, err := dev.ReadTexture(b.Texture())
	require.NoError(t, err)
	desc := b.Texture().Desc()
	fetch := func(x, y int) mgl32.Vec4 {
		o := (y*desc.Width + x) * 4
		return mgl32.Vec4{reloaded[o], reloaded[o+1], reloaded[o+2], reloaded[o+3]}
	}

	for i := 0; i < count; i++ {
		for c := 0; c < size; c++ {
			want := b.Read(i, c)
			assert.Equal(t, math.Float32bits(want), math.Float32bits(reloaded[b.Offset(i, c)]), "offset %d,%d", i, c)
			assert.Equal(t, math.Float32bits(want), math.Float32bits(Component(fetch, i, c)), "fetch %d,%d", i, c)
		}
	}
}

func TestFlushLeavesOtherTexturesAlone(t *testing.T) {
	dev := soft.New(soft.Options{})
	other, err := dev.CreateTexture(gpu.TextureDesc{Width: 2, Height: 1, Format: gpu.FormatRGBA32F})
	require.NoError(t, err)
	require.NoError(t, dev.WriteTexture(other, []float32{1, 2, 3, 4, 5, 6, 7, 8}))

	b, err := New(2, 4)
	require.NoError(t, err)
	assert.Error(t, b.Flush(dev))
	require.NoError(t, b.Attach(dev, "b"))
	b.Write(1, 2, 42)
	require.NoError(t, b.Flush(dev))

	got, _ := dev.ReadTexture(other)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, got)
}
