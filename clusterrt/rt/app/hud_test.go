package app

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHUDBounds(t *testing.T) {
	h := NewHUD()
	assert.True(t, h.Bounds(nil).Empty())

	b := h.Bounds([]string{"abc", "abcdef"})
	assert.Equal(t, image.Pt(4, 4), b.Min)
	// basicfont glyphs are 7 pixels wide and lines 13 high
	assert.Equal(t, 6*7+2*h.Padding, b.Dx())
	assert.Equal(t, 2*13+2*h.Padding, b.Dy())
}

func TestHUDDrawStaysInsideItsBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	h := NewHUD()
	lines := []string{"fps 60"}
	h.Draw(img, lines)

	box := h.Bounds(lines)
	white := 0
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			c := img.RGBAAt(x, y)
			if !image.Pt(x, y).In(box) {
				require.Equal(t, color.RGBA{}, c, "pixel %d,%d", x, y)
				continue
			}
			if c == (color.RGBA{255, 255, 255, 255}) {
				white++
			}
		}
	}
	assert.Greater(t, white, 0, "glyphs are drawn")
	assert.NotEqual(t, color.RGBA{}, img.RGBAAt(box.Min.X, box.Min.Y), "backdrop is drawn")
}

func TestHUDClipsToSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	NewHUD().Draw(img, []string{"a long line that does not fit"})
	assert.NotEqual(t, color.RGBA{}, img.RGBAAt(7, 7))
}
