package app

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// HUD draws text lines over a frame, top-left, on a translucent backdrop.
type HUD struct {
	Face     font.Face
	Color    color.Color
	Backdrop color.Color
	Margin   int
	Padding  int
}

func NewHUD() *HUD {
	return &HUD{
		Face:     basicfont.Face7x13,
		Color:    color.RGBA{255, 255, 255, 255},
		Backdrop: color.RGBA{0, 0, 0, 160},
		Margin:   4,
		Padding:  3,
	}
}

// Bounds is the area Draw covers for lines; empty when there is nothing to
// draw.
func (h *HUD) Bounds(lines []string) image.Rectangle {
	if len(lines) == 0 {
		return image.Rectangle{}
	}
	var width fixed.Int26_6
	for _, l := range lines {
		width = max(width, font.MeasureString(h.Face, l))
	}
	lineHeight := h.Face.Metrics().Height.Ceil()
	origin := image.Pt(h.Margin, h.Margin)
	return image.Rectangle{
		Min: origin,
		Max: origin.Add(image.Pt(width.Ceil()+2*h.Padding, lineHeight*len(lines)+2*h.Padding)),
	}
}

func (h *HUD) Draw(dst draw.Image, lines []string) {
	box := h.Bounds(lines).Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	draw.Draw(dst, box, image.NewUniform(h.Backdrop), image.Point{}, draw.Over)

	m := h.Face.Metrics()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(h.Color),
		Face: h.Face,
	}
	y := box.Min.Y + h.Padding + m.Ascent.Ceil()
	for _, l := range lines {
		d.Dot = fixed.P(box.Min.X+h.Padding, y)
		d.DrawString(l)
		y += m.Height.Ceil()
	}
}
