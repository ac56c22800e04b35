package risk

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FieldPlot renders a SafetyField as a polar plot in the robot frame: each
// bearing is a spoke whose length is its collision risk (1 - safety).
// Bearing 0 of the sensor frame points right and angles grow counter-clockwise.
type FieldPlot struct {
	Size       int // Image width and height in pixels
	Margin     int
	Background color.RGBA
	Ring       color.RGBA
	Safe       color.RGBA
	Danger     color.RGBA
	Text       color.RGBA
}

// NewFieldPlot returns a plot with the default palette
func NewFieldPlot() *FieldPlot {
	return &FieldPlot{
		Size:       480,
		Margin:     40,
		Background: color.RGBA{255, 255, 255, 255},
		Ring:       color.RGBA{210, 210, 210, 255},
		Safe:       color.RGBA{60, 170, 80, 255},
		Danger:     color.RGBA{220, 40, 40, 255},
		Text:       color.RGBA{0, 0, 0, 255},
	}
}

// radius returns the plot radius in pixels
func (fp *FieldPlot) radius() float64 {
	return float64(fp.Size)/2 - float64(fp.Margin)
}

// spokeEnd returns the pixel a spoke of length risk at angle theta ends on
func (fp *FieldPlot) spokeEnd(theta, risk float64) (int, int) {
	c := float64(fp.Size) / 2
	l := risk * fp.radius()
	// Image Y grows downwards
	return int(math.Round(c + l*math.Cos(theta))), int(math.Round(c - l*math.Sin(theta)))
}

// Render draws r onto a new image. A nil result renders the empty frame.
func (fp *FieldPlot) Render(r *CycleResult) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fp.Size, fp.Size))
	for y := 0; y < fp.Size; y++ {
		for x := 0; x < fp.Size; x++ {
			img.Set(x, y, fp.Background)
		}
	}

	c := fp.Size / 2
	for _, frac := range []float64{0.25, 0.5, 0.75, 1.0} {
		drawRing(img, c, c, frac*fp.radius(), fp.Ring)
	}

	if r == nil || len(r.Field) == 0 {
		drawText(img, 10, 20, "no cycle processed", fp.Text)
		return img
	}

	for i, v := range r.Field {
		risk := clamp01(1 - v)
		if risk <= 0 {
			continue
		}
		x, y := fp.spokeEnd(r.BearingAngle(i), risk)
		drawLine(img, c, c, x, y, lerpColor(fp.Safe, fp.Danger, risk))
	}

	for _, cr := range r.Clusters {
		x, y := fp.spokeEnd(r.BearingAngle(cr.Cluster.Direction()), 1.0)
		drawDisc(img, x, y, 4, fp.Danger)
		label := fmt.Sprintf("%.2f", cr.Probability)
		drawText(img, x+6, y+4, label, fp.Text)
	}

	drawDisc(img, c, c, 5, fp.Text)

	minVal, minIdx := r.MinSafety()
	drawText(img, 10, 20, fmt.Sprintf("cycle %d", r.Cycle), fp.Text)
	drawText(img, 10, 36, fmt.Sprintf("min %.3f @ %d", minVal, minIdx), fp.Text)
	drawText(img, 10, 52, fmt.Sprintf("clusters %d dropped %d", len(r.Clusters), r.Dropped), fp.Text)
	return img
}

// RenderFieldPNG renders r with the default plot and encodes it as PNG
func RenderFieldPNG(w io.Writer, r *CycleResult) error {
	img := NewFieldPlot().Render(r)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding field PNG: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// lerpColor blends from a to b by t in [0,1]
func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x)*(1-t) + float64(y)*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// drawLine draws a 1px line using Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// drawRing draws a circle outline of radius r
func drawRing(img *image.RGBA, cx, cy int, r float64, c color.RGBA) {
	steps := int(2*math.Pi*r) + 1
	for k := 0; k < steps; k++ {
		a := 2 * math.Pi * float64(k) / float64(steps)
		setPixel(img, cx+int(math.Round(r*math.Cos(a))), cy+int(math.Round(r*math.Sin(a))), c)
	}
}

// drawDisc draws a filled circle
func drawDisc(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawText renders text onto an image at the specified baseline position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
