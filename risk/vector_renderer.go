package risk

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// canvasRenderer is satisfied by every tdewolff/canvas output backend
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// VectorFieldPlot renders the same polar plot as FieldPlot as vector
// graphics. Units are millimeters; canvas Y grows upwards so bearing angles
// map directly onto the page.
type VectorFieldPlot struct {
	Size       float64 // Page width and height
	Margin     float64
	Safe       color.RGBA
	Danger     color.RGBA
	Resolution canvas.Resolution // Resolution for PNG output
}

// NewVectorFieldPlot returns a plot with default page size and palette
func NewVectorFieldPlot() *VectorFieldPlot {
	return &VectorFieldPlot{
		Size:       200.0,
		Margin:     15.0,
		Safe:       color.RGBA{60, 170, 80, 255},
		Danger:     color.RGBA{220, 40, 40, 255},
		Resolution: canvas.DPMM(4),
	}
}

// RenderToSVG writes r as an SVG document
func (vp *VectorFieldPlot) RenderToSVG(w io.Writer, r *CycleResult) error {
	svgRenderer := svg.New(w, vp.Size, vp.Size, nil)
	vp.renderToCanvas(svgRenderer, r)
	return svgRenderer.Close()
}

// RenderToPNG rasterizes the vector plot and writes it as a PNG
func (vp *VectorFieldPlot) RenderToPNG(w io.Writer, r *CycleResult) error {
	rast := rasterizer.New(vp.Size, vp.Size, vp.Resolution, canvas.DefaultColorSpace)
	vp.renderToCanvas(rast, r)
	return png.Encode(w, rast)
}

// RenderFieldSVG renders r with the default vector plot
func RenderFieldSVG(w io.Writer, r *CycleResult) error {
	return NewVectorFieldPlot().RenderToSVG(w, r)
}

func (vp *VectorFieldPlot) renderToCanvas(renderer canvasRenderer, r *CycleResult) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(vp.Size, vp.Size), bgStyle, canvas.Identity)

	c := vp.Size / 2
	radius := c - vp.Margin

	ringStyle := canvas.DefaultStyle
	ringStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	ringStyle.Stroke = canvas.Paint{Color: color.RGBA{211, 211, 211, 255}}
	ringStyle.StrokeWidth = 0.3
	for _, frac := range []float64{0.25, 0.5, 0.75, 1.0} {
		ring := canvas.Circle(frac * radius).Translate(c, c)
		renderer.RenderPath(ring, ringStyle, canvas.Identity)
	}

	if r != nil {
		spokeStyle := canvas.DefaultStyle
		spokeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		spokeStyle.StrokeWidth = 0.5
		for i, v := range r.Field {
			risk := clamp01(1 - v)
			if risk <= 0 {
				continue
			}
			theta := r.BearingAngle(i)
			spoke := &canvas.Path{}
			spoke.MoveTo(c, c)
			spoke.LineTo(c+risk*radius*math.Cos(theta), c+risk*radius*math.Sin(theta))
			spokeStyle.Stroke = canvas.Paint{Color: lerpColor(vp.Safe, vp.Danger, risk)}
			renderer.RenderPath(spoke, spokeStyle, canvas.Identity)
		}

		markerStyle := canvas.DefaultStyle
		markerStyle.Fill = canvas.Paint{Color: vp.Danger}
		markerStyle.Stroke = canvas.Paint{Color: canvas.Black}
		markerStyle.StrokeWidth = 0.3
		for _, cr := range r.Clusters {
			theta := r.BearingAngle(cr.Cluster.Direction())
			// Marker size grows with collision risk
			size := 1.5 + 3*clamp01(1-cr.Probability)
			marker := canvas.Circle(size).Translate(c+radius*math.Cos(theta), c+radius*math.Sin(theta))
			renderer.RenderPath(marker, markerStyle, canvas.Identity)
		}
	}

	robotStyle := canvas.DefaultStyle
	robotStyle.Fill = canvas.Paint{Color: canvas.Black}
	renderer.RenderPath(canvas.Circle(2.0).Translate(c, c), robotStyle, canvas.Identity)

	// Sensor-frame forward direction
	headStyle := canvas.DefaultStyle
	headStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	headStyle.Stroke = canvas.Paint{Color: canvas.Black}
	headStyle.StrokeWidth = 0.8
	head := &canvas.Path{}
	head.MoveTo(c, c)
	head.LineTo(c+8, c)
	renderer.RenderPath(head, headStyle, canvas.Identity)
}
