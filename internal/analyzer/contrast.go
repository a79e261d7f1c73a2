package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/reelsmith/internal/system"
)

// ContrastAnalyzer finds the busiest region of a frame using the Sobel operator
type ContrastAnalyzer struct {
	AnalysisWidth int     // frames are downscaled to this width first
	EdgeThreshold float64 // Gradient magnitude threshold
	GridSize      int     // cells per side when locating the focus
}

// NewContrastAnalyzer creates a new contrast analyzer with default settings
func NewContrastAnalyzer() *ContrastAnalyzer {
	return &ContrastAnalyzer{
		AnalysisWidth: 320,
		EdgeThreshold: 100.0,
		GridSize:      6,
	}
}

// Analyze measures edge density and the centre of the densest grid cell
func (a *ContrastAnalyzer) Analyze(img image.Image) (FrameFeatures, error) {
	small := downscale(img, a.AnalysisWidth)
	defer system.PutImage(small)

	w, h := small.Rect.Dx(), small.Rect.Dy()
	if w < 3 || h < 3 {
		return FrameFeatures{}, nil
	}

	lum := luminance(small)
	grid := a.GridSize
	if grid < 1 {
		grid = 1
	}
	cells := make([]int, grid*grid)
	edges := 0

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			if sobelMagnitude(lum, w, x, y) <= a.EdgeThreshold {
				continue
			}
			edges++
			cx := x * grid / w
			cy := y * grid / h
			cells[cy*grid+cx]++
		}
	}

	f := FrameFeatures{GradientDensity: float64(edges) / float64((w-2)*(h-2))}
	if edges == 0 {
		return f, nil
	}

	best := 0
	for i, c := range cells {
		if c > cells[best] {
			best = i
		}
	}
	f.FocusX = (float64(best%grid) + 0.5) / float64(grid)
	f.FocusY = (float64(best/grid) + 0.5) / float64(grid)
	f.HasFocus = true
	return f, nil
}

// downscale draws img into a pooled RGBA no wider than width.
func downscale(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if width > 0 && w > width {
		h = int(math.Max(1, math.Round(float64(h)*float64(width)/float64(w))))
		w = width
	}
	dst := system.GetImage(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, img, b, draw.Src, nil)
	return dst
}

// luminance converts RGBA pixels to Rec. 601 luma.
func luminance(img *image.RGBA) []float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			lum[y*w+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return lum
}

func sobelMagnitude(lum []float64, w, x, y int) float64 {
	at := func(dx, dy int) float64 { return lum[(y+dy)*w+x+dx] }

	gx := -at(-1, -1) + at(1, -1) - 2*at(-1, 0) + 2*at(1, 0) - at(-1, 1) + at(1, 1)
	gy := -at(-1, -1) - 2*at(0, -1) - at(1, -1) + at(-1, 1) + 2*at(0, 1) + at(1, 1)
	return math.Sqrt(gx*gx + gy*gy)
}
