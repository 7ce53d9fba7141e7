// package charts renders playlist summary charts (popularity, keys, valence and energy) with gonum/plot.
package charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	PopularityFile    = "popularity"
	KeyWheelFile      = "keys"
	ValenceEnergyFile = "valence"

	popularityBins = 10
)

var formats = map[string]bool{"png": true, "pdf": true, "svg": true}

// Renderer writes charts into a directory in a single image format.
type Renderer struct {
	dir    string
	format string
	width  vg.Length
	height vg.Length
}

// New creates a Renderer writing to dir. An empty format defaults to png.
func New(dir, format string) (*Renderer, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: charts directory", shared.ErrMissingArgument)
	}
	if format == "" {
		format = "png"
	}
	if !formats[format] {
		return nil, fmt.Errorf("%w: chart format %q (png, pdf, svg)", shared.ErrInvalidArgument, format)
	}
	return &Renderer{dir: dir, format: format, width: 8 * vg.Inch, height: 6 * vg.Inch}, nil
}

// Dir returns the output directory.
func (r *Renderer) Dir() string { return r.dir }

// All renders every chart and returns the files written, in a fixed order.
func (r *Renderer) All(tracks []models.Track) ([]string, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks to chart", shared.ErrMissingArgument)
	}
	var files []string
	for _, render := range []func([]models.Track) (string, error){r.Popularity, r.KeyWheel, r.ValenceEnergy} {
		file, err := render(tracks)
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}
	return files, nil
}

// PopularityBins counts tracks per popularity decile. Popularity 100 falls in the last bin.
func PopularityBins(tracks []models.Track) [popularityBins]int {
	var bins [popularityBins]int
	for _, t := range tracks {
		b := t.Popularity / 10
		b = max(0, min(b, popularityBins-1))
		bins[b]++
	}
	return bins
}

// Popularity renders a histogram of track popularity scaled to 0-10.
func (r *Renderer) Popularity(tracks []models.Track) (string, error) {
	bins := PopularityBins(tracks)
	values := make(plotter.Values, len(bins))
	labels := make([]string, len(bins))
	for i, n := range bins {
		values[i] = float64(n)
		labels[i] = strconv.Itoa(i)
	}

	p := plot.New()
	p.Title.Text = "Popularity"
	p.X.Label.Text = "Popularity"
	p.Y.Label.Text = "Number of songs"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return "", err
	}
	bars.Color = color.RGBA{R: 66, G: 133, B: 244, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	return r.save(p, PopularityFile)
}

// KeyCounts counts tracks per Camelot number, split into minor (A) and major (B) rings.
// Index 0 is wheel position 1. Undetectable keys are not counted.
func KeyCounts(tracks []models.Track) (minor, major [12]int) {
	for _, t := range tracks {
		n := models.CamelotNumber(t.Key, t.Mode)
		if n == 0 {
			continue
		}
		if t.Mode == 0 {
			minor[n-1]++
		} else {
			major[n-1]++
		}
	}
	return minor, major
}

// KeyWheel renders key counts laid out along the Camelot wheel.
func (r *Renderer) KeyWheel(tracks []models.Track) (string, error) {
	minor, major := KeyCounts(tracks)

	p := plot.New()
	p.Title.Text = "Keys"
	p.X.Label.Text = "Camelot position"
	p.Y.Label.Text = "Number of songs"

	palette := generateColors(2)
	width := vg.Points(12)
	for i, ring := range []struct {
		name   string
		counts [12]int
	}{{"A (minor)", minor}, {"B (major)", major}} {
		values := make(plotter.Values, len(ring.counts))
		for j, n := range ring.counts {
			values[j] = float64(n)
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return "", err
		}
		bars.Color = palette[i]
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = vg.Length(2*i-1) * width / 2
		p.Add(bars)
		p.Legend.Add(ring.name, bars)
	}

	labels := make([]string, 12)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	p.NominalX(labels...)
	p.Legend.Top = true

	return r.save(p, KeyWheelFile)
}

// ValenceStats returns the minimum, maximum and mean valence scaled to 0-10.
func ValenceStats(tracks []models.Track) (lo, hi, mean float64) {
	if len(tracks) == 0 {
		return 0, 0, 0
	}
	vs := make([]float64, len(tracks))
	for i, t := range tracks {
		vs[i] = 10 * t.Valence
	}
	return floats.Min(vs), floats.Max(vs), stat.Mean(vs, nil)
}

// ValenceEnergy renders a valence/energy scatter, coloured by valence, with min, max and mean valence markers.
func (r *Renderer) ValenceEnergy(tracks []models.Track) (string, error) {
	pts := make(plotter.XYs, len(tracks))
	for i, t := range tracks {
		pts[i] = plotter.XY{X: 10 * t.Valence, Y: 10 * t.Energy}
	}

	p := plot.New()
	p.Title.Text = "Valence and energy"
	p.X.Label.Text = "Valence"
	p.Y.Label.Text = "Energy"
	p.X.Min, p.X.Max = 0, 10
	p.Y.Min, p.Y.Max = 0, 10

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", err
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		style := scatter.GlyphStyle
		style.Shape = draw.CircleGlyph{}
		style.Radius = vg.Points(4)
		style.Color = valenceColor(pts[i].X / 10)
		return style
	}
	p.Add(scatter)

	lo, hi, mean := ValenceStats(tracks)
	for _, marker := range []struct {
		name string
		x    float64
	}{{"min valence", lo}, {"max valence", hi}, {"mean valence", mean}} {
		line, err := plotter.NewLine(plotter.XYs{{X: marker.x, Y: 0}, {X: marker.x, Y: 10}})
		if err != nil {
			return "", err
		}
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		line.Color = color.Gray{Y: 120}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s %.1f", marker.name, marker.x), line)
	}
	p.Legend.Top = true

	return r.save(p, ValenceEnergyFile)
}

func (r *Renderer) save(p *plot.Plot, name string) (string, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	file := filepath.Join(r.dir, name+"."+r.format)
	if err := p.Save(r.width, r.height, file); err != nil {
		return "", fmt.Errorf("save %s chart: %w", name, err)
	}
	return file, nil
}

// valenceColor maps 0 (sad) to blue through to 1 (happy) in red.
func valenceColor(v float64) color.Color {
	v = max(0, min(v, 1))
	red, green, blue := hslToRGB(0.66*(1-v), 0.7, 0.5)
	return color.RGBA{R: red, G: green, B: blue, A: 255}
}

// generateColors creates a palette of n evenly spaced hues
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := range n {
		red, green, blue := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: red, G: green, B: blue, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}

	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t += 1
	case t > 1:
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
