package scope

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/filscale/pkg/sample"
)

var (
	gridColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	weightColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	runColor    = color.RGBA{R: 0, G: 100, B: 200, A: 255}
	rateColor   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

type trendRenderer struct {
	trend *TrendWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

func (r *trendRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

// plot maps data coordinates into the plot area.
type plot struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plot) X(t time.Time) float32 {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		return p.x
	}
	return p.x + float32(t.Sub(p.xMin).Seconds()/span)*p.w
}

func (p plot) Y(g float64) float32 {
	return p.y + p.h - float32((g-p.yMin)/(p.yMax-p.yMin))*p.h
}

func (r *trendRenderer) Refresh() {
	t := r.trend
	t.mu.RLock()
	samples := t.displaySamples
	runs := t.runs
	rate := t.rate
	p := plot{yMin: t.yMin, yMax: t.yMax, xMin: t.xMin, xMax: t.xMax}
	t.mu.RUnlock()

	size := t.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	p.x, p.y = 60, 20
	p.w = size.Width - p.x - 20
	p.h = size.Height - p.y - 40

	r.objects = []fyne.CanvasObject{r.bg}
	r.drawGrid(p)
	r.drawWeight(p, samples)

	for _, run := range runs {
		for _, ts := range []time.Time{run.StartTime, run.EndTime} {
			x := p.X(ts)
			r.line(runColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		}
		mid := run.StartTime.Add(run.Duration() / 2)
		r.text(fmt.Sprintf("-%.1fg", run.Used), weightColor, 12, fyne.TextAlignCenter, fyne.NewPos(p.X(mid)-30, p.y+5))
	}

	r.text(formatRate(rate), rateColor, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+p.h-20))
}

func (r *trendRenderer) drawGrid(p plot) {
	const hLines, vLines = 6, 10

	for i := range hLines + 1 {
		y := p.y + float32(i)*p.h/hLines
		r.line(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))
		g := p.yMax - float64(i)*(p.yMax-p.yMin)/hLines
		r.text(formatGrams(g), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	span := p.xMax.Sub(p.xMin)
	for i := range vLines + 1 {
		x := p.x + float32(i)*p.w/vLines
		r.line(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		r.text(formatElapsed(span*time.Duration(i)/vLines), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}
}

func (r *trendRenderer) drawWeight(p plot, samples []sample.Sample) {
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		r.line(weightColor, 1.5, fyne.NewPos(p.X(a.Timestamp), p.Y(a.Grams)), fyne.NewPos(p.X(b.Timestamp), p.Y(b.Grams)))
	}
}

func (r *trendRenderer) line(c color.Color, width float32, a, b fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = a
	l.Position2 = b
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *trendRenderer) text(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(pos)
	r.objects = append(r.objects, t)
}

func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *trendRenderer) Destroy() {}

func formatGrams(g float64) string {
	if math.Abs(g) < 0.05 {
		return "0.0g"
	}
	return fmt.Sprintf("%.1fg", g)
}

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatRate formats a weight trend in grams per minute.
func formatRate(gps float64) string {
	gpm := gps * 60
	if math.Abs(gpm) < 0.005 {
		return "steady"
	}
	return fmt.Sprintf("%+.2f g/min", gpm)
}
