package calib

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrUnderdetermined is returned when the points cannot define a line.
var ErrUnderdetermined = errors.New("need at least two points with different raw readings")

// Point is a raw reading taken with a known weight on the scale.
type Point struct {
	Raw   float64 `yaml:"raw"`
	Grams float64 `yaml:"grams"`
}

// Result is the least-squares line grams = Slope * (raw - ZeroOffset).
type Result struct {
	Slope      float64
	ZeroOffset float64
	RSquared   float64
}

// Fit fits slope and zero offset to the points.
func Fit(points []Point) (Result, error) {
	if len(points) < 2 {
		return Result{}, ErrUnderdetermined
	}

	raw := make([]float64, len(points))
	grams := make([]float64, len(points))
	for i, p := range points {
		raw[i] = p.Raw
		grams[i] = p.Grams
	}
	if stat.Variance(raw, nil) == 0 {
		return Result{}, ErrUnderdetermined
	}

	alpha, beta := stat.LinearRegression(raw, grams, nil, false)
	if !(beta > 0) || math.IsInf(beta, 0) {
		return Result{}, fmt.Errorf("fitted slope must be positive, got %v", beta)
	}

	return Result{
		Slope:      beta,
		ZeroOffset: -alpha / beta,
		RSquared:   stat.RSquared(raw, grams, nil, alpha, beta),
	}, nil
}

// Residuals returns fitted minus known grams for each point.
func (r Result) Residuals(points []Point) []float64 {
	res := make([]float64, len(points))
	for i, p := range points {
		res[i] = r.Slope*(p.Raw-r.ZeroOffset) - p.Grams
	}
	return res
}
