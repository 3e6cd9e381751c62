package alignment

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// layerGrid adapts one horizontal grid layer to the plotter's grid
// interface.
type layerGrid struct {
	vals []float64
	n    int
	cell float64
}

func (g layerGrid) Dims() (int, int)   { return g.n, g.n }
func (g layerGrid) Z(c, r int) float64 { return g.vals[c+g.n*r] }
func (g layerGrid) X(c int) float64    { return float64(c) * g.cell }
func (g layerGrid) Y(r int) float64    { return float64(r) * g.cell }

// saveHeatmap renders an n x n layer of grid values as a heatmap image,
// used in verbose mode to inspect the coarse correlation.
func saveHeatmap(path string, vals []float64, n int, cell float64) error {
	p := plot.New()
	p.Title.Text = "coarse alignment"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewHeatMap(layerGrid{vals: vals, n: n, cell: cell}, palette.Heat(12, 1)))
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
