package raycloud

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/terralidar/rayalign/internal/geometry"
	"github.com/terralidar/rayalign/internal/par"
)

// RGBA is the packed per-ray colour. Alpha doubles as the return intensity
// channel, with zero meaning an unbounded ray that hit nothing.
type RGBA struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// White is the colour used when the source file carries none.
var White = RGBA{255, 255, 255, 255}

// Cloud holds a ray cloud: per sample the sensor position (start), the hit
// position (end), a timestamp and a colour. The four slices always have
// equal length.
type Cloud struct {
	Starts  []r3.Vector
	Ends    []r3.Vector
	Times   []float64
	Colours []RGBA
}

func New(capacity int) *Cloud {
	return &Cloud{
		Starts:  make([]r3.Vector, 0, capacity),
		Ends:    make([]r3.Vector, 0, capacity),
		Times:   make([]float64, 0, capacity),
		Colours: make([]RGBA, 0, capacity),
	}
}

func (c *Cloud) Len() int {
	return len(c.Ends)
}

func (c *Cloud) AddRay(start, end r3.Vector, time float64, colour RGBA) {
	c.Starts = append(c.Starts, start)
	c.Ends = append(c.Ends, end)
	c.Times = append(c.Times, time)
	c.Colours = append(c.Colours, colour)
}

// Append concatenates the samples of o onto c.
func (c *Cloud) Append(o *Cloud) {
	c.Starts = append(c.Starts, o.Starts...)
	c.Ends = append(c.Ends, o.Ends...)
	c.Times = append(c.Times, o.Times...)
	c.Colours = append(c.Colours, o.Colours...)
}

func (c *Cloud) Clone() *Cloud {
	out := New(c.Len())
	out.Append(c)
	return out
}

// Transform applies the pose to every sample. Starts move together with
// Ends so the ray direction end-start stays physically meaningful.
func (c *Cloud) Transform(p geometry.Pose) {
	par.For(c.Len(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			c.Starts[i] = p.Apply(c.Starts[i])
			c.Ends[i] = p.Apply(c.Ends[i])
		}
	})
}

// Displace adds a per-point displacement to both endpoints of each ray.
// fn is evaluated at the ray's end position.
func (c *Cloud) Displace(fn func(r3.Vector) r3.Vector) {
	par.For(c.Len(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			d := fn(c.Ends[i])
			c.Ends[i] = c.Ends[i].Add(d)
			c.Starts[i] = c.Starts[i].Add(d)
		}
	})
}

// Bounds returns the bounding box of the end points.
func (c *Cloud) Bounds() geometry.Bounds {
	return geometry.BoundsOf(c.Ends)
}

// PointSpacing estimates the typical distance between neighbouring end
// points, assuming the cloud samples surfaces. It voxelises the ends at a
// coarse resolution and treats the occupied voxel area as the sampled
// surface area.
func (c *Cloud) PointSpacing() float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	b := c.Bounds()
	w := b.MaxDim() / 100
	if w <= 0 {
		return 0
	}
	occupied := map[[3]int32]struct{}{}
	for _, e := range c.Ends {
		d := e.Sub(b.Min)
		key := [3]int32{int32(d.X / w), int32(d.Y / w), int32(d.Z / w)}
		occupied[key] = struct{}{}
	}
	area := float64(len(occupied)) * w * w
	return math.Sqrt(area / float64(n))
}
