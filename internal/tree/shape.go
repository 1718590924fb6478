package tree

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Primitive enumerates the shapes a compound can be fused from.
type Primitive string

const (
	PrimitiveCylinder Primitive = "cylinder"
	PrimitiveSphere   Primitive = "sphere"
)

// Color is a diffuse RGB triple with channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Material describes how a part is shaded. Each part owns its own copy.
type Material struct {
	Name    string `json:"name"`
	Diffuse Color  `json:"diffuse"`
}

var (
	TrunkMaterial = Material{Name: "trunkMaterial", Diffuse: Color{R: 0.5, G: 0.25, B: 0}}
	CrownMaterial = Material{Name: "topMaterial", Diffuse: Color{R: 0.25, G: 1, B: 0.25}}
)

// Part is one primitive of a compound, positioned relative to the compound origin.
type Part struct {
	Name      string
	Primitive Primitive
	Height    float64
	Diameter  float64
	Offset    mgl64.Vec3
	Material  Material
}

// extent returns the half sizes of the part's bounding box.
func (p Part) extent() mgl64.Vec3 {
	radius := p.Diameter / 2
	switch p.Primitive {
	case PrimitiveCylinder:
		return mgl64.Vec3{radius, p.Height / 2, radius}
	default:
		return mgl64.Vec3{radius, radius, radius}
	}
}

// AABB is an axis aligned bounding box.
type AABB struct {
	Min mgl64.Vec3 `json:"min"`
	Max mgl64.Vec3 `json:"max"`
}

// Translate returns the box moved by offset.
func (b AABB) Translate(offset mgl64.Vec3) AABB {
	return AABB{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

// Size returns the box extent along each axis.
func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Compound is the immutable result of fusing parts into one rigid shape.
type Compound struct {
	parts  []Part
	bounds AABB
}

func fuse(parts ...Part) *Compound {
	owned := make([]Part, len(parts))
	copy(owned, parts)

	bounds := AABB{
		Min: mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for _, part := range owned {
		half := part.extent()
		lo := part.Offset.Sub(half)
		hi := part.Offset.Add(half)
		for axis := 0; axis < 3; axis++ {
			bounds.Min[axis] = math.Min(bounds.Min[axis], lo[axis])
			bounds.Max[axis] = math.Max(bounds.Max[axis], hi[axis])
		}
	}
	return &Compound{parts: owned, bounds: bounds}
}

// Parts returns a copy of the fused parts in construction order.
func (c *Compound) Parts() []Part {
	dup := make([]Part, len(c.parts))
	copy(dup, c.parts)
	return dup
}

// NumParts reports how many primitives were fused.
func (c *Compound) NumParts() int {
	return len(c.parts)
}

// LocalBounds returns the bounding box around the compound origin.
func (c *Compound) LocalBounds() AABB {
	return c.bounds
}
