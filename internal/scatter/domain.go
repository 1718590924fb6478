package scatter

import "math"

// DefaultMarginFraction keeps trees one twentieth of each extent away from the edge.
const DefaultMarginFraction = 1.0 / 20

// Domain is the horizontal extent of the terrain trees are scattered over.
type Domain struct {
	Width          float64 `json:"width" yaml:"width"`
	Depth          float64 `json:"depth" yaml:"depth"`
	MarginFraction float64 `json:"marginFraction" yaml:"margin_fraction"`
}

// Bounds is the rectangular placement region inside the margin.
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

// Contains reports whether (x, z) lies inside the closed region.
func (b Bounds) Contains(x, z float64) bool {
	return x >= b.MinX && x <= b.MaxX && z >= b.MinZ && z <= b.MaxZ
}

// Validate checks that the domain produces a non-empty placement region.
func (d Domain) Validate() error {
	if !finite(d.Width) || d.Width <= 0 {
		return configError("domain.width", "must be positive")
	}
	if !finite(d.Depth) || d.Depth <= 0 {
		return configError("domain.depth", "must be positive")
	}
	if !finite(d.MarginFraction) || d.MarginFraction < 0 {
		return configError("domain.marginFraction", "cannot be negative")
	}
	if d.MarginFraction >= 0.5 {
		return configError("domain.marginFraction", "must be below 0.5")
	}
	return nil
}

// Bounds computes the placement region, inset by the margin on every side.
func (d Domain) Bounds() (Bounds, error) {
	if err := d.Validate(); err != nil {
		return Bounds{}, err
	}
	b := Bounds{
		MinX: -d.Width/2 + d.Width*d.MarginFraction,
		MaxX: d.Width/2 - d.Width*d.MarginFraction,
		MinZ: -d.Depth/2 + d.Depth*d.MarginFraction,
		MaxZ: d.Depth/2 - d.Depth*d.MarginFraction,
	}
	if !(b.MinX < b.MaxX) || !(b.MinZ < b.MaxZ) {
		return Bounds{}, configError("domain", "placement bounds are empty")
	}
	return b, nil
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
