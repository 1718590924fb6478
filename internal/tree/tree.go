package tree

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ErrInvalidDimensions is returned when a tree is built with a non-positive
// or non-finite trunk height or crown diameter.
var ErrInvalidDimensions = errors.New("tree dimensions must be positive")

// Properties are the dimensions shared by every tree of a scatter.
type Properties struct {
	TrunkHeight float64 `json:"trunkHeight" yaml:"trunk_height"`
	TopDiameter float64 `json:"topDiameter" yaml:"top_diameter"`
}

// Validate reports whether a tree can be built from the properties.
func (p Properties) Validate() error {
	if !positiveFinite(p.TrunkHeight) {
		return fmt.Errorf("%w: trunkHeight=%v", ErrInvalidDimensions, p.TrunkHeight)
	}
	if !positiveFinite(p.TopDiameter) {
		return fmt.Errorf("%w: topDiameter=%v", ErrInvalidDimensions, p.TopDiameter)
	}
	return nil
}

// BaseOffset is the distance from the compound origin, the trunk's vertical
// centre, down to the trunk base.
func (p Properties) BaseOffset() float64 {
	return p.TrunkHeight / 2
}

// Tree is a cylindrical trunk with a spherical crown fused into one shape.
// Its position is the only state that changes after construction.
type Tree struct {
	id    string
	props Properties
	shape *Compound

	mu       sync.RWMutex
	position mgl64.Vec3
}

// New builds a tree at the origin.
func New(trunkHeight, topDiameter float64) (*Tree, error) {
	props := Properties{TrunkHeight: trunkHeight, TopDiameter: topDiameter}
	if err := props.Validate(); err != nil {
		return nil, err
	}

	trunk := Part{
		Name:      "trunk",
		Primitive: PrimitiveCylinder,
		Height:    trunkHeight,
		Diameter:  topDiameter / 2,
		Material:  TrunkMaterial,
	}
	crown := Part{
		Name:      "top",
		Primitive: PrimitiveSphere,
		Diameter:  topDiameter,
		Material:  CrownMaterial,
	}
	crown.Offset = crown.Offset.Add(mgl64.Vec3{0, trunkHeight / 3, 0})

	return &Tree{
		id:    uuid.NewString(),
		props: props,
		shape: fuse(trunk, crown),
	}, nil
}

// FromProperties is New for a Properties value.
func FromProperties(props Properties) (*Tree, error) {
	return New(props.TrunkHeight, props.TopDiameter)
}

func (t *Tree) ID() string {
	return t.id
}

func (t *Tree) Properties() Properties {
	return t.props
}

func (t *Tree) Shape() *Compound {
	return t.shape
}

// Position returns the world anchor of the compound shape.
func (t *Tree) Position() mgl64.Vec3 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.position
}

// SetPosition moves the whole compound shape rigidly to v.
func (t *Tree) SetPosition(v mgl64.Vec3) {
	t.mu.Lock()
	t.position = v
	t.mu.Unlock()
}

// Bounds returns the world space bounding box at the current position.
func (t *Tree) Bounds() AABB {
	return t.shape.LocalBounds().Translate(t.Position())
}

// PartRecord is the serialisable view of one fused part.
type PartRecord struct {
	Name      string     `json:"name"`
	Primitive Primitive  `json:"primitive"`
	Height    float64    `json:"height,omitempty"`
	Diameter  float64    `json:"diameter"`
	Center    mgl64.Vec3 `json:"center"`
	Material  Material   `json:"material"`
}

// Record is what the scene collaborator receives for display.
type Record struct {
	ID          string       `json:"id"`
	Position    mgl64.Vec3   `json:"position"`
	TrunkHeight float64      `json:"trunkHeight"`
	TopDiameter float64      `json:"topDiameter"`
	Bounds      AABB         `json:"bounds"`
	Parts       []PartRecord `json:"parts"`
}

func (t *Tree) Snapshot() Record {
	pos := t.Position()
	parts := make([]PartRecord, 0, t.shape.NumParts())
	for _, part := range t.shape.parts {
		parts = append(parts, PartRecord{
			Name:      part.Name,
			Primitive: part.Primitive,
			Height:    part.Height,
			Diameter:  part.Diameter,
			Center:    pos.Add(part.Offset),
			Material:  part.Material,
		})
	}
	return Record{
		ID:          t.id,
		Position:    pos,
		TrunkHeight: t.props.TrunkHeight,
		TopDiameter: t.props.TopDiameter,
		Bounds:      t.shape.LocalBounds().Translate(pos),
		Parts:       parts,
	}
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
