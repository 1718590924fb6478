package terrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotReady    = errors.New("terrain is not ready")
	ErrOutOfBounds = errors.New("coordinate outside terrain")
)

// GroundOptions describe the grid the height source is baked into.
type GroundOptions struct {
	Width        float64
	Depth        float64
	Subdivisions int
	MinHeight    float64
	MaxHeight    float64
	Logger       logrus.FieldLogger
}

func (o GroundOptions) validate() error {
	if o.Width <= 0 || o.Depth <= 0 {
		return errors.New("ground extent must be positive")
	}
	if o.Subdivisions < 1 {
		return errors.New("ground subdivisions must be at least 1")
	}
	if o.MaxHeight < o.MinHeight {
		return errors.New("ground maxHeight must be >= minHeight")
	}
	return nil
}

// Ground is a height grid generated on a background goroutine. It can be
// sampled concurrently once Ready is closed.
type Ground struct {
	opts GroundOptions

	ready chan struct{}
	once  sync.Once
	err   error

	// heights[k*(S+1)+i] is the vertex at x index i and z index k.
	heights []float64
}

// Build starts generating the ground and returns immediately.
func Build(ctx context.Context, load Loader, opts GroundOptions) *Ground {
	if opts.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		opts.Logger = discard
	}
	g := &Ground{
		opts:  opts,
		ready: make(chan struct{}),
	}
	go func() {
		err := g.generate(ctx, load)
		g.finish(err)
	}()
	return g
}

func (g *Ground) finish(err error) {
	g.once.Do(func() {
		g.err = err
		if err != nil {
			g.opts.Logger.WithError(err).Error("terrain generation failed")
		} else {
			g.opts.Logger.Info("terrain ready")
		}
		close(g.ready)
	})
}

func (g *Ground) generate(ctx context.Context, load Loader) error {
	if err := g.opts.validate(); err != nil {
		return err
	}
	if load == nil {
		return errors.New("terrain source loader must be set")
	}
	g.opts.Logger.Info("terrain generation progress: 0%")

	src, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load terrain source: %w", err)
	}

	s := g.opts.Subdivisions
	heights := make([]float64, (s+1)*(s+1))
	span := g.opts.MaxHeight - g.opts.MinHeight
	nextLogPercent := 25
	for k := 0; k <= s; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := 1 - float64(k)/float64(s)
		for i := 0; i <= s; i++ {
			u := float64(i) / float64(s)
			gradient, err := src.Gradient(u, v)
			if err != nil {
				return fmt.Errorf("sample source at (%g, %g): %w", u, v, err)
			}
			if math.IsNaN(gradient) || math.IsInf(gradient, 0) {
				return fmt.Errorf("sample source at (%g, %g): non-finite gradient", u, v)
			}
			heights[k*(s+1)+i] = g.opts.MinHeight + span*gradient
		}
		if progress := (k + 1) * 100 / (s + 1); progress >= nextLogPercent && progress < 100 {
			g.opts.Logger.Infof("terrain generation progress: %d%%", progress)
			nextLogPercent += 25
		}
	}
	g.opts.Logger.Info("terrain generation progress: 100%")

	g.heights = heights
	return nil
}

// Ready is closed exactly once, after generation succeeded or failed.
func (g *Ground) Ready() <-chan struct{} {
	return g.ready
}

// Err reports why generation failed. It is nil until Ready is closed.
func (g *Ground) Err() error {
	select {
	case <-g.ready:
		return g.err
	default:
		return nil
	}
}

// Extent returns the ground width and depth.
func (g *Ground) Extent() (float64, float64) {
	return g.opts.Width, g.opts.Depth
}

// SampleHeight interpolates the grid facet containing (x, z).
func (g *Ground) SampleHeight(x, z float64) (float64, error) {
	select {
	case <-g.ready:
	default:
		return 0, ErrNotReady
	}
	if g.err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotReady, g.err)
	}

	halfW, halfD := g.opts.Width/2, g.opts.Depth/2
	if !(x >= -halfW && x <= halfW && z >= -halfD && z <= halfD) {
		return 0, fmt.Errorf("%w: (%g, %g)", ErrOutOfBounds, x, z)
	}

	s := g.opts.Subdivisions
	fx := (x + halfW) / g.opts.Width * float64(s)
	fz := (z + halfD) / g.opts.Depth * float64(s)
	i := clampCell(int(math.Floor(fx)), s)
	k := clampCell(int(math.Floor(fz)), s)
	tx := fx - float64(i)
	tz := fz - float64(k)

	h00 := g.vertex(i, k)
	h10 := g.vertex(i+1, k)
	h01 := g.vertex(i, k+1)
	h11 := g.vertex(i+1, k+1)

	if tx+tz <= 1 {
		return h00 + (h10-h00)*tx + (h01-h00)*tz, nil
	}
	return h11 + (h01-h11)*(1-tx) + (h10-h11)*(1-tz), nil
}

func (g *Ground) vertex(i, k int) float64 {
	return g.heights[k*(g.opts.Subdivisions+1)+i]
}

func clampCell(c, subdivisions int) int {
	if c < 0 {
		return 0
	}
	if c > subdivisions-1 {
		return subdivisions - 1
	}
	return c
}

// Plane is an analytic terrain h = A*x + B*z + C. It is always ready.
type Plane struct {
	A, B, C float64
}

var closedReady = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (p Plane) SampleHeight(x, z float64) (float64, error) {
	return p.A*x + p.B*z + p.C, nil
}

func (p Plane) Ready() <-chan struct{} {
	return closedReady
}

func (p Plane) Err() error {
	return nil
}
