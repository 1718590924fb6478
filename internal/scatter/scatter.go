package scatter

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/JesusEspinola/TFG/internal/tree"
)

// Sampler returns the terrain elevation at a planar coordinate. It must be
// safe for repeated and concurrent calls.
type Sampler interface {
	SampleHeight(x, z float64) (float64, error)
}

// SamplerFunc adapts a plain function to Sampler.
type SamplerFunc func(x, z float64) (float64, error)

func (f SamplerFunc) SampleHeight(x, z float64) (float64, error) {
	return f(x, z)
}

// ReadySampler is a terrain that is generated asynchronously. Ready is closed
// exactly once when generation ends; Err reports why it failed, if it did.
type ReadySampler interface {
	Sampler
	Ready() <-chan struct{}
	Err() error
}

// Rand is the subset of *rand.Rand used to draw coordinates.
type Rand interface {
	Float64() float64
}

type options struct {
	rng    Rand
	logger logrus.FieldLogger
}

// Option customises a scatter run.
type Option func(*options)

// WithRand replaces the unseeded default source.
func WithRand(r Rand) Option {
	return func(o *options) {
		o.rng = r
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.logger = discard
	}
	return o
}

// Scatter places count trees at independent uniform positions inside the
// domain's margin and rests each trunk base on the sampled terrain height.
// Trees may overlap. Any configuration problem is reported before a tree is
// built or the terrain is queried. A failed or non-finite height sample
// aborts the whole scatter and no trees are returned.
func Scatter(sample Sampler, domain Domain, props tree.Properties, count int, opts ...Option) ([]*tree.Tree, error) {
	bounds, err := domain.Bounds()
	if err != nil {
		return nil, err
	}
	if err := props.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "tree", Reason: "invalid dimensions", Err: err}
	}
	if count < 0 {
		return nil, configError("count", "cannot be negative")
	}
	if sample == nil && count > 0 {
		return nil, configError("terrain", "height sampler must be set")
	}

	o := buildOptions(opts)
	trees := make([]*tree.Tree, 0, count)
	for i := 0; i < count; i++ {
		t, err := tree.FromProperties(props)
		if err != nil {
			return nil, &ConfigurationError{Field: "tree", Reason: "invalid dimensions", Err: err}
		}

		x := uniform(o.rng, bounds.MinX, bounds.MaxX)
		z := uniform(o.rng, bounds.MinZ, bounds.MaxZ)

		h, err := sample.SampleHeight(x, z)
		if err != nil {
			return nil, &TerrainQueryError{Index: i, X: x, Z: z, Err: err}
		}
		if !finite(h) {
			return nil, &TerrainQueryError{Index: i, X: x, Z: z, Height: h}
		}

		t.SetPosition(mgl64.Vec3{x, h + props.BaseOffset(), z})
		trees = append(trees, t)

		o.logger.WithFields(logrus.Fields{
			"index": i,
			"x":     x,
			"y":     h + props.BaseOffset(),
			"z":     z,
		}).Debug("tree placed")
	}

	o.logger.WithField("count", len(trees)).Info("scatter complete")
	return trees, nil
}

func uniform(r Rand, min, max float64) float64 {
	v := min + r.Float64()*(max-min)
	if v > max {
		return max
	}
	return v
}

// Scatterer holds one scatter configuration so it can be run once the
// terrain is ready, and again on request.
type Scatterer struct {
	Domain     Domain
	Properties tree.Properties
	Count      int
	Logger     logrus.FieldLogger
	Rand       Rand
}

// Validate runs the eager configuration checks of Scatter without placing anything.
func (s *Scatterer) Validate() error {
	if _, err := s.Domain.Bounds(); err != nil {
		return err
	}
	if err := s.Properties.Validate(); err != nil {
		return &ConfigurationError{Field: "tree", Reason: "invalid dimensions", Err: err}
	}
	if s.Count < 0 {
		return configError("count", "cannot be negative")
	}
	return nil
}

func (s *Scatterer) options() []Option {
	var opts []Option
	if s.Rand != nil {
		opts = append(opts, WithRand(s.Rand))
	}
	if s.Logger != nil {
		opts = append(opts, WithLogger(s.Logger))
	}
	return opts
}

// Run scatters s.Count trees over sample.
func (s *Scatterer) Run(sample Sampler) ([]*tree.Tree, error) {
	return Scatter(sample, s.Domain, s.Properties, s.Count, s.options()...)
}

// RunWithCount is Run with a different number of trees.
func (s *Scatterer) RunWithCount(sample Sampler, count int) ([]*tree.Tree, error) {
	return Scatter(sample, s.Domain, s.Properties, count, s.options()...)
}

// RunWhenReady validates eagerly, blocks until terrain signals readiness and
// then scatters once. Only the wait observes ctx.
func (s *Scatterer) RunWhenReady(ctx context.Context, terrain ReadySampler) ([]*tree.Tree, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-terrain.Ready():
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for terrain: %w", ctx.Err())
	}
	if err := terrain.Err(); err != nil {
		return nil, fmt.Errorf("build terrain: %w", err)
	}
	return s.Run(terrain)
}
