package terrain

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aquilax/go-perlin"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Source yields a normalised elevation in [0,1] for texture coordinates
// u (west to east) and v (north to south), both in [0,1].
type Source interface {
	Gradient(u, v float64) (float64, error)
}

// Loader produces a Source. It runs on the terrain build goroutine.
type Loader func(ctx context.Context) (Source, error)

// Static wraps an already constructed source.
func Static(src Source) Loader {
	return func(context.Context) (Source, error) {
		return src, nil
	}
}

// FlatSource is a constant elevation.
type FlatSource float64

func (f FlatSource) Gradient(u, v float64) (float64, error) {
	return clamp01(float64(f)), nil
}

// ImageSource samples a grayscale heightmap image.
type ImageSource struct {
	width, height int
	gradients     []float64
}

// NewImageSource converts img into luminance gradients, weighting channels
// 0.3/0.59/0.11.
func NewImageSource(img image.Image) (*ImageSource, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("heightmap image is empty")
	}
	src := &ImageSource{
		width:     b.Dx(),
		height:    b.Dy(),
		gradients: make([]float64, b.Dx()*b.Dy()),
	}
	for y := 0; y < src.height; y++ {
		for x := 0; x < src.width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// RGBA is 16 bit per channel
			lum := (float64(r>>8)*0.3 + float64(g>>8)*0.59 + float64(bl>>8)*0.11) / 255
			src.gradients[y*src.width+x] = clamp01(lum)
		}
	}
	return src, nil
}

func (s *ImageSource) Size() (int, int) {
	return s.width, s.height
}

func (s *ImageSource) Gradient(u, v float64) (float64, error) {
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: texture coordinate (%g, %g)", ErrOutOfBounds, u, v)
	}
	px := int(u * float64(s.width-1))
	py := int(v * float64(s.height-1))
	return s.gradients[py*s.width+px], nil
}

// DecodeImage reads a heightmap in any registered image format.
func DecodeImage(r io.Reader) (*ImageSource, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode heightmap: %w", err)
	}
	src, err := NewImageSource(img)
	if err != nil {
		return nil, fmt.Errorf("decode %s heightmap: %w", format, err)
	}
	return src, nil
}

// ImageLoader fetches a heightmap from a file path or an http(s) URL.
func ImageLoader(location string, client *http.Client) Loader {
	return func(ctx context.Context) (Source, error) {
		if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
			return fetchImage(ctx, location, client)
		}
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open heightmap: %w", err)
		}
		defer f.Close()
		return DecodeImage(f)
	}
}

func fetchImage(ctx context.Context, url string, client *http.Client) (Source, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build heightmap request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch heightmap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch heightmap: unexpected status %s", resp.Status)
	}
	return DecodeImage(resp.Body)
}

// PerlinOptions tune the noise backed source.
type PerlinOptions struct {
	Seed      int64
	Alpha     float64
	Beta      float64
	Octaves   int
	Frequency float64
}

// PerlinSource maps 2D Perlin noise into [0,1].
type PerlinSource struct {
	noise     *perlin.Perlin
	frequency float64
}

func NewPerlinSource(opts PerlinOptions) *PerlinSource {
	if opts.Alpha <= 0 {
		opts.Alpha = 2
	}
	if opts.Beta <= 0 {
		opts.Beta = 2
	}
	if opts.Octaves <= 0 {
		opts.Octaves = 3
	}
	if opts.Frequency <= 0 {
		opts.Frequency = 4
	}
	return &PerlinSource{
		noise:     perlin.NewPerlin(opts.Alpha, opts.Beta, int32(opts.Octaves), opts.Seed),
		frequency: opts.Frequency,
	}
}

func (p *PerlinSource) Gradient(u, v float64) (float64, error) {
	n := p.noise.Noise2D(u*p.frequency, v*p.frequency)
	return clamp01((n + 1) / 2), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
