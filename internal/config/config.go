package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a config-friendly wrapper around time.Duration that accepts
// human readable strings such as "150ms" in JSON and YAML files while still
// allowing numeric nanoseconds when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: decode string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures everything needed to build the terrain, scatter the forest
// and serve the resulting scene.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Scene    SceneConfig    `json:"scene" yaml:"scene"`
	Tree     TreeConfig     `json:"tree" yaml:"tree"`
	Terrain  TerrainConfig  `json:"terrain" yaml:"terrain"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	ListenAddress   string   `json:"listenAddress" yaml:"listen_address"`
	HTTPPort        int      `json:"httpPort" yaml:"http_port"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdown_timeout"`
	ReadyTimeout    Duration `json:"readyTimeout" yaml:"ready_timeout"` // how long to wait for the terrain on boot
}

// SceneConfig is the placement domain and number of trees.
type SceneConfig struct {
	AreaWidth      float64 `json:"areaWidth" yaml:"area_width"`
	AreaDepth      float64 `json:"areaDepth" yaml:"area_depth"`
	MarginFraction float64 `json:"marginFraction" yaml:"margin_fraction"`
	Count          int     `json:"count" yaml:"count"`
}

type TreeConfig struct {
	TrunkHeight float64 `json:"trunkHeight" yaml:"trunk_height"`
	TopDiameter float64 `json:"topDiameter" yaml:"top_diameter"`
}

// Terrain source kinds.
const (
	SourceHeightmap = "heightmap"
	SourcePerlin    = "perlin"
	SourceFlat      = "flat"
	SourcePlane     = "plane"
)

type TerrainConfig struct {
	Source       string       `json:"source" yaml:"source"`
	Heightmap    string       `json:"heightmap" yaml:"heightmap"` // file path or http(s) URL
	FetchTimeout Duration     `json:"fetchTimeout" yaml:"fetch_timeout"`
	Subdivisions int          `json:"subdivisions" yaml:"subdivisions"`
	MinHeight    float64      `json:"minHeight" yaml:"min_height"`
	MaxHeight    float64      `json:"maxHeight" yaml:"max_height"`
	Flat         float64      `json:"flat" yaml:"flat"` // normalised elevation for the flat source
	Perlin       PerlinConfig `json:"perlin" yaml:"perlin"`
	Plane        PlaneConfig  `json:"plane" yaml:"plane"`
}

type PerlinConfig struct {
	Seed      int64   `json:"seed" yaml:"seed"`
	Alpha     float64 `json:"alpha" yaml:"alpha"`
	Beta      float64 `json:"beta" yaml:"beta"`
	Octaves   int     `json:"octaves" yaml:"octaves"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

// PlaneConfig describes h = SlopeX*x + SlopeZ*z + Offset.
type PlaneConfig struct {
	SlopeX float64 `json:"slopeX" yaml:"slope_x"`
	SlopeZ float64 `json:"slopeZ" yaml:"slope_z"`
	Offset float64 `json:"offset" yaml:"offset"`
}

type SnapshotConfig struct {
	Path string `json:"path" yaml:"path"` // empty keeps snapshots in memory
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text or json
}

// DefaultHeightmap is the grayscale heightmap the scene was designed around.
const DefaultHeightmap = "https://doc.babylonjs.com/img/how_to/HeightMap/heightMap.png"

// Load reads configuration from a JSON or YAML file if provided. An empty
// path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(path, data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Decode unmarshals data into cfg, choosing YAML or JSON by file extension.
func Decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			ListenAddress:   "127.0.0.1",
			HTTPPort:        28090,
			ShutdownTimeout: Duration(5 * time.Second),
			ReadyTimeout:    Duration(30 * time.Second),
		},
		Scene: SceneConfig{
			AreaWidth:      10,
			AreaDepth:      10,
			MarginFraction: 1.0 / 20,
			Count:          15,
		},
		Tree: TreeConfig{
			TrunkHeight: 0.5,
			TopDiameter: 0.3,
		},
		Terrain: TerrainConfig{
			Source:       SourceHeightmap,
			Heightmap:    DefaultHeightmap,
			FetchTimeout: Duration(15 * time.Second),
			Subdivisions: 100,
			MinHeight:    0,
			MaxHeight:    2.5,
			Perlin: PerlinConfig{
				Seed:      1337,
				Alpha:     2,
				Beta:      2,
				Octaves:   3,
				Frequency: 4,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var logLevels = []string{"panic", "fatal", "error", "warn", "info", "debug", "trace"}

func (c *Config) Validate() error {
	if c.Server.Enabled {
		if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
			return errors.New("server.httpPort must be between 1 and 65535")
		}
	}
	if c.Server.ShutdownTimeout < 0 || c.Server.ReadyTimeout < 0 {
		return errors.New("server timeouts cannot be negative")
	}
	if !positive(c.Scene.AreaWidth) || !positive(c.Scene.AreaDepth) {
		return errors.New("scene area must be positive")
	}
	if math.IsNaN(c.Scene.MarginFraction) || c.Scene.MarginFraction < 0 {
		return errors.New("scene.marginFraction cannot be negative")
	}
	if c.Scene.MarginFraction >= 0.5 {
		return errors.New("scene.marginFraction must be below 0.5")
	}
	if c.Scene.Count < 0 {
		return errors.New("scene.count cannot be negative")
	}
	if !positive(c.Tree.TrunkHeight) {
		return errors.New("tree.trunkHeight must be positive")
	}
	if !positive(c.Tree.TopDiameter) {
		return errors.New("tree.topDiameter must be positive")
	}
	switch c.Terrain.Source {
	case SourceHeightmap:
		if c.Terrain.Heightmap == "" {
			return errors.New("terrain.heightmap must be set for the heightmap source")
		}
	case SourcePerlin, SourceFlat, SourcePlane:
	default:
		return fmt.Errorf("terrain.source %q is not one of heightmap, perlin, flat, plane", c.Terrain.Source)
	}
	if c.Terrain.Source != SourcePlane {
		if c.Terrain.Subdivisions < 1 {
			return errors.New("terrain.subdivisions must be positive")
		}
		if c.Terrain.MaxHeight < c.Terrain.MinHeight {
			return errors.New("terrain.maxHeight must be >= minHeight")
		}
	}
	if c.Terrain.Flat < 0 || c.Terrain.Flat > 1 {
		return errors.New("terrain.flat must be within [0, 1]")
	}
	if !validLogLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not one of %s", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.New("logging.format must be text or json")
	}
	return nil
}

func validLogLevel(level string) bool {
	for _, l := range logLevels {
		if l == strings.ToLower(level) {
			return true
		}
	}
	return false
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
