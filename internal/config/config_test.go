package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestDefaultMatchesOriginalScene(t *testing.T) {
	cfg := Default()
	if cfg.Scene.AreaWidth != 10 || cfg.Scene.AreaDepth != 10 {
		t.Fatalf("unexpected area %vx%v", cfg.Scene.AreaWidth, cfg.Scene.AreaDepth)
	}
	if cfg.Scene.MarginFraction != 0.05 {
		t.Fatalf("unexpected margin fraction %v", cfg.Scene.MarginFraction)
	}
	if cfg.Scene.Count != 15 {
		t.Fatalf("unexpected count %d", cfg.Scene.Count)
	}
	if cfg.Tree.TrunkHeight != 0.5 || cfg.Tree.TopDiameter != 0.3 {
		t.Fatalf("unexpected tree %+v", cfg.Tree)
	}
	if cfg.Terrain.Subdivisions != 100 || cfg.Terrain.MaxHeight != 2.5 {
		t.Fatalf("unexpected terrain %+v", cfg.Terrain)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "port out of range",
			mutate: func(cfg *Config) {
				cfg.Server.HTTPPort = 70000
			},
			wantErr: "server.httpPort must be between 1 and 65535",
		},
		{
			name: "negative shutdown timeout",
			mutate: func(cfg *Config) {
				cfg.Server.ShutdownTimeout = -1
			},
			wantErr: "server timeouts cannot be negative",
		},
		{
			name: "non positive area",
			mutate: func(cfg *Config) {
				cfg.Scene.AreaDepth = 0
			},
			wantErr: "scene area must be positive",
		},
		{
			name: "negative margin",
			mutate: func(cfg *Config) {
				cfg.Scene.MarginFraction = -0.01
			},
			wantErr: "scene.marginFraction cannot be negative",
		},
		{
			name: "degenerate margin",
			mutate: func(cfg *Config) {
				cfg.Scene.MarginFraction = 0.5
			},
			wantErr: "scene.marginFraction must be below 0.5",
		},
		{
			name: "negative count",
			mutate: func(cfg *Config) {
				cfg.Scene.Count = -1
			},
			wantErr: "scene.count cannot be negative",
		},
		{
			name: "zero trunk",
			mutate: func(cfg *Config) {
				cfg.Tree.TrunkHeight = 0
			},
			wantErr: "tree.trunkHeight must be positive",
		},
		{
			name: "negative crown",
			mutate: func(cfg *Config) {
				cfg.Tree.TopDiameter = -0.3
			},
			wantErr: "tree.topDiameter must be positive",
		},
		{
			name: "missing heightmap",
			mutate: func(cfg *Config) {
				cfg.Terrain.Heightmap = ""
			},
			wantErr: "terrain.heightmap must be set for the heightmap source",
		},
		{
			name: "unknown source",
			mutate: func(cfg *Config) {
				cfg.Terrain.Source = "voxels"
			},
			wantErr: `terrain.source "voxels" is not one of heightmap, perlin, flat, plane`,
		},
		{
			name: "no subdivisions",
			mutate: func(cfg *Config) {
				cfg.Terrain.Subdivisions = 0
			},
			wantErr: "terrain.subdivisions must be positive",
		},
		{
			name: "inverted heights",
			mutate: func(cfg *Config) {
				cfg.Terrain.MinHeight = 3
			},
			wantErr: "terrain.maxHeight must be >= minHeight",
		},
		{
			name: "flat out of range",
			mutate: func(cfg *Config) {
				cfg.Terrain.Flat = 1.5
			},
			wantErr: "terrain.flat must be within [0, 1]",
		},
		{
			name: "unknown log level",
			mutate: func(cfg *Config) {
				cfg.Logging.Level = "loud"
			},
			wantErr: `logging.level "loud" is not one of panic, fatal, error, warn, info, debug, trace`,
		},
		{
			name: "unknown log format",
			mutate: func(cfg *Config) {
				cfg.Logging.Format = "xml"
			},
			wantErr: "logging.format must be text or json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("unexpected error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidatePlaneIgnoresGrid(t *testing.T) {
	cfg := Default()
	cfg.Terrain.Source = SourcePlane
	cfg.Terrain.Subdivisions = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("plane source should not need a grid: %v", err)
	}
}

func TestValidateDisabledServerIgnoresPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Enabled = false
	cfg.Server.HTTPPort = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled server should not need a port: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("default configuration mismatch:\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadReadsJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Scene.Count = 40
	cfg.Terrain.Source = SourcePerlin

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("loaded configuration mismatch:\nwant: %#v\n got: %#v", cfg, got)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forest.yaml")

	contents := `
scene:
  area_width: 20
  area_depth: 12
  margin_fraction: 0.1
  count: 7
tree:
  trunk_height: 1.2
  top_diameter: 0.8
terrain:
  source: flat
  flat: 0.5
server:
  shutdown_timeout: 2s
  ready_timeout: 1000000000
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.Scene.AreaWidth != 20 || got.Scene.AreaDepth != 12 || got.Scene.Count != 7 {
		t.Fatalf("unexpected scene %+v", got.Scene)
	}
	if got.Tree.TrunkHeight != 1.2 || got.Tree.TopDiameter != 0.8 {
		t.Fatalf("unexpected tree %+v", got.Tree)
	}
	if got.Terrain.Source != SourceFlat || got.Terrain.Flat != 0.5 {
		t.Fatalf("unexpected terrain %+v", got.Terrain)
	}
	if got.Server.ShutdownTimeout.Duration() != 2*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", got.Server.ShutdownTimeout.Duration())
	}
	if got.Server.ReadyTimeout.Duration() != time.Second {
		t.Fatalf("unexpected ready timeout %v", got.Server.ReadyTimeout.Duration())
	}
	// untouched sections keep their defaults
	if got.Terrain.Subdivisions != 100 || got.Logging.Level != "info" {
		t.Fatalf("defaults lost: %+v %+v", got.Terrain, got.Logging)
	}
}

func TestLoadInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Scene.MarginFraction = 0.5

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err = Load(path)
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if !strings.Contains(err.Error(), "validate config: scene.marginFraction must be below 0.5") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)

	jsonData, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	if string(jsonData) != `"1.5s"` {
		t.Fatalf("unexpected json %s", jsonData)
	}
	var fromJSON Duration
	if err := json.Unmarshal(jsonData, &fromJSON); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}

	yamlData, err := yaml.Marshal(d)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	var fromYAML Duration
	if err := yaml.Unmarshal(yamlData, &fromYAML); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	if fromJSON != d || fromYAML != d {
		t.Fatalf("round trip mismatch: json=%v yaml=%v", fromJSON, fromYAML)
	}

	var bad Duration
	if err := json.Unmarshal([]byte(`"soon"`), &bad); err == nil {
		t.Fatalf("expected invalid duration to fail")
	}
}
