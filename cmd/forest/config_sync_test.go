package main

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/JesusEspinola/TFG/internal/config"
)

func TestWriteConfigFromEnvJSON(t *testing.T) {
	t.Setenv("FOREST_CONFIG_YAML_B64", "")

	cfg := config.Default()
	cfg.Scene.Count = 42
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	t.Setenv("FOREST_CONFIG_JSON", string(data))

	path := filepath.Join(t.TempDir(), "config.json")

	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.Scene.Count != 42 {
		t.Fatalf("unexpected count: %d", loaded.Scene.Count)
	}
}

func TestWriteConfigFromEnvYAML(t *testing.T) {
	cfg := config.Default()
	cfg.Tree.TrunkHeight = 0.9
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	t.Setenv("FOREST_CONFIG_JSON", "")
	t.Setenv("FOREST_CONFIG_YAML_B64", base64.StdEncoding.EncodeToString(data))

	path := filepath.Join(t.TempDir(), "nested", "forest.yaml")

	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var decoded config.Config
	if err := yaml.Unmarshal(contents, &decoded); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if decoded.Tree.TrunkHeight != 0.9 {
		t.Fatalf("unexpected trunk height: %v", decoded.Tree.TrunkHeight)
	}
}

func TestWriteConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("FOREST_CONFIG_YAML_B64", "")
	t.Setenv("FOREST_CONFIG_JSON", `{"scene":{"marginFraction":0.5}}`)

	if _, err := writeConfigFromEnv(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Fatalf("expected degenerate margin to be rejected")
	}
}

func TestWriteConfigFromEnvNeedsPath(t *testing.T) {
	t.Setenv("FOREST_CONFIG_YAML_B64", "")
	t.Setenv("FOREST_CONFIG_JSON", `{}`)

	if _, err := writeConfigFromEnv(""); err == nil {
		t.Fatalf("expected missing path to fail")
	}
}

func TestWriteConfigFromEnvNoPayload(t *testing.T) {
	t.Setenv("FOREST_CONFIG_JSON", "")
	t.Setenv("FOREST_CONFIG_YAML_B64", "")

	wrote, err := writeConfigFromEnv("/tmp/unused.json")
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if wrote {
		t.Fatalf("expected no config to be written")
	}
}
