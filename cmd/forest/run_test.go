package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JesusEspinola/TFG/internal/config"
	"github.com/JesusEspinola/TFG/internal/scene"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunExportsFlatScene(t *testing.T) {
	cfg := config.Default()
	cfg.Terrain.Source = config.SourceFlat
	cfg.Terrain.Flat = 0.4
	cfg.Terrain.Subdivisions = 10

	path := filepath.Join(t.TempDir(), "forest.json.zst")
	require.NoError(t, run(context.Background(), cfg, quietLogger(), path))

	snap, ok, err := scene.NewFileStore(path).Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Trees, 15)
	for _, rec := range snap.Trees {
		assert.InDelta(t, 1.0+0.25, rec.Position.Y(), 1e-9)
		assert.GreaterOrEqual(t, rec.Position.X(), -4.5)
		assert.LessOrEqual(t, rec.Position.X(), 4.5)
		assert.GreaterOrEqual(t, rec.Position.Z(), -4.5)
		assert.LessOrEqual(t, rec.Position.Z(), 4.5)
	}
}

func TestRunPlaneWithoutServer(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Enabled = false
	cfg.Terrain.Source = config.SourcePlane
	cfg.Terrain.Plane = config.PlaneConfig{SlopeX: 1}
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "latest.zst")

	require.NoError(t, run(context.Background(), cfg, quietLogger(), ""))

	snap, ok, err := scene.NewFileStore(cfg.Snapshot.Path).Load()
	require.NoError(t, err)
	require.True(t, ok)
	for _, rec := range snap.Trees {
		assert.Equal(t, rec.Position.X()+0.25, rec.Position.Y())
	}
}

func TestRunPerlinTerrain(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Enabled = false
	cfg.Terrain.Source = config.SourcePerlin
	cfg.Terrain.Subdivisions = 16

	require.NoError(t, run(context.Background(), cfg, quietLogger(), ""))
}

func TestRunFailsOnDegenerateDomain(t *testing.T) {
	cfg := config.Default()
	cfg.Scene.MarginFraction = 0.5
	cfg.Terrain.Source = config.SourcePlane

	err := run(context.Background(), cfg, quietLogger(), "")
	require.Error(t, err)
}

func TestRunFailsOnMissingHeightmap(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Enabled = false
	cfg.Terrain.Heightmap = filepath.Join(t.TempDir(), "missing.png")

	err := run(context.Background(), cfg, quietLogger(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open heightmap")
}
