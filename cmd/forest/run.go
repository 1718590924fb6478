package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/JesusEspinola/TFG/internal/config"
	"github.com/JesusEspinola/TFG/internal/logging"
	"github.com/JesusEspinola/TFG/internal/scatter"
	"github.com/JesusEspinola/TFG/internal/scene"
	"github.com/JesusEspinola/TFG/internal/server"
	"github.com/JesusEspinola/TFG/internal/terrain"
	"github.com/JesusEspinola/TFG/internal/tree"
)

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger, exportPath string) error {
	scatterer := newScatterer(cfg, logging.Named(logger, "scatter"))
	if err := scatterer.Validate(); err != nil {
		return err
	}

	ground := buildTerrain(ctx, cfg, logging.Named(logger, "terrain"))
	session := scene.NewSession(&scene.DebugFlag{})
	store := newStore(cfg)

	waitCtx := ctx
	if timeout := cfg.Server.ReadyTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	trees, err := scatterer.RunWhenReady(waitCtx, ground)
	if err != nil {
		return fmt.Errorf("scatter forest: %w", err)
	}
	session.Replace(trees)

	snap := scene.TakeSnapshot(session)
	if err := store.Save(snap); err != nil {
		return fmt.Errorf("save scene snapshot: %w", err)
	}
	if exportPath != "" {
		if err := scene.NewFileStore(exportPath).Save(snap); err != nil {
			return fmt.Errorf("export scene snapshot: %w", err)
		}
		logger.WithField("path", exportPath).Info("scene exported")
		return nil
	}

	if !cfg.Server.Enabled {
		return nil
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Session:   session,
		Scatterer: scatterer,
		Terrain:   ground,
		Store:     store,
		Logger:    logging.Named(logger, "server"),
	})
	if err != nil {
		return fmt.Errorf("initialise server: %w", err)
	}
	return srv.Run(ctx)
}

func newScatterer(cfg *config.Config, logger logrus.FieldLogger) *scatter.Scatterer {
	return &scatter.Scatterer{
		Domain: scatter.Domain{
			Width:          cfg.Scene.AreaWidth,
			Depth:          cfg.Scene.AreaDepth,
			MarginFraction: cfg.Scene.MarginFraction,
		},
		Properties: tree.Properties{
			TrunkHeight: cfg.Tree.TrunkHeight,
			TopDiameter: cfg.Tree.TopDiameter,
		},
		Count:  cfg.Scene.Count,
		Logger: logger,
	}
}

func newStore(cfg *config.Config) scene.Store {
	if cfg.Snapshot.Path == "" {
		return scene.NewMemoryStore()
	}
	return scene.NewFileStore(cfg.Snapshot.Path)
}

// buildTerrain starts generating the configured terrain. The plane source is
// analytic and ready immediately.
func buildTerrain(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) scatter.ReadySampler {
	tc := cfg.Terrain
	if tc.Source == config.SourcePlane {
		return terrain.Plane{A: tc.Plane.SlopeX, B: tc.Plane.SlopeZ, C: tc.Plane.Offset}
	}
	return terrain.Build(ctx, terrainLoader(tc), terrain.GroundOptions{
		Width:        cfg.Scene.AreaWidth,
		Depth:        cfg.Scene.AreaDepth,
		Subdivisions: tc.Subdivisions,
		MinHeight:    tc.MinHeight,
		MaxHeight:    tc.MaxHeight,
		Logger:       logger,
	})
}

func terrainLoader(tc config.TerrainConfig) terrain.Loader {
	switch tc.Source {
	case config.SourcePerlin:
		return terrain.Static(terrain.NewPerlinSource(terrain.PerlinOptions{
			Seed:      tc.Perlin.Seed,
			Alpha:     tc.Perlin.Alpha,
			Beta:      tc.Perlin.Beta,
			Octaves:   tc.Perlin.Octaves,
			Frequency: tc.Perlin.Frequency,
		}))
	case config.SourceFlat:
		return terrain.Static(terrain.FlatSource(tc.Flat))
	default:
		client := &http.Client{Timeout: tc.FetchTimeout.Duration()}
		return terrain.ImageLoader(tc.Heightmap, client)
	}
}
