// Package main is the import tool: it bakes a glTF scene into a resource
// bundle and a shader bundle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/config"
	"github.com/bazhenovc/malwerks-sub001/internal/importer"
	"github.com/bazhenovc/malwerks-sub001/internal/logger"
	"github.com/bazhenovc/malwerks-sub001/internal/shader"
	"github.com/bazhenovc/malwerks-sub001/internal/texture"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
)

func main() {
	config.ParseFlags()

	// Development runs resolve relative paths against the dev root.
	if dir := config.WorkDir(); dir != "" {
		if err := os.Chdir(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Working directory error: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Import.Input == "" {
		fmt.Fprintln(os.Stderr, "Usage: importer --input <scene.gltf> [--output <file.render_bundle>] [--temp_folder <dir>] [--compression_level 0-9]")
		os.Exit(2)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	opts, err := importer.OptionsFromConfig(cfg)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		os.Exit(1)
	}
	if err := cfg.SaveTo(filepath.Join(cfg.Import.TempFolder, config.FileName)); err != nil {
		logger.Warn("could not record configuration", zap.Error(err))
	}

	conv := &texture.TexconvConverter{Path: cfg.Tools.Texconv, Log: logger.Named("texconv")}
	comp := &shader.GlslcCompiler{Path: cfg.Tools.Glslc, TargetEnv: cfg.Tools.TargetEnv, Log: logger.Named("glslc")}
	imp := importer.New(opts, conv, comp, logger.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := imp.Run(ctx, cfg.Import.Input, cfg.Import.Output); err != nil {
		fields := []zap.Field{zap.Stringer("kind", bakeerr.KindOf(err)), zap.Error(err)}
		var se *importer.StageError
		if errors.As(err, &se) {
			fields = append(fields, zap.String("stage", se.Stage), zap.String("asset", se.Asset))
		}
		logger.Error("import failed", fields...)
		logger.Sync()
		os.Exit(1)
	}
}
