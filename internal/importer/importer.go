// Package importer assembles a resource bundle and its shader bundle from a
// glTF scene. The stages run in a fixed order and each appends to the one
// bundle under construction:
//
//	materials  layouts and instances
//	meshes     buffers, meshes, definitions and the primitive remap table
//	scene      buckets
//	images     images, in the order materials referenced them
//	samplers   samplers, or one default sampler
//	probes     environment probe images
//	globals    BRDF lookup table and shader pipelines
//	write      both bundles, atomically
//
// The first failing stage aborts the import and nothing is written.
package importer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/config"
	"github.com/bazhenovc/malwerks-sub001/internal/material"
	"github.com/bazhenovc/malwerks-sub001/internal/scene"
	"github.com/bazhenovc/malwerks-sub001/internal/shader"
	"github.com/bazhenovc/malwerks-sub001/internal/texture"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// Stage names used in StageError and logs.
const (
	StageLoad      = "load"
	StageMaterials = "materials"
	StageMeshes    = "meshes"
	StageScene     = "scene"
	StageImages    = "images"
	StageSamplers  = "samplers"
	StageProbes    = "probes"
	StageGlobals   = "globals"
	StageWrite     = "write"
)

// StageError reports which stage failed and on which asset.
type StageError struct {
	Stage string
	Asset string
	Err   error
}

func (e *StageError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Asset, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Kind is the error kind of the failure.
func (e *StageError) Kind() bakeerr.Kind {
	return bakeerr.KindOf(e.Err)
}

func stageError(stage, asset string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Asset: asset, Err: err}
}

// Probe names the source images of one environment probe. Skybox is required.
type Probe struct {
	Skybox string
	Iem    string
	Pmrem  string
}

// Options configures an import.
type Options struct {
	TempFolder       string
	CompressionLevel uint32

	// MaterialShader is compiled once per material definition with the
	// definition's defines.
	MaterialShader  string
	MaterialDefines []bundle.MacroDefinition
	Pipelines       []shader.PipelineSpec

	Probes []Probe
	BRDF   *texture.BRDFOptions // nil disables the lookup table
}

// OptionsFromConfig builds import options from a resolved configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		TempFolder:       cfg.Import.TempFolder,
		CompressionLevel: cfg.Import.CompressionLevel,
		MaterialShader:   cfg.Shaders.Material,
	}
	for _, d := range cfg.Shaders.Defines {
		opts.MaterialDefines = append(opts.MaterialDefines, bundle.MacroDefinition{Name: d.Name, Value: d.Value})
	}
	for _, p := range cfg.Shaders.Pipelines {
		spec := shader.PipelineSpec{Name: p.Name, Source: p.Source}
		switch p.Kind {
		case "material":
			spec.Kind = bundle.PipelineMaterial
		case "ray_tracing", "raytracing":
			spec.Kind = bundle.PipelineRayTracing
		case "compute":
			spec.Kind = bundle.PipelineCompute
		default:
			return Options{}, errors.Errorf("pipeline %s: unknown kind %q", p.Name, p.Kind)
		}
		for _, s := range p.Stages {
			k, err := shader.ParseKind(s)
			if err != nil {
				return Options{}, errors.Wrapf(err, "pipeline %s", p.Name)
			}
			spec.Stages = append(spec.Stages, k)
		}
		for _, d := range p.Defines {
			spec.Defines = append(spec.Defines, bundle.MacroDefinition{Name: d.Name, Value: d.Value})
		}
		opts.Pipelines = append(opts.Pipelines, spec)
	}
	for _, p := range cfg.Environment.Probes {
		opts.Probes = append(opts.Probes, Probe{Skybox: p.Skybox, Iem: p.Iem, Pmrem: p.Pmrem})
	}
	if brdf := cfg.Environment.BRDF; brdf.Enabled {
		o := texture.DefaultBRDFOptions()
		if brdf.Size > 0 {
			o.Size = uint32(brdf.Size)
		}
		if brdf.Samples > 0 {
			o.Samples = uint32(brdf.Samples)
		}
		if brdf.TileSize > 0 {
			o.TileSize = uint32(brdf.TileSize)
		}
		if brdf.Workers > 0 {
			o.Workers = brdf.Workers
		}
		opts.BRDF = &o
	}
	return opts, nil
}

// Importer runs imports with one set of options and tools.
type Importer struct {
	opts     Options
	conv     texture.Converter
	compiler shader.Compiler
	log      *zap.Logger
}

// New returns an importer converting images with conv and compiling shaders
// with comp.
func New(opts Options, conv texture.Converter, comp shader.Compiler, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{opts: opts, conv: conv, compiler: comp, log: log}
}

// Result is everything one import produced.
type Result struct {
	Bundle  *bundle.Bundle
	Shaders *bundle.ShaderBundle
}

// run holds the state of one import.
type run struct {
	imp   *Importer
	doc   *gltf.Document
	dir   string // directory relative image URIs resolve against
	b     *bundle.Bundle
	dedup *material.Deduplicator

	sources   []material.Source // per glTF material
	instances []uint32          // per glTF material
	fallback  *uint32           // default material instance, if any primitive lacks one
	images    imagePlan
	samplers  samplerPlan
	remaps    []scene.PrimitiveRemap
	tex       *texture.Transcoder
}

// Import assembles the bundles for doc. Relative image URIs resolve
// against dir.
func (imp *Importer) Import(ctx context.Context, doc *gltf.Document, dir string) (*Result, error) {
	b := &bundle.Bundle{}
	r := &run{
		imp:   imp,
		doc:   doc,
		dir:   dir,
		b:     b,
		dedup: material.NewDeduplicator(b, imp.log.Named(StageMaterials)),
	}
	r.images.index = make(map[imageKey]uint32)
	r.samplers.index = make(map[bundle.Sampler]uint32)

	if err := r.importMaterials(); err != nil {
		return nil, stageError(StageMaterials, "", err)
	}
	if err := r.importMeshes(); err != nil {
		return nil, stageError(StageMeshes, "", err)
	}
	flat := scene.NewFlattener(r.remaps, imp.log.Named(StageScene))
	if err := flat.Walk(doc); err != nil {
		return nil, stageError(StageScene, "", err)
	}
	if err := flat.Bucketize(b); err != nil {
		return nil, stageError(StageScene, "", err)
	}
	if err := r.importImages(ctx); err != nil {
		return nil, stageError(StageImages, "", err)
	}
	r.importSamplers()
	if err := r.importProbes(ctx); err != nil {
		return nil, stageError(StageProbes, "", err)
	}
	shaders, err := r.importGlobals(ctx)
	if err != nil {
		return nil, stageError(StageGlobals, "", err)
	}

	if err := b.Validate(); err != nil {
		return nil, stageError(StageWrite, "", err)
	}
	if err := shaders.Validate(); err != nil {
		return nil, stageError(StageWrite, "", err)
	}
	imp.log.Info("bundle assembled",
		zap.Int("buffers", len(b.Buffers)),
		zap.Int("meshes", len(b.Meshes)),
		zap.Int("images", len(b.Images)),
		zap.Int("samplers", len(b.Samplers)),
		zap.Int("materials", len(b.Materials)),
		zap.Int("instances", len(b.MaterialInstances)),
		zap.Int("buckets", len(b.Buckets)),
		zap.Int("pipelines", len(shaders.Pipelines)))
	return &Result{Bundle: b, Shaders: shaders}, nil
}

// Run imports the glTF file at input and writes the resource bundle to
// output and the shader bundle next to it.
func (imp *Importer) Run(ctx context.Context, input, output string) error {
	imp.log.Info("importing", zap.String("input", input), zap.String("output", output))
	doc, err := gltf.Open(input)
	if err != nil {
		return &StageError{Stage: StageLoad, Asset: input, Err: bakeerr.Wrap(bakeerr.KindIO, err, "opening scene")}
	}
	res, err := imp.Import(ctx, doc, filepath.Dir(input))
	if err != nil {
		return err
	}
	shaderPath := config.ShaderBundlePath(output)
	if err := writeBundles(res, output, shaderPath, imp.opts.CompressionLevel); err != nil {
		return stageError(StageWrite, output, err)
	}
	imp.log.Info("bundle written", zap.String("bundle", output), zap.String("shaders", shaderPath))
	return nil
}
