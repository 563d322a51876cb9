package importer

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/shader"
	"github.com/bazhenovc/malwerks-sub001/internal/texture"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

func (r *run) transcoder() *texture.Transcoder {
	if r.tex == nil {
		r.tex = texture.NewTranscoder(r.imp.conv, r.imp.opts.TempFolder, r.imp.log.Named(StageImages))
	}
	return r.tex
}

// importImages converts the planned images in plan order, so each lands at
// the index material instances already refer to.
func (r *run) importImages(ctx context.Context) error {
	for _, key := range r.images.keys {
		asset := imageName(r, key.image)
		path, err := r.imageSource(key.image)
		if err != nil {
			return &StageError{Stage: StageImages, Asset: asset, Err: err}
		}
		img, err := r.transcoder().Transcode(ctx, key.usage, path)
		if err != nil {
			return &StageError{Stage: StageImages, Asset: asset, Err: err}
		}
		r.b.Images = append(r.b.Images, *img)
	}
	if len(r.images.keys) > 0 {
		converted, reused := r.transcoder().Stats()
		r.imp.log.Named(StageImages).Info("images imported",
			zap.Int("images", len(r.images.keys)),
			zap.Int("converted", converted),
			zap.Int("cached", reused))
	}
	return nil
}

// imageSource returns a file the compressor can read for glTF image i.
// Embedded images are extracted to the scratch directory first.
func (r *run) imageSource(i uint32) (string, error) {
	img := r.doc.Images[i]
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(r.doc.BufferViews) {
			return "", bakeerr.New(bakeerr.KindInvariantViolation, "buffer view %d out of range", *img.BufferView)
		}
		bv := r.doc.BufferViews[*img.BufferView]
		if int(bv.Buffer) >= len(r.doc.Buffers) {
			return "", bakeerr.New(bakeerr.KindInvariantViolation, "buffer %d out of range", bv.Buffer)
		}
		data := r.doc.Buffers[bv.Buffer].Data
		end := uint64(bv.ByteOffset) + uint64(bv.ByteLength)
		if end > uint64(len(data)) {
			return "", bakeerr.New(bakeerr.KindInvariantViolation, "buffer view %d exceeds buffer", *img.BufferView)
		}
		return texture.ExtractEmbedded(r.imp.opts.TempFolder, data[bv.ByteOffset:end], img.MimeType)
	case strings.HasPrefix(img.URI, "data:"):
		data, err := img.MarshalData()
		if err != nil {
			return "", bakeerr.Wrap(bakeerr.KindDecode, err, "decoding data uri")
		}
		mime := img.MimeType
		if mime == "" {
			mime = strings.TrimPrefix(strings.SplitN(img.URI, ";", 2)[0], "data:")
		}
		return texture.ExtractEmbedded(r.imp.opts.TempFolder, data, mime)
	case img.URI != "":
		uri, err := url.PathUnescape(img.URI)
		if err != nil {
			uri = img.URI
		}
		path := filepath.FromSlash(uri)
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.dir, path)
		}
		return path, nil
	}
	return "", bakeerr.New(bakeerr.KindUnsupportedFormat, "image has neither uri nor buffer view")
}

// importSamplers appends the planned samplers, or the default sampler when
// no texture named one.
func (r *run) importSamplers() {
	if len(r.samplers.samplers) == 0 {
		r.b.Samplers = append(r.b.Samplers, bundle.DefaultSampler())
		return
	}
	r.b.Samplers = append(r.b.Samplers, r.samplers.samplers...)
}

// importProbes converts the environment probe images.
func (r *run) importProbes(ctx context.Context) error {
	for i, p := range r.imp.opts.Probes {
		asset := "probe " + strconv.Itoa(i)
		if p.Skybox == "" {
			return &StageError{Stage: StageProbes, Asset: asset, Err: bakeerr.New(bakeerr.KindInvariantViolation, "probe without skybox")}
		}
		skybox, err := r.appendImage(ctx, texture.EnvironmentSkybox, p.Skybox)
		if err != nil {
			return &StageError{Stage: StageProbes, Asset: p.Skybox, Err: err}
		}
		probe := bundle.EnvironmentProbe{Skybox: skybox}
		if p.Iem != "" {
			idx, err := r.appendImage(ctx, texture.EnvironmentIem, p.Iem)
			if err != nil {
				return &StageError{Stage: StageProbes, Asset: p.Iem, Err: err}
			}
			probe.Iem = bundle.Some(idx)
		}
		if p.Pmrem != "" {
			idx, err := r.appendImage(ctx, texture.EnvironmentPmrem, p.Pmrem)
			if err != nil {
				return &StageError{Stage: StageProbes, Asset: p.Pmrem, Err: err}
			}
			probe.Pmrem = bundle.Some(idx)
		}
		r.b.EnvironmentProbes = append(r.b.EnvironmentProbes, probe)
	}
	return nil
}

func (r *run) appendImage(ctx context.Context, usage texture.Usage, path string) (uint32, error) {
	img, err := r.transcoder().Transcode(ctx, usage, path)
	if err != nil {
		return 0, err
	}
	idx := uint32(len(r.b.Images))
	r.b.Images = append(r.b.Images, *img)
	return idx, nil
}

// importGlobals bakes the BRDF table and compiles every shader pipeline:
// one material pipeline per material definition, in definition order,
// then the configured pipelines. The table is only baked when a material
// or probe can sample it.
func (r *run) importGlobals(ctx context.Context) (*bundle.ShaderBundle, error) {
	opts := r.imp.opts
	log := r.imp.log.Named(StageGlobals)

	if opts.BRDF != nil && len(r.b.Materials) == 0 && len(r.b.EnvironmentProbes) == 0 {
		log.Debug("skipping brdf lut, nothing shades with it")
	} else if opts.BRDF != nil {
		path, err := texture.EnsureBRDF(ctx, opts.TempFolder, *opts.BRDF, log)
		if err != nil {
			return nil, &StageError{Stage: StageGlobals, Asset: "brdf lut", Err: err}
		}
		img, err := texture.LoadImage(texture.EnvironmentBrdf, path)
		if err != nil {
			return nil, &StageError{Stage: StageGlobals, Asset: path, Err: err}
		}
		r.b.BrdfLUT = bundle.Some(uint32(len(r.b.Images)))
		r.b.Images = append(r.b.Images, *img)
	}

	graph := shader.NewGraph(r.imp.compiler, opts.TempFolder, log)
	if len(r.b.Materials) > 0 && opts.MaterialShader == "" {
		return nil, &StageError{Stage: StageGlobals, Err: bakeerr.New(bakeerr.KindInvariantViolation, "no material shader configured")}
	}
	for i, m := range r.b.Materials {
		spec := shader.PipelineSpec{
			Kind:    bundle.PipelineMaterial,
			Name:    fmt.Sprintf("material_%d", i),
			Source:  opts.MaterialShader,
			Stages:  []shader.Kind{shader.Vertex, shader.Fragment},
			Defines: m.Defines,
		}
		if err := graph.AddPipeline(spec); err != nil {
			return nil, &StageError{Stage: StageGlobals, Asset: spec.Name, Err: err}
		}
	}
	for _, spec := range opts.Pipelines {
		if err := graph.AddPipeline(spec); err != nil {
			return nil, &StageError{Stage: StageGlobals, Asset: spec.Name, Err: err}
		}
	}
	if err := graph.Build(ctx); err != nil {
		return nil, &StageError{Stage: StageGlobals, Asset: opts.MaterialShader, Err: err}
	}
	compiled, reused := graph.Stats()
	log.Info("shaders built", zap.Int("compiled", compiled), zap.Int("cached", reused))
	return &bundle.ShaderBundle{Pipelines: graph.Pipelines()}, nil
}

func imageName(r *run, i uint32) string {
	img := r.doc.Images[i]
	switch {
	case img.Name != "":
		return img.Name
	case img.URI != "" && !strings.HasPrefix(img.URI, "data:"):
		return img.URI
	}
	return "image " + strconv.FormatUint(uint64(i), 10)
}
