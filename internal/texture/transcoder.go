package texture

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/toolexec"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// ConvertRequest asks a Converter to compress Source into OutputDir.
// The result must be written to OutputDir as the source base name with a
// .dds extension.
type ConvertRequest struct {
	Source    string
	OutputDir string
	Usage     Usage
}

// Converter is the external image compressor.
type Converter interface {
	Convert(ctx context.Context, req ConvertRequest) error
}

// TexconvConverter runs DirectXTex texconv.
type TexconvConverter struct {
	Path string
	Log  *zap.Logger
}

// Args returns the texconv command line for req.
func (c *TexconvConverter) Args(req ConvertRequest) []string {
	args := []string{"-nologo", "-dx10", "-y", "-o", req.OutputDir, "-f", req.Usage.DXGI().String()}
	switch req.Usage {
	case SrgbColor:
		args = append(args, "-srgb")
	case EnvironmentSkybox:
		args = append(args, "-srgbo")
	}
	switch req.Usage.Mips() {
	case FullChain:
		args = append(args, "-m", "0")
	case SingleMip:
		args = append(args, "-m", "1")
	}
	return append(args, req.Source)
}

func (c *TexconvConverter) Convert(ctx context.Context, req ConvertRequest) error {
	path := c.Path
	if path == "" {
		path = "texconv"
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := toolexec.Run(ctx, path, toolexec.WithArgs(c.Args(req)...), toolexec.WithLogger(log)); err != nil {
		return bakeerr.Wrap(bakeerr.KindCompression, err, "texconv %s", filepath.Base(req.Source))
	}
	return nil
}

// Transcoder converts source images into bundle images, reusing cached
// conversions from the scratch directory.
type Transcoder struct {
	conv    Converter
	scratch string
	log     *zap.Logger

	converted int
	reused    int
}

// NewTranscoder returns a Transcoder caching under scratchDir/textures.
func NewTranscoder(conv Converter, scratchDir string, log *zap.Logger) *Transcoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transcoder{conv: conv, scratch: scratchDir, log: log}
}

// Stats returns how many images were converted and how many came from cache.
func (t *Transcoder) Stats() (converted, reused int) {
	return t.converted, t.reused
}

// CachePath is where the converted DDS for source and usage lives.
func (t *Transcoder) CachePath(usage Usage, source string) string {
	h := fnv.New32a()
	h.Write([]byte(source))
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(t.scratch, "textures", usage.String(), strconv.FormatUint(uint64(h.Sum32()), 16), base+".dds")
}

// Transcode produces the bundle image for source under usage.
func (t *Transcoder) Transcode(ctx context.Context, usage Usage, source string) (*bundle.Image, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "resolving %s", source)
	}
	srcInfo, err := os.Stat(abs)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "stat %s", source)
	}

	cache := t.CachePath(usage, abs)
	cacheInfo, err := os.Stat(cache)
	switch {
	case err == nil && !srcInfo.ModTime().After(cacheInfo.ModTime()):
		t.reused++
		t.log.Debug("texture cache hit", zap.String("source", source), zap.Stringer("usage", usage))
	case err == nil || errors.Is(err, os.ErrNotExist):
		if err := t.convert(ctx, usage, abs, cache); err != nil {
			return nil, err
		}
	default:
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "stat %s", cache)
	}

	return LoadImage(usage, cache)
}

// LoadImage reads an already converted DDS file as a bundle image for usage.
func LoadImage(usage Usage, path string) (*bundle.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "reading %s", path)
	}
	dds, err := ParseDDS(data)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindCompression, err, "loading %s", path)
	}
	img, err := imageFromDDS(usage, dds)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindCompression, err, "%s", path)
	}
	return img, nil
}

func (t *Transcoder) convert(ctx context.Context, usage Usage, source, cache string) error {
	dir := filepath.Dir(cache)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return bakeerr.Wrap(bakeerr.KindIO, err, "creating %s", dir)
	}

	t.log.Info("converting texture", zap.String("source", source), zap.Stringer("usage", usage))
	err := t.conv.Convert(ctx, ConvertRequest{Source: source, OutputDir: dir, Usage: usage})
	if err != nil {
		if bakeerr.KindOf(err) == bakeerr.KindUnknown {
			err = bakeerr.Wrap(bakeerr.KindCompression, err, "converting %s", filepath.Base(source))
		}
		return err
	}
	if _, err := os.Stat(cache); err != nil {
		return bakeerr.New(bakeerr.KindCompression, "converter produced no %s", filepath.Base(cache))
	}
	t.converted++
	return nil
}

// imageFromDDS checks the container against the usage and builds the image.
func imageFromDDS(usage Usage, dds *DDS) (*bundle.Image, error) {
	if dds.Format != usage.DXGI() {
		return nil, fmt.Errorf("format %s, want %s", dds.Format, usage.DXGI())
	}
	if block := dds.Format.BlockBytes(); block != usage.BlockBytes() {
		return nil, fmt.Errorf("block size %d, want %d", block, usage.BlockBytes())
	}
	if dds.Cube != usage.Cube() {
		return nil, fmt.Errorf("cube map %t, want %t", dds.Cube, usage.Cube())
	}
	if usage.Mips() == SingleMip && dds.MipCount != 1 {
		return nil, fmt.Errorf("%d mips, want 1", dds.MipCount)
	}

	img := &bundle.Image{
		Width:      dds.Width,
		Height:     dds.Height,
		Depth:      dds.Depth,
		BlockSize:  usage.BlockBytes(),
		MipCount:   dds.MipCount,
		LayerCount: dds.Layers(),
		Format:     usage.Format(),
		Pixels:     dds.Data,
	}
	switch {
	case dds.Cube:
		img.Kind, img.ViewKind = bundle.ImageKind2D, bundle.ImageViewKindCube
	case dds.Depth > 1:
		img.Kind, img.ViewKind = bundle.ImageKind3D, bundle.ImageViewKind3D
	case dds.Height > 1:
		img.Kind, img.ViewKind = bundle.ImageKind2D, bundle.ImageViewKind2D
	default:
		img.Kind, img.ViewKind = bundle.ImageKind1D, bundle.ImageViewKind1D
	}
	return img, nil
}

// ExtractEmbedded stores image bytes embedded in a scene file under
// scratchDir/embedded so the compressor can read them. The file name is
// derived from the content and an existing file is left untouched, which
// keeps its mtime stable across runs.
func ExtractEmbedded(scratchDir string, data []byte, mimeType string) (string, error) {
	ext := ".png"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/vnd-ms.dds":
		ext = ".dds"
	}
	h := fnv.New64a()
	h.Write(data)
	path := filepath.Join(scratchDir, "embedded", strconv.FormatUint(h.Sum64(), 16)+ext)

	if info, err := os.Stat(path); err == nil && info.Size() == int64(len(data)) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "writing %s", path)
	}
	return path, nil
}
