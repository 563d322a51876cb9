package texture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"runtime"

	"github.com/x448/float16"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
)

// BRDFOptions configures the split-sum BRDF lookup table bake.
type BRDFOptions struct {
	Size     uint32 // width and height in texels
	Samples  uint32 // importance samples per texel
	TileSize uint32
	Workers  int // 0 means GOMAXPROCS
}

// DefaultBRDFOptions is a 256x256 table with 1024 samples per texel.
func DefaultBRDFOptions() BRDFOptions {
	return BRDFOptions{Size: 256, Samples: 1024, TileSize: 32}
}

type brdfTile struct {
	x0, y0, w, h uint32
	scale, bias  []float32
}

// BakeBRDF integrates the GGX split-sum scale and bias terms into an
// R16G16 float image. X is N·V, Y is roughness. Tiles are computed in
// parallel and merged in tile order so the result does not depend on
// scheduling.
func BakeBRDF(ctx context.Context, opts BRDFOptions) (*DDS, error) {
	if opts.Size == 0 || opts.Samples == 0 {
		return nil, fmt.Errorf("brdf: size %d and samples %d must be positive", opts.Size, opts.Samples)
	}
	if opts.TileSize == 0 || opts.TileSize > opts.Size {
		opts.TileSize = opts.Size
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var tiles []*brdfTile
	for y := uint32(0); y < opts.Size; y += opts.TileSize {
		for x := uint32(0); x < opts.Size; x += opts.TileSize {
			tiles = append(tiles, &brdfTile{
				x0: x,
				y0: y,
				w:  min(opts.TileSize, opts.Size-x),
				h:  min(opts.TileSize, opts.Size-y),
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, tile := range tiles {
		g.Go(func() error {
			return tile.integrate(gctx, opts.Size, opts.Samples)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make([]byte, int(opts.Size)*int(opts.Size)*4)
	for _, tile := range tiles {
		for ty := uint32(0); ty < tile.h; ty++ {
			for tx := uint32(0); tx < tile.w; tx++ {
				src := ty*tile.w + tx
				dst := ((tile.y0+ty)*opts.Size + tile.x0 + tx) * 4
				putHalf(data[dst:], tile.scale[src])
				putHalf(data[dst+2:], tile.bias[src])
			}
		}
	}

	return &DDS{
		Width:     opts.Size,
		Height:    opts.Size,
		Depth:     1,
		MipCount:  1,
		ArraySize: 1,
		Format:    DXGIFormatR16G16Float,
		Data:      data,
	}, nil
}

func putHalf(dst []byte, v float32) {
	h := float16.Fromfloat32(v).Bits()
	dst[0] = byte(h)
	dst[1] = byte(h >> 8)
}

func (t *brdfTile) integrate(ctx context.Context, size, samples uint32) error {
	t.scale = make([]float32, t.w*t.h)
	t.bias = make([]float32, t.w*t.h)
	for ty := uint32(0); ty < t.h; ty++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		roughness := (float64(t.y0+ty) + 0.5) / float64(size)
		for tx := uint32(0); tx < t.w; tx++ {
			nov := (float64(t.x0+tx) + 0.5) / float64(size)
			a, b := integrateBRDF(nov, roughness, samples)
			t.scale[ty*t.w+tx] = float32(a)
			t.bias[ty*t.w+tx] = float32(b)
		}
	}
	return nil
}

func hammersley(i, n uint32) (float64, float64) {
	return float64(i) / float64(n), float64(bits.Reverse32(i)) * 2.3283064365386963e-10
}

func importanceSampleGGX(u, v, roughness float64) (x, y, z float64) {
	a := roughness * roughness
	phi := 2 * math.Pi * u
	cosTheta := math.Sqrt((1 - v) / (1 + (a*a-1)*v))
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	return sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta
}

func geometrySchlickGGX(ndot, roughness float64) float64 {
	k := roughness * roughness / 2
	return ndot / (ndot*(1-k) + k)
}

func integrateBRDF(nov, roughness float64, samples uint32) (float64, float64) {
	// V lies in the xz plane, so L.y never matters.
	vx, vz := math.Sqrt(1-nov*nov), nov

	var a, b float64
	for i := uint32(0); i < samples; i++ {
		u, v := hammersley(i, samples)
		hx, _, hz := importanceSampleGGX(u, v, roughness)
		voh := vx*hx + vz*hz
		lz := 2*voh*hz - vz

		nol := math.Max(lz, 0)
		noh := math.Max(hz, 0)
		voh = math.Max(voh, 0)
		if nol <= 0 {
			continue
		}
		g := geometrySchlickGGX(nov, roughness) * geometrySchlickGGX(nol, roughness)
		gVis := g * voh / (noh * nov)
		fc := math.Pow(1-voh, 5)
		a += (1 - fc) * gVis
		b += fc * gVis
	}
	return a / float64(samples), b / float64(samples)
}

// BRDFPath is where the baked table for opts is kept in the scratch directory.
func BRDFPath(scratchDir string, opts BRDFOptions) string {
	return filepath.Join(scratchDir, fmt.Sprintf("brdf_lut_%d_%d.dds", opts.Size, opts.Samples))
}

// EnsureBRDF bakes the BRDF table into the scratch directory unless it is
// already there, and returns its path.
func EnsureBRDF(ctx context.Context, scratchDir string, opts BRDFOptions, log *zap.Logger) (string, error) {
	path := BRDFPath(scratchDir, opts)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "stat %s", path)
	}

	if log != nil {
		log.Info("baking brdf lut", zap.Uint32("size", opts.Size), zap.Uint32("samples", opts.Samples))
	}
	dds, err := BakeBRDF(ctx, opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteDDS(&buf, dds); err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "encoding brdf lut")
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "creating %s", scratchDir)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "renaming %s", tmp)
	}
	return path, nil
}
