package shader

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// fakeCompiler writes a SPIR-V module whose payload word identifies the
// request, so tests can tell outputs apart.
type fakeCompiler struct {
	calls []CompileRequest
	fail  string // stage name that fails
}

func (f *fakeCompiler) Compile(_ context.Context, req CompileRequest) error {
	f.calls = append(f.calls, req)
	if f.fail == req.Kind.String() {
		return errors.New("error: 'main' : missing entry point")
	}
	h := fnv.New32a()
	h.Write([]byte(req.Output))
	out, err := os.Create(req.Output)
	if err != nil {
		return err
	}
	defer out.Close()
	return WriteSPIRV(out, []uint32{SPIRVMagic, 0x00010500, 0, 16, 0, h.Sum32()})
}

func writeShader(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pbr.glsl")
	if err := os.WriteFile(path, []byte("#version 460\nvoid main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKindNames(t *testing.T) {
	tests := []struct {
		kind  Kind
		name  string
		macro string
	}{
		{Vertex, "vertex", "VERTEX_STAGE"},
		{Fragment, "fragment", "FRAGMENT_STAGE"},
		{Compute, "compute", "COMPUTE_STAGE"},
		{RayGen, "rgen", "RAY_GEN_STAGE"},
		{RayMiss, "rmiss", "RAY_MISS_STAGE"},
		{RayClosestHit, "rchit", "RAY_CLOSEST_HIT_STAGE"},
		{Mesh, "mesh", "MESH_STAGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind.String() != tt.name || tt.kind.Macro() != tt.macro {
				t.Errorf("got %s/%s, want %s/%s", tt.kind, tt.kind.Macro(), tt.name, tt.macro)
			}
			k, err := ParseKind(tt.name)
			if err != nil || k != tt.kind {
				t.Errorf("ParseKind(%q) = %v, %v", tt.name, k, err)
			}
		})
	}
}

func TestGlslcArgs(t *testing.T) {
	c := &GlslcCompiler{}
	got := strings.Join(c.Args(CompileRequest{
		Source: "pbr.glsl",
		Output: "pbr.vertex.spv",
		Kind:   Vertex,
		Macros: []bundle.MacroDefinition{{Name: "VERTEX_STAGE", Value: "1"}, {Name: "ALPHA_TEST"}},
	}), " ")
	want := "-x glsl -fshader-stage=vertex --target-env=vulkan1.2 -O -Werror -DVERTEX_STAGE=1 -DALPHA_TEST -o pbr.vertex.spv pbr.glsl"
	if got != want {
		t.Errorf("Args() = %q\nwant %q", got, want)
	}
}

func TestParseSPIRV(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid", []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}, false},
		{"short", []byte{0x03, 0x02, 0x23, 0x07}, true},
		{"misaligned", make([]byte, 21), true},
		{"bad magic", make([]byte, 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSPIRV(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSPIRV() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGraphIncremental(t *testing.T) {
	dir := t.TempDir()
	src := writeShader(t, dir)
	comp := &fakeCompiler{}
	ctx := context.Background()

	build := func() *Graph {
		g := NewGraph(comp, filepath.Join(dir, "scratch"), nil)
		err := g.AddPipeline(PipelineSpec{
			Kind:   bundle.PipelineMaterial,
			Name:   "material_0",
			Source: src,
			Stages: []Kind{Vertex, Fragment},
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := g.Build(ctx); err != nil {
			t.Fatalf("Build: %v", err)
		}
		return g
	}

	g := build()
	if len(comp.calls) != 2 {
		t.Fatalf("compiled %d nodes, want 2", len(comp.calls))
	}
	if comp.calls[0].Macros[0].Name != "VERTEX_STAGE" || comp.calls[1].Macros[0].Name != "FRAGMENT_STAGE" {
		t.Errorf("stage macros not defined first: %+v", comp.calls)
	}
	out := g.Nodes()[0].Output
	before, _ := os.Stat(out)

	g = build()
	if len(comp.calls) != 2 {
		t.Errorf("up-to-date outputs recompiled: %d calls", len(comp.calls))
	}
	if compiled, reused := g.Stats(); compiled != 0 || reused != 2 {
		t.Errorf("Stats() = %d, %d", compiled, reused)
	}
	after, _ := os.Stat(out)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("output touched on unchanged source")
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatal(err)
	}
	build()
	if len(comp.calls) != 4 {
		t.Errorf("stale outputs not recompiled: %d calls", len(comp.calls))
	}
}

func TestGraphPipelines(t *testing.T) {
	dir := t.TempDir()
	src := writeShader(t, dir)
	g := NewGraph(&fakeCompiler{}, filepath.Join(dir, "scratch"), nil)

	defines := []bundle.MacroDefinition{{Name: "HAS_NORMAL", Value: "1"}}
	specs := []PipelineSpec{
		{Kind: bundle.PipelineMaterial, Name: "a", Source: src, Stages: []Kind{Vertex, Fragment}, Defines: defines},
		{Kind: bundle.PipelineMaterial, Name: "b", Source: src, Stages: []Kind{Vertex, Fragment}, Defines: defines},
		{Kind: bundle.PipelineRayTracing, Name: "rt", Source: src, Stages: []Kind{RayGen, RayMiss, RayClosestHit}},
		{Kind: bundle.PipelineCompute, Name: "cs", Source: src, Stages: []Kind{Compute}},
	}
	for _, s := range specs {
		if err := g.AddPipeline(s); err != nil {
			t.Fatal(err)
		}
	}
	if len(g.Nodes()) != 6 {
		t.Errorf("identical stages not shared: %d nodes", len(g.Nodes()))
	}
	if err := g.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	ps := g.Pipelines()
	if len(ps) != 4 {
		t.Fatalf("got %d pipelines", len(ps))
	}
	if ps[0].Name != "a" || ps[3].Kind != bundle.PipelineCompute {
		t.Errorf("pipelines out of order: %s, %s", ps[0].Name, ps[3].Kind)
	}
	if len(ps[0].Stages[bundle.StageVertex]) == 0 || len(ps[0].Stages[bundle.StageFragment]) == 0 {
		t.Error("material pipeline missing stages")
	}
	if len(ps[0].Stages[bundle.StageGeometry]) != 0 {
		t.Error("absent geometry stage not empty")
	}
	rt := ps[2]
	if len(rt.Stages[bundle.StageRayGen]) == 0 || len(rt.Stages[bundle.StageMiss]) == 0 ||
		len(rt.Stages[bundle.StageClosestHit]) == 0 || len(rt.Stages[bundle.StageAnyHit]) != 0 {
		t.Errorf("ray tracing slots wrong: %v", rt.Stages)
	}
	if err := (&bundle.ShaderBundle{Pipelines: ps}).Validate(); err != nil {
		t.Errorf("pipelines invalid: %v", err)
	}
}

func TestGraphErrors(t *testing.T) {
	dir := t.TempDir()
	src := writeShader(t, dir)

	t.Run("stage not allowed in pipeline", func(t *testing.T) {
		g := NewGraph(&fakeCompiler{}, dir, nil)
		err := g.AddPipeline(PipelineSpec{Kind: bundle.PipelineCompute, Source: src, Stages: []Kind{Vertex}})
		if !errors.Is(err, bakeerr.ErrInvariantViolation) {
			t.Errorf("error = %v, want InvariantViolation", err)
		}
	})

	t.Run("compile failure", func(t *testing.T) {
		g := NewGraph(&fakeCompiler{fail: "fragment"}, filepath.Join(dir, "s1"), nil)
		if err := g.AddPipeline(PipelineSpec{Kind: bundle.PipelineMaterial, Source: src, Stages: []Kind{Vertex, Fragment}}); err != nil {
			t.Fatal(err)
		}
		err := g.Build(context.Background())
		if !errors.Is(err, bakeerr.ErrShaderCompile) {
			t.Errorf("error = %v, want ShaderCompileError", err)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		g := NewGraph(&fakeCompiler{}, filepath.Join(dir, "s2"), nil)
		if _, err := g.Add(filepath.Join(dir, "missing.glsl"), Vertex, nil); err != nil {
			t.Fatal(err)
		}
		if err := g.Build(context.Background()); !errors.Is(err, bakeerr.ErrIO) {
			t.Errorf("error = %v, want IoError", err)
		}
	})
}
