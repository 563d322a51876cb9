package shader

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// Node is one (source, output) pair of the build graph.
type Node struct {
	Source string
	Output string
	Kind   Kind
	Macros []bundle.MacroDefinition

	words []uint32
}

// Words returns the SPIR-V of the node after a successful Build.
func (n *Node) Words() []uint32 {
	return n.words
}

// PipelineSpec requests one pipeline whose stages all come from Source,
// each compiled with the stage macro plus Defines.
type PipelineSpec struct {
	Kind    bundle.PipelineKind
	Name    string
	Source  string
	Stages  []Kind
	Defines []bundle.MacroDefinition
}

type pipeline struct {
	kind  bundle.PipelineKind
	name  string
	slots [5]int // node index + 1, 0 when the slot is empty
}

// Graph is an incremental shader build. An output is up to date while its
// mtime is not older than the source mtime.
type Graph struct {
	compiler Compiler
	scratch  string
	log      *zap.Logger

	nodes     []*Node
	byOutput  map[string]int
	pipelines []pipeline

	compiled int
	reused   int
}

// NewGraph returns an empty graph writing SPIR-V under scratchDir/shaders.
func NewGraph(c Compiler, scratchDir string, log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{
		compiler: c,
		scratch:  scratchDir,
		log:      log,
		byOutput: make(map[string]int),
	}
}

// Nodes returns the graph nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Stats returns how many nodes were compiled and how many were up to date
// in the last Build.
func (g *Graph) Stats() (compiled, reused int) {
	return g.compiled, g.reused
}

// OutputPath is where the SPIR-V for source, kind and macros is written.
func (g *Graph) OutputPath(source string, kind Kind, macros []bundle.MacroDefinition) string {
	h := fnv.New32a()
	h.Write([]byte(source))
	for _, m := range macros {
		h.Write([]byte{0})
		h.Write([]byte(m.Name))
		h.Write([]byte{'='})
		h.Write([]byte(m.Value))
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	name := base + "." + kind.String() + "." + strconv.FormatUint(uint64(h.Sum32()), 16) + ".spv"
	return filepath.Join(g.scratch, "shaders", name)
}

// Add registers a compilation and returns its node index. The stage macro
// is defined ahead of macros. Identical requests share one node.
func (g *Graph) Add(source string, kind Kind, macros []bundle.MacroDefinition) (int, error) {
	if !kind.valid() {
		return 0, bakeerr.New(bakeerr.KindInvariantViolation, "shader %s: invalid stage %d", source, int(kind))
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return 0, bakeerr.Wrap(bakeerr.KindIO, err, "resolving %s", source)
	}
	all := make([]bundle.MacroDefinition, 0, len(macros)+1)
	all = append(all, bundle.MacroDefinition{Name: kind.Macro(), Value: "1"})
	all = append(all, macros...)

	out := g.OutputPath(abs, kind, all)
	if i, ok := g.byOutput[out]; ok {
		return i, nil
	}
	g.nodes = append(g.nodes, &Node{Source: abs, Output: out, Kind: kind, Macros: all})
	g.byOutput[out] = len(g.nodes) - 1
	return len(g.nodes) - 1, nil
}

func stageSlot(pk bundle.PipelineKind, k Kind) (int, bool) {
	switch pk {
	case bundle.PipelineMaterial:
		switch k {
		case Vertex:
			return bundle.StageVertex, true
		case Geometry:
			return bundle.StageGeometry, true
		case TessControl:
			return bundle.StageTessControl, true
		case TessEval:
			return bundle.StageTessEval, true
		case Fragment:
			return bundle.StageFragment, true
		}
	case bundle.PipelineRayTracing:
		switch k {
		case RayGen:
			return bundle.StageRayGen, true
		case RayClosestHit:
			return bundle.StageClosestHit, true
		case RayAnyHit:
			return bundle.StageAnyHit, true
		case RayMiss:
			return bundle.StageMiss, true
		case Intersection:
			return bundle.StageIntersection, true
		}
	case bundle.PipelineCompute:
		if k == Compute {
			return bundle.StageCompute, true
		}
	}
	return 0, false
}

// AddPipeline registers every stage of spec and remembers the pipeline for
// Pipelines. Pipelines are emitted in the order they were added.
func (g *Graph) AddPipeline(spec PipelineSpec) error {
	p := pipeline{kind: spec.Kind, name: spec.Name}
	for _, k := range spec.Stages {
		slot, ok := stageSlot(spec.Kind, k)
		if !ok {
			return bakeerr.New(bakeerr.KindInvariantViolation, "pipeline %s: %s stage in %s pipeline", spec.Name, k, spec.Kind)
		}
		if p.slots[slot] != 0 {
			return bakeerr.New(bakeerr.KindInvariantViolation, "pipeline %s: duplicate %s stage", spec.Name, k)
		}
		node, err := g.Add(spec.Source, k, spec.Defines)
		if err != nil {
			return err
		}
		p.slots[slot] = node + 1
	}
	g.pipelines = append(g.pipelines, p)
	return nil
}

// Build compiles every stale node and loads all outputs. The first failure
// aborts the build.
func (g *Graph) Build(ctx context.Context) error {
	g.compiled, g.reused = 0, 0
	for _, n := range g.nodes {
		if err := g.buildNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) buildNode(ctx context.Context, n *Node) error {
	srcInfo, err := os.Stat(n.Source)
	if err != nil {
		return bakeerr.Wrap(bakeerr.KindIO, err, "stat %s", n.Source)
	}
	outInfo, err := os.Stat(n.Output)
	switch {
	case err == nil && !srcInfo.ModTime().After(outInfo.ModTime()):
		g.reused++
		g.log.Debug("shader up to date", zap.String("output", filepath.Base(n.Output)))
	case err == nil || errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(n.Output), 0o755); err != nil {
			return bakeerr.Wrap(bakeerr.KindIO, err, "creating %s", filepath.Dir(n.Output))
		}
		g.log.Info("compiling shader", zap.String("source", filepath.Base(n.Source)), zap.Stringer("stage", n.Kind))
		req := CompileRequest{Source: n.Source, Output: n.Output, Kind: n.Kind, Macros: n.Macros}
		if err := g.compiler.Compile(ctx, req); err != nil {
			if bakeerr.KindOf(err) == bakeerr.KindUnknown {
				err = bakeerr.Wrap(bakeerr.KindShaderCompile, err, "%s (%s)", filepath.Base(n.Source), n.Kind)
			}
			return err
		}
		g.compiled++
	default:
		return bakeerr.Wrap(bakeerr.KindIO, err, "stat %s", n.Output)
	}

	words, err := LoadSPIRV(n.Output)
	if err != nil {
		return bakeerr.Wrap(bakeerr.KindShaderCompile, err, "loading %s", filepath.Base(n.Output))
	}
	n.words = words
	return nil
}

// Pipelines assembles the registered pipelines from the built nodes.
func (g *Graph) Pipelines() []bundle.ShaderPipeline {
	var out []bundle.ShaderPipeline
	for _, p := range g.pipelines {
		sp := bundle.ShaderPipeline{Kind: p.kind, Name: p.name}
		for slot, node := range p.slots {
			if node != 0 {
				sp.Stages[slot] = g.nodes[node-1].words
			}
		}
		out = append(out, sp)
	}
	return out
}
