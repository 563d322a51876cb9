package shader

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bazhenovc/malwerks-sub001/internal/toolexec"
	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// DefaultTargetEnv is the Vulkan environment shaders are compiled for.
const DefaultTargetEnv = "vulkan1.2"

// CompileRequest describes one GLSL to SPIR-V compilation.
type CompileRequest struct {
	Source string
	Output string
	Kind   Kind
	Macros []bundle.MacroDefinition
}

// Compiler turns one GLSL source into one SPIR-V file.
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) error
}

// GlslcCompiler runs the shaderc glslc front end with full optimization and
// warnings treated as errors.
type GlslcCompiler struct {
	Path      string
	TargetEnv string
	Log       *zap.Logger
}

// Args returns the glslc command line for req.
func (c *GlslcCompiler) Args(req CompileRequest) []string {
	env := c.TargetEnv
	if env == "" {
		env = DefaultTargetEnv
	}
	args := []string{
		"-x", "glsl",
		"-fshader-stage=" + req.Kind.String(),
		"--target-env=" + env,
		"-O",
		"-Werror",
	}
	for _, m := range req.Macros {
		if m.Value == "" {
			args = append(args, "-D"+m.Name)
		} else {
			args = append(args, "-D"+m.Name+"="+m.Value)
		}
	}
	return append(args, "-o", req.Output, req.Source)
}

func (c *GlslcCompiler) Compile(ctx context.Context, req CompileRequest) error {
	path := c.Path
	if path == "" {
		path = "glslc"
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := toolexec.Run(ctx, path, toolexec.WithArgs(c.Args(req)...), toolexec.WithLogger(log)); err != nil {
		return bakeerr.Wrap(bakeerr.KindShaderCompile, err, "%s (%s)", filepath.Base(req.Source), req.Kind)
	}
	return nil
}
