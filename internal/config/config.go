// Package config handles import tool configuration loading and management.
package config

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Config holds all import settings.
type Config struct {
	Import      ImportConfig      `yaml:"import"`
	Tools       ToolsConfig       `yaml:"tools"`
	Shaders     ShadersConfig     `yaml:"shaders"`
	Environment EnvironmentConfig `yaml:"environment"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ImportConfig holds the input scene and output bundle paths.
type ImportConfig struct {
	Input            string `yaml:"input"`
	TempFolder       string `yaml:"temp_folder"` // defaults to <input dir>/.bake
	Output           string `yaml:"output"`      // defaults to input with .render_bundle extension
	CompressionLevel uint32 `yaml:"compression_level"`
}

// ToolsConfig holds the external tool locations.
type ToolsConfig struct {
	Texconv   string `yaml:"texconv"`
	Glslc     string `yaml:"glslc"`
	TargetEnv string `yaml:"target_env"`
}

// DefineConfig is one shader preprocessor definition.
type DefineConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// PipelineConfig declares a global pipeline compiled alongside the materials.
type PipelineConfig struct {
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind"` // material, raytracing or compute
	Source  string         `yaml:"source"`
	Stages  []string       `yaml:"stages"`
	Defines []DefineConfig `yaml:"defines"`
}

// ShadersConfig holds shader sources.
type ShadersConfig struct {
	Material  string           `yaml:"material"` // source compiled once per material definition
	Defines   []DefineConfig   `yaml:"defines"`  // appended to every material definition
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// ProbeConfig names the images of one environment probe.
type ProbeConfig struct {
	Skybox string `yaml:"skybox"`
	Iem    string `yaml:"iem"`
	Pmrem  string `yaml:"pmrem"`
}

// BRDFConfig controls the BRDF lookup table bake.
type BRDFConfig struct {
	Enabled  bool `yaml:"enabled"`
	Size     int  `yaml:"size"`
	Samples  int  `yaml:"samples"`
	TileSize int  `yaml:"tile_size"`
	Workers  int  `yaml:"workers"`
}

// EnvironmentConfig holds image based lighting inputs.
type EnvironmentConfig struct {
	Probes []ProbeConfig `yaml:"probes"`
	BRDF   BRDFConfig    `yaml:"brdf"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	texconv := "texconv"
	if runtime.GOOS == "windows" {
		texconv = "texconv.exe"
	}
	return &Config{
		Import: ImportConfig{
			CompressionLevel: 9,
		},
		Tools: ToolsConfig{
			Texconv:   texconv,
			Glslc:     "glslc",
			TargetEnv: "vulkan1.2",
		},
		Shaders: ShadersConfig{
			Material: "shaders/material.glsl",
		},
		Environment: EnvironmentConfig{
			BRDF: BRDFConfig{
				Enabled:  true,
				Size:     256,
				Samples:  1024,
				TileSize: 32,
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Resolve fills the paths derived from the input.
func (c *Config) Resolve() {
	if c.Import.Input == "" {
		return
	}
	if c.Import.TempFolder == "" {
		c.Import.TempFolder = filepath.Join(filepath.Dir(c.Import.Input), ".bake")
	}
	if c.Import.Output == "" {
		c.Import.Output = strings.TrimSuffix(c.Import.Input, filepath.Ext(c.Import.Input)) + ".render_bundle"
	}
}

// ShaderBundlePath returns where the shader bundle accompanying output goes.
func ShaderBundlePath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".shader_bundle"
}
