// bundletool is a CLI utility for inspecting baked resource and shader bundles.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/davecgh/go-spew/spew"

	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "dump":
		cmdDump(args)
	case "validate", "check":
		cmdValidate(args)
	case "shaders":
		cmdShaders(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bundletool - resource bundle utility

Usage:
  bundletool <command> [options]

Commands:
  info <file.render_bundle>              Show bundle summary
  dump [-data] [-depth N] <file>         Dump bundle structure
  validate <file.render_bundle>          Decode and check every invariant
  shaders <file.shader_bundle>           List shader pipelines

Examples:
  bundletool info sponza.render_bundle
  bundletool dump -depth 3 sponza.render_bundle
  bundletool shaders sponza.shader_bundle`)
}

func openBundle(path string) *bundle.Bundle {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	b, err := bundle.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return b
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bundletool info <file.render_bundle>")
		os.Exit(1)
	}
	b := openBundle(args[0])

	var bufferBytes, pixelBytes int
	for _, buf := range b.Buffers {
		bufferBytes += len(buf.Data)
	}
	formats := make(map[string]int)
	for _, img := range b.Images {
		pixelBytes += len(img.Pixels)
		formats[img.Format.String()+" "+img.ViewKind.String()]++
	}
	var clusters, instances, draws uint32
	for _, m := range b.Meshes {
		clusters += uint32(len(m.Clusters))
	}
	for _, bucket := range b.Buckets {
		for _, inst := range bucket.Instances {
			instances += inst.TotalInstanceCount
			draws += inst.TotalDrawCount
		}
	}

	fmt.Printf("Bundle:     %s\n", args[0])
	fmt.Printf("Buffers:    %d (%.2f MB)\n", len(b.Buffers), float64(bufferBytes)/(1024*1024))
	fmt.Printf("Meshes:     %d (%d clusters)\n", len(b.Meshes), clusters)
	fmt.Printf("Images:     %d (%.2f MB)\n", len(b.Images), float64(pixelBytes)/(1024*1024))
	fmt.Printf("Samplers:   %d\n", len(b.Samplers))
	fmt.Printf("Layouts:    %d\n", len(b.MaterialLayouts))
	fmt.Printf("Materials:  %d definitions, %d instances\n", len(b.Materials), len(b.MaterialInstances))
	fmt.Printf("Buckets:    %d (%d instances, %d cluster draws)\n", len(b.Buckets), instances, draws)
	fmt.Printf("Probes:     %d\n", len(b.EnvironmentProbes))
	if b.BrdfLUT.Valid {
		fmt.Printf("BRDF LUT:   image %d\n", b.BrdfLUT.Index)
	}

	if len(formats) > 0 {
		fmt.Println()
		fmt.Println("Images by format:")
		keys := make([]string, 0, len(formats))
		for k := range formats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-28s %d\n", k, formats[k])
		}
	}
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	data := fs.Bool("data", false, "Include pixel and buffer bytes")
	depth := fs.Int("depth", 0, "Maximum nesting depth (0 = unlimited)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bundletool dump [-data] [-depth N] <file.render_bundle>")
		os.Exit(1)
	}
	b := openBundle(fs.Arg(0))

	if !*data {
		for i := range b.Buffers {
			b.Buffers[i].Data = nil
		}
		for i := range b.Images {
			b.Images[i].Pixels = nil
		}
	}
	cfg := spew.ConfigState{Indent: "  ", MaxDepth: *depth, DisablePointerAddresses: true, SortKeys: true}
	cfg.Fdump(os.Stdout, b)
}

func cmdValidate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bundletool validate <file.render_bundle>")
		os.Exit(1)
	}
	// Decode validates every cross reference and structural invariant.
	b := openBundle(args[0])
	fmt.Printf("%s: ok (%d meshes, %d buckets)\n", args[0], len(b.Meshes), len(b.Buckets))
}

func cmdShaders(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bundletool shaders <file.shader_bundle>")
		os.Exit(1)
	}
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	s, err := bundle.DecodeShaders(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for i, p := range s.Pipelines {
		fmt.Printf("%4d  %-10s %s\n", i, p.Kind, p.Name)
		for slot, words := range p.Stages {
			if len(words) > 0 {
				fmt.Printf("        %-14s %6d words\n", stageName(p.Kind, slot), len(words))
			}
		}
	}
}

var stageNames = map[bundle.PipelineKind][5]string{
	bundle.PipelineMaterial:   {"vertex", "geometry", "tess_ctrl", "tess_eval", "fragment"},
	bundle.PipelineRayTracing: {"raygen", "closest_hit", "any_hit", "miss", "intersection"},
	bundle.PipelineCompute:    {"compute"},
}

func stageName(kind bundle.PipelineKind, slot int) string {
	if names, ok := stageNames[kind]; ok && names[slot] != "" {
		return names[slot]
	}
	return fmt.Sprintf("stage %d", slot)
}
