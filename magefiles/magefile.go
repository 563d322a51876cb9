//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build.All

const binDir = "bin"

var tools = []string{"importer", "bundletool"}

type Build mg.Namespace

// Builds every command into bin/.
func (Build) All() error {
	for _, tool := range tools {
		if err := goBuild(tool); err != nil {
			return err
		}
	}
	return nil
}

// Builds the scene importer.
func (Build) Importer() error {
	return goBuild("importer")
}

// Builds the bundle inspection tool.
func (Build) Bundletool() error {
	return goBuild("bundletool")
}

func goBuild(tool string) error {
	out := filepath.Join(binDir, tool)
	if isWindows() {
		out += ".exe"
	}
	fmt.Printf("Building %s...\n", out)
	return sh.RunV("go", "build", "-o", out, "./cmd/"+tool)
}

// Runs vet and the unit tests.
func Test() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	args := []string{"test", "./..."}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	return sh.RunV("go", args...)
}

// Bakes a scene. Usage: mage bake scenes/sponza.gltf
func Bake(input string) error {
	mg.Deps(Build.Importer)
	args := []string{"-input", input}
	if cfg := os.Getenv("BAKE_CONFIG"); cfg != "" {
		args = append(args, "-config", cfg)
	}
	if mg.Verbose() {
		args = append(args, "-debug")
	}
	return sh.RunV(filepath.Join(binDir, exe("importer")), args...)
}

// Prints a summary of a baked bundle.
func Info(bundle string) error {
	mg.Deps(Build.Bundletool)
	return sh.RunV(filepath.Join(binDir, exe("bundletool")), "info", bundle)
}

// Removes build output and every default .bake scratch directory.
func Clean() error {
	if err := sh.Rm(binDir); err != nil {
		return err
	}
	return filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && (strings.HasPrefix(path, "_") || path == ".git") {
			return filepath.SkipDir
		}
		if d.IsDir() && d.Name() == ".bake" {
			fmt.Printf("Removing %s\n", path)
			if err := sh.Rm(path); err != nil {
				return err
			}
			return filepath.SkipDir
		}
		return nil
	})
}

func exe(name string) string {
	if isWindows() {
		return name + ".exe"
	}
	return name
}

func isWindows() bool {
	return os.PathSeparator == '\\'
}
