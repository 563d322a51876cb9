package importer

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
	"github.com/bazhenovc/malwerks-sub001/pkg/bundle"
)

// writeBundles encodes both bundles next to their final paths and renames
// them into place only once both encoded. A failed bundle rename restores
// the previous shader bundle so the pair never goes out of step.
func writeBundles(res *Result, output, shaderPath string, level uint32) (err error) {
	bundleTmp, err := writeTemp(output, func(w *bufio.Writer) error {
		return bundle.Encode(w, res.Bundle, level)
	})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(bundleTmp)
		}
	}()

	shaderTmp, err := writeTemp(shaderPath, func(w *bufio.Writer) error {
		return bundle.EncodeShaders(w, res.Shaders)
	})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(shaderTmp)
		}
	}()

	undo, keep, err := install(shaderTmp, shaderPath)
	if err != nil {
		return err
	}
	if err := os.Rename(bundleTmp, output); err != nil {
		undo()
		return bakeerr.Wrap(bakeerr.KindIO, err, "renaming %s", output)
	}
	keep()
	return nil
}

// install renames tmp over path, moving any previous file aside. undo puts
// the previous file back (or removes path when there was none) and keep
// discards it.
func install(tmp, path string) (undo, keep func(), err error) {
	var backup string
	if _, err := os.Lstat(path); err == nil {
		backup = tmp + ".prev"
		if err := os.Rename(path, backup); err != nil {
			return nil, nil, bakeerr.Wrap(bakeerr.KindIO, err, "moving aside %s", path)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		if backup != "" {
			os.Rename(backup, path)
		}
		return nil, nil, bakeerr.Wrap(bakeerr.KindIO, err, "renaming %s", path)
	}
	undo = func() {
		if backup != "" {
			os.Rename(backup, path)
		} else {
			os.Remove(path)
		}
	}
	keep = func() {
		if backup != "" {
			os.Remove(backup)
		}
	}
	return undo, keep, nil
}

// writeTemp writes a sibling temp file of path and returns its name.
func writeTemp(path string, encode func(*bufio.Writer) error) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "creating %s", dir)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "creating temp file for %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := encode(w); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrapf(err, "encoding %s", filepath.Base(path))
	}
	if err := w.Flush(); err != nil {
		os.Remove(f.Name())
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "writing %s", f.Name())
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", bakeerr.Wrap(bakeerr.KindIO, err, "closing %s", f.Name())
	}
	return f.Name(), nil
}
