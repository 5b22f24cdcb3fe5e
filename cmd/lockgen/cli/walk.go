// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/afero"
)

// goFiles expands paths into the Go files to rewrite. Files named
// explicitly are always included; directories are walked for *.go files,
// skipping vendor, testdata and directories whose name starts with "." or
// "_", and files matched by exclude.
func goFiles(paths []string, exclude func(string) bool) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)
	for _, root := range paths {
		fi, err := Fs.Stat(root)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, root)
			continue
		}
		visit := func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && skipDir(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !strings.HasSuffix(name, ".go") || strings.HasPrefix(name, ".") {
				return nil
			}
			if exclude != nil && exclude(path) {
				return nil
			}
			mu.Lock()
			files = append(files, path)
			mu.Unlock()
			return nil
		}
		if _, ok := Fs.(*afero.OsFs); ok {
			err = fastwalk.Walk(&fastwalk.Config{}, root, visit)
		} else {
			err = afero.Walk(Fs, root, func(path string, fi fs.FileInfo, err error) error {
				if err != nil {
					return err
				}
				return visit(path, fs.FileInfoToDirEntry(fi), nil)
			})
		}
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
