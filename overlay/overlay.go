// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package overlay builds the file overlay that makes the go command compile
// rewritten copies of annotated source files in place of the originals:
//
//	lockgen overlay -o overlay.json ./...
//	go test -overlay=overlay.json ./...
//
// Copies are rewritten in [rewrite.Inline] style, so line numbers in panics,
// test failures and coverage still refer to the original files.
package overlay

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/tailscale/lockgen/atomicfile"
	"github.com/tailscale/lockgen/rewrite"
	"github.com/tailscale/lockgen/types/logger"
)

// Overlay is the JSON document accepted by the go command's -overlay flag.
type Overlay struct {
	// Replace maps the absolute path of each original file to the path of
	// the file to compile instead.
	Replace map[string]string
}

// Write writes o as indented JSON with sorted keys.
func (o *Overlay) Write(w io.Writer) error {
	return jsonv2.MarshalWrite(w, o, jsonv2.Deterministic(true), jsontext.WithIndent("\t"))
}

// WriteFile atomically writes o to path in afs.
func (o *Overlay) WriteFile(afs afero.Fs, path string) error {
	var sb strings.Builder
	if err := o.Write(&sb); err != nil {
		return err
	}
	sb.WriteString("\n")
	return atomicfile.WriteFile(afs, path, []byte(sb.String()), 0644)
}

// Builder rewrites annotated files into a cache directory.
type Builder struct {
	// Fs is where sources are read and copies written. If nil, the OS
	// filesystem is used.
	Fs afero.Fs

	// Dir is the directory rewritten copies are written to. It is created
	// if needed.
	Dir string

	// Directive is the directive name. If empty,
	// rewrite.DefaultDirective is used.
	Directive string

	// Exclude, if non-nil, reports files that must be left alone.
	Exclude func(path string) bool

	// Logf, if non-nil, receives one line per rewritten file.
	Logf logger.Logf
}

func (b *Builder) fs() afero.Fs {
	if b.Fs == nil {
		return afero.NewOsFs()
	}
	return b.Fs
}

// LoadConfig selects the packages Build loads.
type LoadConfig struct {
	Dir  string   // directory the patterns are resolved in; "" means the current one
	Tags []string // build tags
	Env  []string // environment for the go command; nil means os.Environ
}

// Build loads the packages matching patterns, including their tests, and
// rewrites every file in them that carries a directive.
func (b *Builder) Build(ctx context.Context, lc LoadConfig, patterns ...string) (*Overlay, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedFiles,
		Tests:   true,
		Dir:     lc.Dir,
		Env:     lc.Env,
	}
	if len(lc.Tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(lc.Tags, ",")}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("packages.Load: %w", err)
	}
	var (
		files []string
		errs  []error
	)
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		if strings.HasSuffix(pkg.ID, ".test") {
			// Generated test main.
			continue
		}
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Errorf("%s: %v", pkg.PkgPath, e))
		}
		for _, f := range pkg.GoFiles {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return b.BuildFiles(ctx, files)
}

// BuildFiles rewrites those of files that carry a directive. Files without
// one are not part of the returned Overlay. Files are processed in
// parallel; all failures are reported, joined, and no Overlay is returned.
func (b *Builder) BuildFiles(ctx context.Context, files []string) (*Overlay, error) {
	if b.Dir == "" {
		return nil, errors.New("overlay: no output directory")
	}
	afs := b.fs()
	if err := afs.MkdirAll(b.Dir, 0755); err != nil {
		return nil, err
	}
	logf := logger.OrDiscard(b.Logf)
	opts := &rewrite.Options{Directive: b.Directive, Style: rewrite.Inline}

	var (
		mu   sync.Mutex
		ov   = &Overlay{Replace: make(map[string]string)}
		errs []fileError
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, file := range files {
		if b.Exclude != nil && b.Exclude(file) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst, n, err := b.buildFile(afs, file, opts)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fileError{file, err})
			case n > 0:
				ov.Replace[file] = dst
				logf("%s: %d functions -> %s", file, n, dst)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		slices.SortFunc(errs, func(a, b fileError) int { return cmp.Compare(a.file, b.file) })
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e.err
		}
		return nil, errors.Join(joined...)
	}
	return ov, nil
}

type fileError struct {
	file string
	err  error
}

func (b *Builder) buildFile(afs afero.Fs, file string, opts *rewrite.Options) (dst string, n int, err error) {
	src, err := afero.ReadFile(afs, file)
	if err != nil {
		return "", 0, err
	}
	if !rewrite.HasDirective(src, opts.Directive) {
		return "", 0, nil
	}
	out, n, err := rewrite.Source(file, src, opts)
	if err != nil || n == 0 {
		return "", 0, err
	}
	dst = CopyPath(b.Dir, file)
	if err := atomicfile.WriteFile(afs, dst, out, 0644); err != nil {
		return "", 0, err
	}
	return dst, n, nil
}

// CopyPath returns where the rewritten copy of file is stored in dir. The
// copy keeps file's base name, so _test.go files remain test files.
func CopyPath(dir, file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+"-"+filepath.Base(file))
}
