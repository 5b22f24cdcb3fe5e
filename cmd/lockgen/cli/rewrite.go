// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/tailscale/lockgen/atomicfile"
	"github.com/tailscale/lockgen/rewrite"
	"github.com/tailscale/lockgen/types/logger"
)

type rewriteArgs struct {
	write bool // -w
	list  bool // -l
	diff  bool // -d
	keep  bool // -keep
}

func rewriteCmd() *ffcli.Command {
	var args rewriteArgs
	fs := newFlagSet("rewrite")
	fs.BoolVar(&args.write, "w", false, "write result to (source) file instead of stdout")
	fs.BoolVar(&args.list, "l", false, "list files whose rewritten form differs from the original")
	fs.BoolVar(&args.diff, "d", false, "display diffs instead of rewriting files")
	fs.BoolVar(&args.keep, "keep", false, "keep the directive comments in the output")
	return &ffcli.Command{
		Name:       "rewrite",
		ShortUsage: "lockgen rewrite [flags] [path ...]",
		ShortHelp:  "Rewrite annotated functions in Go source files",
		LongHelp: strings.TrimSpace(`
Rewrite reads the named Go files, or all Go files in the named directories,
and inserts a lock acquisition at the top of every annotated function. With
no paths it reads standard input and writes standard output.

Directories are walked recursively, skipping vendor, testdata, and names
starting with "." or "_". Files matching the Exclude patterns of the config
file are skipped too.

A file with any invalid directive is left alone and its errors are printed.
`),
		FlagSet: fs,
		Options: envOptions,
		Exec: func(ctx context.Context, paths []string) error {
			return runRewrite(ctx, args, paths)
		},
	}
}

func runRewrite(ctx context.Context, args rewriteArgs, paths []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	opts := &rewrite.Options{Directive: e.directive, KeepDirective: args.keep}
	logf := logger.WithPrefix(e.logf, "rewrite: ")

	if len(paths) == 0 {
		if args.write {
			return errors.New("cannot use -w with standard input")
		}
		src, err := io.ReadAll(Stdin)
		if err != nil {
			return err
		}
		r := rewriteFile("<standard input>", src, opts)
		if r.err != nil {
			return r.err
		}
		return report(args, r, logf)
	}

	files, err := goFiles(paths, e.cfg.Excluded)
	if err != nil {
		return err
	}
	results := make([]result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := afero.ReadFile(Fs, file)
			if err != nil {
				results[i] = result{path: file, err: err}
				return nil
			}
			results[i] = rewriteFile(file, src, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if err := report(args, r, logf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// result is the outcome of rewriting one file.
type result struct {
	path string
	src  []byte
	out  []byte
	n    int // functions rewritten
	err  error
}

func (r result) changed() bool { return !bytes.Equal(r.src, r.out) }

func rewriteFile(path string, src []byte, opts *rewrite.Options) result {
	out, n, err := rewrite.Source(path, src, opts)
	return result{path: path, src: src, out: out, n: n, err: err}
}

// report emits r the way the -l, -d and -w flags ask for. Without any of
// them the rewritten source is written to Stdout.
func report(args rewriteArgs, r result, logf logger.Logf) error {
	if r.n > 0 {
		logf("%s: %d functions", r.path, r.n)
	}
	if !args.list && !args.diff && !args.write {
		_, err := Stdout.Write(r.out)
		return err
	}
	if !r.changed() {
		return nil
	}
	if args.list {
		outln(r.path)
	}
	if args.diff {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(r.src)),
			B:        difflib.SplitLines(string(r.out)),
			FromFile: r.path + ".orig",
			ToFile:   r.path,
			Context:  3,
		})
		if err != nil {
			return fmt.Errorf("%s: computing diff: %w", r.path, err)
		}
		fmt.Fprint(Stdout, diff)
	}
	if args.write {
		fi, err := Fs.Stat(r.path)
		if err != nil {
			return err
		}
		if err := atomicfile.WriteFile(Fs, r.path, r.out, fi.Mode().Perm()); err != nil {
			return fmt.Errorf("%s: %w", r.path, err)
		}
	}
	return nil
}
