// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/tailscale/lockgen/overlay"
	"github.com/tailscale/lockgen/types/logger"
)

var overlayArgs struct {
	out  string
	dir  string
	tags string
}

func overlayCmd() *ffcli.Command {
	fs := newFlagSet("overlay")
	fs.StringVar(&overlayArgs.out, "o", "", "write the overlay JSON to this file instead of stdout")
	fs.StringVar(&overlayArgs.dir, "dir", "", "directory for rewritten copies (default from config, else the user cache dir)")
	fs.StringVar(&overlayArgs.tags, "tags", "", "comma-separated build tags used to load packages (default from config)")
	return &ffcli.Command{
		Name:       "overlay",
		ShortUsage: "lockgen overlay [flags] [packages]",
		ShortHelp:  "Write a go build -overlay file with rewritten copies",
		LongHelp: strings.TrimSpace(`
Overlay loads the named packages and their tests (default "."), writes a
rewritten copy of every file that carries a directive, and prints the JSON
overlay that makes the go command compile the copies instead:

  lockgen overlay -o overlay.json ./...
  go test -overlay=overlay.json ./...

Rewritten copies keep the original line numbers.
`),
		FlagSet: fs,
		Options: envOptions,
		Exec:    runOverlay,
	}
}

func runOverlay(ctx context.Context, patterns []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	dir := cmp.Or(overlayArgs.dir, e.cfg.GetOverlayDir())
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("no -dir given and no user cache dir: %w", err)
		}
		dir = filepath.Join(cache, "lockgen", "overlay")
	}
	tags := e.cfg.Parsed.Tags
	if overlayArgs.tags != "" {
		tags = strings.Split(overlayArgs.tags, ",")
	}
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	b := &overlay.Builder{
		Fs:        Fs,
		Dir:       dir,
		Directive: e.directive,
		Exclude:   e.cfg.Excluded,
		Logf:      logger.WithPrefix(e.logf, "overlay: "),
	}
	ov, err := b.Build(ctx, overlay.LoadConfig{Tags: tags}, patterns...)
	if err != nil {
		return err
	}
	if overlayArgs.out == "" {
		if err := ov.Write(Stdout); err != nil {
			return err
		}
		outln()
		return nil
	}
	return ov.WriteFile(Fs, overlayArgs.out)
}
