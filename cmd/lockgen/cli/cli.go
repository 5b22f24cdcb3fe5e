// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package cli contains the cmd/lockgen CLI code.
package cli

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/spf13/afero"

	"github.com/tailscale/lockgen/lockconf"
	"github.com/tailscale/lockgen/rewrite"
	"github.com/tailscale/lockgen/types/logger"
)

// Standard streams and the filesystem used by the CLI. Tests replace them.
var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	// Fs is used for all file access. Directory trees on the OS
	// filesystem are walked with fastwalk; any other Fs is walked with
	// afero.Walk.
	Fs afero.Fs = afero.NewOsFs()
)

func errf(format string, a ...any) {
	fmt.Fprintf(Stderr, format, a...)
}

func outln(a ...any) {
	fmt.Fprintln(Stdout, a...)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(Stderr)
	return fs
}

// envOptions lets every flag be set from a LOCKGEN_ environment variable,
// e.g. LOCKGEN_CONFIG or LOCKGEN_DIRECTIVE.
var envOptions = []ff.Option{ff.WithEnvVarPrefix("LOCKGEN")}

var rootArgs struct {
	config    string
	verbose   bool
	directive string
}

// Run runs the CLI. The args do not include the binary name.
func Run(args []string) error {
	rootfs := newFlagSet("lockgen")
	rootfs.StringVar(&rootArgs.config, "config", "", "HuJSON config file (default "+lockconf.DefaultFile+" if present)")
	rootfs.BoolVar(&rootArgs.verbose, "v", false, "verbose logging to stderr")
	rootfs.StringVar(&rootArgs.directive, "directive", "", "directive name without the leading // (default "+rewrite.DefaultDirective+")")

	rootCmd := &ffcli.Command{
		Name:       "lockgen",
		ShortUsage: "lockgen [flags] <subcommand> [command flags]",
		ShortHelp:  "Serialize functions that share a lock.",
		LongHelp: strings.TrimSpace(`
lockgen rewrites functions whose doc comment carries a directive

  //lockgen:exclusive dbLock

so that their body starts with

  defer dbLock.Acquire().Release()

and functions naming the same lock never run at the same time.

For help on subcommands, add --help after: "lockgen rewrite --help".
`),
		Subcommands: []*ffcli.Command{
			rewriteCmd(),
			overlayCmd(),
		},
		FlagSet:   rootfs,
		Options:   envOptions,
		Exec:      func(context.Context, []string) error { return flag.ErrHelp },
		UsageFunc: usageFunc,
	}
	for _, c := range rootCmd.Subcommands {
		if c.UsageFunc == nil {
			c.UsageFunc = usageFunc
		}
	}

	if err := rootCmd.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	err := rootCmd.Run(context.Background())
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

// env is the configuration shared by all subcommands, resolved from the
// root flags and the config file.
type env struct {
	cfg       lockconf.Config
	directive string
	logf      logger.Logf
}

func loadEnv() (*env, error) {
	cfg, err := lockconf.LoadFile(Fs, rootArgs.config)
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg:       cfg,
		directive: cmp.Or(rootArgs.directive, cfg.GetDirective(), rewrite.DefaultDirective),
		logf:      logger.Discard,
	}
	if strings.HasPrefix(e.directive, "/") || strings.ContainsAny(e.directive, " \t\n") {
		return nil, fmt.Errorf("bad directive %q; want a name like %q without the leading //", e.directive, rewrite.DefaultDirective)
	}
	if rootArgs.verbose {
		log.SetFlags(0)
		log.SetPrefix("lockgen: ")
		log.SetOutput(Stderr)
		e.logf = log.Printf
	}
	return e, nil
}

func usageFunc(c *ffcli.Command) string {
	var b strings.Builder

	fmt.Fprintf(&b, "USAGE\n")
	if c.ShortUsage != "" {
		fmt.Fprintf(&b, "  %s\n", c.ShortUsage)
	} else {
		fmt.Fprintf(&b, "  %s\n", c.Name)
	}
	fmt.Fprintf(&b, "\n")

	if c.LongHelp != "" {
		fmt.Fprintf(&b, "%s\n\n", c.LongHelp)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(&b, "SUBCOMMANDS\n")
		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		for _, subcommand := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", subcommand.Name, subcommand.ShortHelp)
		}
		tw.Flush()
		fmt.Fprintf(&b, "\n")
	}

	if countFlags(c.FlagSet) > 0 {
		fmt.Fprintf(&b, "FLAGS\n")
		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		c.FlagSet.VisitAll(func(f *flag.Flag) {
			name, usage := flag.UnquoteUsage(f)
			s := fmt.Sprintf("  -%s", f.Name)
			if !isBoolFlag(f) && len(name) > 0 {
				s += " " + name
			}
			// Four spaces before the tab triggers good alignment
			// for both 4- and 8-space tab stops.
			s += "\n    \t"
			s += strings.ReplaceAll(usage, "\n", "\n    \t")
			if f.DefValue != "" && f.DefValue != "false" {
				s += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			fmt.Fprintln(tw, s)
		})
		tw.Flush()
		fmt.Fprintf(&b, "\n")
	}

	return strings.TrimSpace(b.String())
}

func isBoolFlag(f *flag.Flag) bool {
	bf, ok := f.Value.(interface {
		IsBoolFlag() bool
	})
	return ok && bf.IsBoolFlag()
}

func countFlags(fs *flag.FlagSet) (n int) {
	fs.VisitAll(func(*flag.Flag) { n++ })
	return n
}
