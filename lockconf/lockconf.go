// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package lockconf loads the lockgen.hujson project config file.
//
// The file is HuJSON (JSON with comments and trailing commas):
//
//	{
//		"Version": "v1alpha1",
//		"Directive": "lockgen:exclusive",
//		"Tags": ["integration"],
//		"OverlayDir": ".lockgen",
//		"Exclude": ["gen_*.go"],
//	}
package lockconf

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/spf13/afero"
	"github.com/tailscale/hujson"
)

// DefaultFile is the config file name looked up in the current directory
// when none is given explicitly.
const DefaultFile = "lockgen.hujson"

const v1Alpha1 = "v1alpha1"

// Config describes a config file.
type Config struct {
	Raw     []byte // raw bytes, in HuJSON form
	Std     []byte // standardized JSON form
	Version string // "v1alpha1"

	// Parsed is the parsed config, converted from its raw bytes version to the
	// latest known format.
	Parsed ConfigV1Alpha1
}

// VersionedConfig allows specifying config at the root of the object, or in
// a versioned sub-object.
// e.g. {"Version": "v1alpha1", "Tags": ["integration"]}
// or {"Version": "v1beta1", "V1Alpha1": {"Tags": ["integration"]}}
type VersionedConfig struct {
	Version string `json:",omitempty"` // "v1alpha1"

	// Latest version of the config.
	*ConfigV1Alpha1 `json:",inline"`

	// Backwards compatibility version(s) of the config. Fields and sub-fields
	// from here should only be added to, never changed in place.
	V1Alpha1 *ConfigV1Alpha1 `json:",omitempty"`
}

type ConfigV1Alpha1 struct {
	Directive  *string  `json:",omitempty"` // directive name without "//"; defaults to "lockgen:exclusive"
	Tags       []string `json:",omitempty"` // build tags used when loading packages for an overlay
	OverlayDir *string  `json:",omitempty"` // where overlay copies are written; defaults to the user cache dir
	Exclude    []string `json:",omitempty"` // base-name globs of files never rewritten, e.g. "gen_*.go"
}

// Load parses raw, the contents of a config file.
func Load(raw []byte) (c Config, err error) {
	c.Raw = raw
	c.Std, err = hujson.Standardize(c.Raw)
	if err != nil {
		return c, fmt.Errorf("error parsing config as HuJSON/JSON: %w", err)
	}
	var ver VersionedConfig
	if err := jsonv2.Unmarshal(c.Std, &ver, jsonv2.MatchCaseInsensitiveNames(true)); err != nil {
		return c, fmt.Errorf("error parsing config: %w", err)
	}
	rootV1Alpha1 := (ver.Version == v1Alpha1)
	backCompatV1Alpha1 := (ver.V1Alpha1 != nil)
	switch {
	case ver.Version == "":
		return c, errors.New("error parsing config: no \"Version\" field provided")
	case rootV1Alpha1 && backCompatV1Alpha1:
		// Exactly one of these should be set.
		return c, errors.New("error parsing config: both root and V1Alpha1 config provided")
	case rootV1Alpha1 != backCompatV1Alpha1:
		c.Version = v1Alpha1
		switch {
		case rootV1Alpha1 && ver.ConfigV1Alpha1 != nil:
			c.Parsed = *ver.ConfigV1Alpha1
		case backCompatV1Alpha1:
			c.Parsed = *ver.V1Alpha1
		default:
			c.Parsed = ConfigV1Alpha1{}
		}
	default:
		return c, fmt.Errorf("error parsing config: unsupported \"Version\" value %q; want %q", ver.Version, v1Alpha1)
	}

	for _, pat := range c.Parsed.Exclude {
		if _, err := filepath.Match(pat, ""); err != nil {
			return c, fmt.Errorf("error parsing config: bad Exclude pattern %q: %w", pat, err)
		}
	}
	if d := c.Parsed.Directive; d != nil && (*d == "" || strings.HasPrefix(*d, "/") || strings.ContainsAny(*d, " \t\n")) {
		return c, fmt.Errorf("error parsing config: bad Directive %q; want a name like \"lockgen:exclusive\" without the leading //", *d)
	}
	return c, nil
}

// LoadFile reads and parses the config file at path in afs.
//
// If path is empty, DefaultFile is used if it exists, and the zero Config
// is returned if it does not.
func LoadFile(afs afero.Fs, path string) (Config, error) {
	optional := path == ""
	if optional {
		path = DefaultFile
	}
	raw, err := afero.ReadFile(afs, path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("error reading config file %q: %w", path, err)
	}
	c, err := Load(raw)
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// GetDirective returns the configured directive name, or "" for the
// default.
func (c *Config) GetDirective() string {
	if c.Parsed.Directive == nil {
		return ""
	}
	return *c.Parsed.Directive
}

// GetOverlayDir returns the configured overlay directory, or "" for the
// default.
func (c *Config) GetOverlayDir() string {
	if c.Parsed.OverlayDir == nil {
		return ""
	}
	return *c.Parsed.OverlayDir
}

// Excluded reports whether the file at path matches one of the Exclude
// patterns. Patterns match the base name only.
func (c *Config) Excluded(path string) bool {
	base := filepath.Base(path)
	for _, pat := range c.Parsed.Exclude {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}
