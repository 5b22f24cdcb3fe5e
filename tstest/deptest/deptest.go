// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package deptest contains a shared implementation of negative
// dependency tests for other packages, making sure we don't start
// depending on certain packages.
package deptest

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
)

// modulePath is the module whose packages BadDeps entries are checked to
// still exist.
const modulePath = "github.com/tailscale/lockgen"

// DepChecker describes the dependencies the package in the current
// directory must and must not have.
type DepChecker struct {
	GOOS     string            // optional
	GOARCH   string            // optional
	OnDep    func(string)      // if non-nil, called per dependency
	OnImport func(string)      // if non-nil, called per import
	BadDeps  map[string]string // package => why
	WantDeps []string          // packages expected
	Tags     string            // comma-separated
	ExtraEnv []string          // extra environment for "go list" (e.g. CGO_ENABLED=1)
}

// Check runs "go list" on the package in the current directory and reports
// violations to t.
func (c DepChecker) Check(t *testing.T) {
	if runtime.GOOS == "windows" {
		// Slow and avoid caring about "go.exe" etc.
		t.Skip("skipping dep tests on windows hosts")
	}
	t.Helper()
	cmd := exec.Command("go", "list", "-json", "-tags="+c.Tags, ".")
	var extraEnv []string
	if c.GOOS != "" {
		extraEnv = append(extraEnv, "GOOS="+c.GOOS)
	}
	if c.GOARCH != "" {
		extraEnv = append(extraEnv, "GOARCH="+c.GOARCH)
	}
	extraEnv = append(extraEnv, c.ExtraEnv...)
	cmd.Env = append(os.Environ(), extraEnv...)
	out, err := cmd.Output()
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		Imports []string
		Deps    []string
	}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatal(err)
	}

	modRoot := sync.OnceValue(func() string {
		out, err := exec.Command("go", "list", "-m", "-f", "{{.Dir}}", modulePath).Output()
		if err != nil {
			t.Fatalf("failed to find %s root: %v", modulePath, err)
		}
		return strings.TrimSpace(string(out))
	})

	if c.OnImport != nil {
		for _, imp := range res.Imports {
			c.OnImport(imp)
		}
	}

	for _, dep := range res.Deps {
		if c.OnDep != nil {
			c.OnDep(dep)
		}
		if why, ok := c.BadDeps[dep]; ok {
			t.Errorf("package %q is not allowed as a dependency (env: %q); reason: %s", dep, extraEnv, why)
		}
	}
	// Make sure the BadDeps packages of this module actually exist. If they
	// got renamed or moved around, the test referencing the old name needs
	// updating.
	for dep := range c.BadDeps {
		if suf, ok := strings.CutPrefix(dep, modulePath+"/"); ok {
			pkgDir := filepath.Join(modRoot(), suf)
			if _, err := os.Stat(pkgDir); err != nil {
				t.Errorf("listed BadDep %q doesn't seem to exist anymore: %v", dep, err)
			}
		}
	}
	for _, dep := range c.WantDeps {
		if !slices.Contains(res.Deps, dep) {
			t.Errorf("expected package %q to be a dependency (env: %q)", dep, extraEnv)
		}
	}
	t.Logf("got %d dependencies", len(res.Deps))
}
