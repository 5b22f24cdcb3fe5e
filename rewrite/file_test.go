// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"bytes"
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSource(t *testing.T) {
	tests := []struct {
		name  string
		opts  *Options
		in    string
		want  string
		wantN int
	}{
		{
			name:  "block",
			in:    "package p\n\n//lockgen:exclusive LockA\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\nfunc f() {\n\tdefer LockA.Acquire().Release()\n\tdoWork()\n}\n",
			wantN: 1,
		},
		{
			name:  "two-directives-last-first",
			in:    "package p\n\n//lockgen:exclusive LockA\n//lockgen:exclusive LockB\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\nfunc f() {\n\tdefer LockB.Acquire().Release()\n\tdefer LockA.Acquire().Release()\n\tdoWork()\n}\n",
			wantN: 1,
		},
		{
			name:  "doc-comment-kept",
			in:    "package p\n\n// f does work.\n//\n//lockgen:exclusive LockA\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\n// f does work.\nfunc f() {\n\tdefer LockA.Acquire().Release()\n\tdoWork()\n}\n",
			wantN: 1,
		},
		{
			name:  "keep-directive",
			opts:  &Options{KeepDirective: true},
			in:    "package p\n\n//lockgen:exclusive LockA\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\n//lockgen:exclusive LockA\nfunc f() {\n\tdefer LockA.Acquire().Release()\n\tdoWork()\n}\n",
			wantN: 1,
		},
		{
			name:  "inline",
			opts:  &Options{Style: Inline},
			in:    "package p\n\n//lockgen:exclusive LockA\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\n//lockgen:exclusive LockA\nfunc f() { defer LockA.Acquire().Release();\n\tdoWork()\n}\n",
			wantN: 1,
		},
		{
			name:  "inline-two-directives",
			opts:  &Options{Style: Inline},
			in:    "package p\n\n//lockgen:exclusive LockA\n//lockgen:exclusive LockB\nfunc f() {}\n",
			want:  "package p\n\n//lockgen:exclusive LockA\n//lockgen:exclusive LockB\nfunc f() { defer LockB.Acquire().Release(); defer LockA.Acquire().Release();}\n",
			wantN: 1,
		},
		{
			name:  "custom-directive",
			opts:  &Options{Directive: "mytests:serial"},
			in:    "package p\n\n//mytests:serial dbLock\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\nfunc f() {\n\tdefer dbLock.Acquire().Release()\n\tdoWork()\n}\n",
			wantN: 1,
		},
		{
			name:  "several-functions",
			in:    "package p\n\n//lockgen:exclusive LockA\nfunc f() {\n\tdoWork()\n}\n\nfunc g() {}\n\n//lockgen:exclusive LockA\nfunc (s *S) h() {\n\tdoWork()\n}\n",
			want:  "package p\n\nfunc f() {\n\tdefer LockA.Acquire().Release()\n\tdoWork()\n}\n\nfunc g() {}\n\nfunc (s *S) h() {\n\tdefer LockA.Acquire().Release()\n\tdoWork()\n}\n",
			wantN: 2,
		},
		{
			name:  "no-directive",
			in:    "package p\n\nfunc f() {\n\tdoWork()\n}\n",
			want:  "package p\n\nfunc f() {\n\tdoWork()\n}\n",
			wantN: 0,
		},
		{
			name:  "mention-only",
			in:    "package p\n\n// See //lockgen:exclusive for details.\nfunc f() {}\n",
			want:  "package p\n\n// See //lockgen:exclusive for details.\nfunc f() {}\n",
			wantN: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := Source("x.go", []byte(tt.in), tt.opts)
			if err != nil {
				t.Fatalf("Source: %v", err)
			}
			if n != tt.wantN {
				t.Errorf("n = %d; want %d", n, tt.wantN)
			}
			if diff := cmp.Diff(tt.want, string(got)); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSourceInlineKeepsLines(t *testing.T) {
	in := []byte(`package p

import "testing"

// TestInsert checks inserts.
//
//lockgen:exclusive dbLock
func TestInsert(t *testing.T) {
	if err := insert(); err != nil {
		t.Fatal(err)
	}
}
`)
	out, _, err := Source("x_test.go", in, &Options{Style: Inline})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := bytes.Count(out, []byte("\n")), bytes.Count(in, []byte("\n")); got != want {
		t.Errorf("line count = %d; want %d\n%s", got, want, out)
	}
	inLines := strings.Split(string(in), "\n")
	outLines := strings.Split(string(out), "\n")
	for i := range inLines {
		if strings.HasPrefix(inLines[i], "func TestInsert") {
			continue
		}
		if inLines[i] != outLines[i] {
			t.Errorf("line %d changed: %q -> %q", i+1, inLines[i], outLines[i])
		}
	}
}

func TestSourceTwice(t *testing.T) {
	in := []byte("package p\n\n//lockgen:exclusive LockA\nfunc f() {\n\tdoWork()\n}\n")
	opts := &Options{KeepDirective: true}
	once, _, err := Source("x.go", in, opts)
	if err != nil {
		t.Fatal(err)
	}
	twice, _, err := Source("x.go", once, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(twice), "defer LockA.Acquire().Release()"); got != 2 {
		t.Errorf("got %d acquisitions after rewriting twice; want 2\n%s", got, twice)
	}
}

func TestSourceErrors(t *testing.T) {
	in := []byte(`package p

//lockgen:exclusive LockA
type S struct{}

//lockgen:exclusive A, B
func f() {}

//lockgen:exclusive LockA

func g() {}

var (
	//lockgen:exclusive LockA
	v int
)

//lockgen:exclusive LockA
func bodyless()

//lockgen:exclusive LockA
func ok() {}
`)
	out, n, err := Source("x.go", in, nil)
	if err == nil {
		t.Fatalf("Source succeeded:\n%s", out)
	}
	if out != nil || n != 0 {
		t.Errorf("Source returned output along with error: n=%d\n%s", n, out)
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("error %T does not join multiple errors", err)
	}
	var got []string
	for _, err := range joined.Unwrap() {
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("error %T is not an *Error: %v", err, err)
		}
		got = append(got, e.Position.String()+" "+e.Kind.String())
	}
	want := []string{
		"x.go:3:1 not a function",
		"x.go:6:22 malformed annotation arguments",
		"x.go:9:1 not a function",
		"x.go:14:2 not a function",
		"x.go:18:1 not a function",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, MalformedArgs) || !errors.Is(err, NotAFunction) || errors.Is(err, Internal) {
		t.Errorf("errors.Is does not see through the joined error: %v", err)
	}
}

func TestSourceSyntaxError(t *testing.T) {
	_, _, err := Source("x.go", []byte("package p\n\n//lockgen:exclusive LockA\nfunc f() {\n"), nil)
	if err == nil {
		t.Fatal("Source accepted a file that does not parse")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error %T is not an *Error: %v", err, err)
	}
	if e.Kind != NotAFunction {
		t.Errorf("syntax error reported as %v; want %v", e.Kind, NotAFunction)
	}
	if e.Position.Filename != "x.go" || e.Position.Line < 4 {
		t.Errorf("syntax error at %v; want the end of x.go", e.Position)
	}
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		t.Errorf("error does not wrap the parser's errors: %v", err)
	}

	// Expand classifies the same input the same way.
	if _, err := Expand("LockA", "func f() {"); !errors.Is(err, NotAFunction) {
		t.Errorf("Expand error = %v; want %v", err, NotAFunction)
	}
}

func TestSourceCRLF(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "multi-line",
			in:   "package p\r\n\r\n//lockgen:exclusive LockA\r\nfunc f() {\r\n\tdoWork()\r\n}\r\n",
			want: "package p\r\n\r\nfunc f() {\r\n\tdefer LockA.Acquire().Release()\r\n\tdoWork()\r\n}\r\n",
		},
		{
			name: "one-line",
			in:   "package p\r\n\r\n//lockgen:exclusive LockA\r\nfunc f() { doWork() }\r\n",
			want: "package p\r\n\r\nfunc f() {\r\n\tdefer LockA.Acquire().Release()\r\n\tdoWork() }\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Source("x.go", []byte(tt.in), nil)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, string(got)); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
			if n := bytes.Count(got, []byte("\n")); n != bytes.Count(got, []byte("\r\n")) {
				t.Errorf("output mixes line endings: %q", got)
			}
		})
	}
}

const lockTypes = `
type mutex struct{}

type guard struct{ m *mutex }

func (m *mutex) Acquire() guard { return guard{m} }
func (g guard) Release()        {}

var LockA mutex
`

func typeCheck(t *testing.T, src []byte) error {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "x.go", src, 0)
	if err != nil {
		t.Fatalf("rewritten source does not parse: %v\n%s", err, src)
	}
	_, err = new(types.Config).Check("p", fset, []*ast.File{f}, nil)
	return err
}

func TestSourceTypeChecks(t *testing.T) {
	in := "package p\n" + lockTypes + `
//lockgen:exclusive LockA
func f() int {
	guard := 1
	return guard
}

//lockgen:exclusive LockA
func g[T any](x T) (out T) {
	out = x
	return
}
`
	for _, style := range []Style{Block, Inline} {
		t.Run(style.String(), func(t *testing.T) {
			out, n, err := Source("x.go", []byte(in), &Options{Style: style})
			if err != nil {
				t.Fatal(err)
			}
			if n != 2 {
				t.Errorf("n = %d; want 2", n)
			}
			if err := typeCheck(t, out); err != nil {
				t.Errorf("rewritten source does not type-check: %v\n%s", err, out)
			}
		})
	}
}

func TestSourceParamShadowsLock(t *testing.T) {
	in := "package p\n" + lockTypes + `
//lockgen:exclusive LockA
func f(LockA int) {}
`
	out, _, err := Source("x.go", []byte(in), nil)
	if err != nil {
		t.Fatal(err)
	}
	err = typeCheck(t, out)
	if err == nil || !strings.Contains(err.Error(), "Acquire") {
		t.Errorf("type-check error = %v; want one about Acquire", err)
	}
}

func TestHasDirective(t *testing.T) {
	src := []byte("package p\n//mytests:serial L\nfunc f() {}\n")
	if HasDirective(src, "") {
		t.Error("found default directive")
	}
	if !HasDirective(src, "mytests:serial") {
		t.Error("did not find custom directive")
	}
}
