package pacbuild

import (
	"context"
	"errors"

	"github.com/pacbuild-project/pacbuild/internal/diag"
	"github.com/pacbuild-project/pacbuild/internal/expand"
	"github.com/pacbuild-project/pacbuild/internal/shwalk"
)

// defaultExpander is the process-wide shell expander. It is stateless, so
// one instance serves every parse.
var defaultExpander = expand.NewShell()

// Parse parses raw manifest text into a PacBuild using the default shell
// expander. On failure the returned error is a *diag.ParseError carrying
// every diagnostic found in one pass.
func Parse(source string) (*PacBuild, error) {
	return ParseContext(context.Background(), source)
}

// ParseContext is Parse with a caller-supplied context. The context bounds
// the one blocking step, the shell-expansion subprocess; no timeout is
// imposed here, callers dealing with untrusted input should set one.
func ParseContext(ctx context.Context, source string) (*PacBuild, error) {
	return ParseWith(ctx, defaultExpander, source)
}

// ParseWith is ParseContext with an injected expander, so tests can run
// golden inputs through a canned dump without a shell on the machine.
func ParseWith(ctx context.Context, expander expand.Expander, source string) (*PacBuild, error) {
	expanded, err := expander.Expand(ctx, source)
	if err != nil {
		// Expansion failed before producing usable output: diagnostics
		// can only refer to the original input.
		return nil, &diag.ParseError{Input: source, Related: []diag.Diagnostic{asDiagnostic(err)}}
	}

	matches, err := shwalk.Extract(expanded)
	if err != nil {
		return nil, &diag.ParseError{Input: string(expanded), Related: []diag.Diagnostic{asDiagnostic(err)}}
	}

	var b builder
	for _, m := range matches {
		b.consume(m)
	}

	if len(b.errs) > 0 {
		// No partial manifest accompanies errors: the caller gets either
		// a fully valid PacBuild or every problem at once.
		return nil, &diag.ParseError{Input: string(expanded), Related: b.errs}
	}

	// Required fields, checked in fixed order. Unlike value validation
	// this is fail-fast: the first absent field wins.
	if missing := b.missingRequired(); missing != "" {
		return nil, &diag.ParseError{
			Input:   string(expanded),
			Related: []diag.Diagnostic{&diag.MissingField{Label: missing + " is missing"}},
		}
	}

	return &b.out, nil
}

// missingRequired returns the name of the first required field that was
// never assigned, or "" when the manifest has its full identity.
func (b *builder) missingRequired() string {
	switch {
	case len(b.out.Pkgname) == 0:
		return "pkgname"
	case b.out.Pkgver.Variable == nil && !b.out.Pkgver.IsFunction():
		return "pkgver"
	case len(b.out.Arch) == 0:
		return "arch"
	case len(b.out.Sources) == 0:
		return "sources"
	default:
		return ""
	}
}

// asDiagnostic coerces an expansion or extraction error into a diagnostic,
// wrapping unexpected error types as bad syntax.
func asDiagnostic(err error) diag.Diagnostic {
	var d diag.Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return &diag.BadSyntax{Reason: err.Error()}
}
