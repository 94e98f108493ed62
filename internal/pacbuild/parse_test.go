package pacbuild

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pacbuild-project/pacbuild/internal/diag"
	"github.com/pacbuild-project/pacbuild/internal/expand"
)

// validDump is a canned shell-expansion dump of a fully populated manifest,
// in the normalized declare form the expander produces.
const validDump = `pkgname="demo-bin"
pkgver="1.2.3"
epoch="2"
pkgdesc="Demo binary"
url="https://example.com"
license="MIT"
_flavor="stable"
arch=([0]="amd64" [1]="arm64")
maintainer=([0]="janedoe <jane@example.com>")
noextract=([0]="demo.cfg")
depends=([0]="gcc: >=12.0.0" [1]="make")
optdepends=([0]="doc-tool: renders the manual")
ppa=([0]="kelleyk/emacs")
repology=([0]="project: demo")
sources=([0]="demo.tar.gz::https://example.com/demo.tar.gz" [1]="https://example.com/extra.tar.gz")
sha256sums=([0]="aaaa" [1]="SKIP")
sha256sums_arm64=([0]="bbbb")
b2sums=([0]="SKIP")
package ()
{
    install -Dm755 demo "${pkgdir}/usr/bin/demo"
}
greet ()
{
    echo hi
}
`

func parseDump(t *testing.T, dump string) (*PacBuild, error) {
	t.Helper()
	return ParseWith(context.Background(), &expand.Static{Output: []byte(dump)}, "ignored")
}

func mustParseDump(t *testing.T, dump string) *PacBuild {
	t.Helper()
	pb, err := parseDump(t, dump)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return pb
}

func TestParseValidManifest(t *testing.T) {
	pb := mustParseDump(t, validDump)

	if len(pb.Pkgname) != 1 || pb.Pkgname[0].String() != "demo-bin" {
		t.Errorf("Pkgname = %v, want [demo-bin]", pb.Pkgname)
	}
	if pb.Pkgver.IsFunction() || pb.Pkgver.Variable == nil || pb.Pkgver.Variable.String() != "1.2.3" {
		t.Errorf("Pkgver = %+v, want literal 1.2.3", pb.Pkgver)
	}
	if pb.Epoch == nil || *pb.Epoch != 2 {
		t.Errorf("Epoch = %v, want 2", pb.Epoch)
	}
	if pb.Pkgdesc != "Demo binary" || pb.URL != "https://example.com" || pb.License != "MIT" {
		t.Errorf("metadata = %q %q %q", pb.Pkgdesc, pb.URL, pb.License)
	}
	if want := map[string]string{"_flavor": "stable"}; !reflect.DeepEqual(pb.CustomVariables, want) {
		t.Errorf("CustomVariables = %v, want %v", pb.CustomVariables, want)
	}
	if want := []string{"amd64", "arm64"}; !reflect.DeepEqual(pb.Arch, want) {
		t.Errorf("Arch = %v, want %v", pb.Arch, want)
	}
	if want := []string{"demo.cfg"}; !reflect.DeepEqual(pb.NoExtract, want) {
		t.Errorf("NoExtract = %v, want %v", pb.NoExtract, want)
	}

	if len(pb.Maintainer) != 1 {
		t.Fatalf("Maintainer = %v, want one entry", pb.Maintainer)
	}
	if m := pb.Maintainer[0]; m.Name != "janedoe" || !reflect.DeepEqual(m.Emails, []string{"jane@example.com"}) {
		t.Errorf("Maintainer[0] = %+v", m)
	}

	if len(pb.Depends) != 2 {
		t.Fatalf("Depends = %v, want two entries", pb.Depends)
	}
	if d := pb.Depends[0]; d.Name != "gcc" || d.VersionReq == nil {
		t.Fatalf("Depends[0] = %+v", d)
	} else if !d.VersionReq.Check(mustVersion(t, "12.1.0")) {
		t.Errorf("constraint %v rejected 12.1.0", d.VersionReq)
	}
	if d := pb.Depends[1]; d.Name != "make" || d.VersionReq != nil {
		t.Errorf("Depends[1] = %+v, want bare make", d)
	}

	if want := []OptionalDependency{{Name: "doc-tool", Description: "renders the manual"}}; !reflect.DeepEqual(pb.OptDepends, want) {
		t.Errorf("OptDepends = %v, want %v", pb.OptDepends, want)
	}
	if want := []PPA{{Owner: "kelleyk", Package: "emacs"}}; !reflect.DeepEqual(pb.PPA, want) {
		t.Errorf("PPA = %v, want %v", pb.PPA, want)
	}
	if want := []RepologyFilter{{Kind: RepologyProject, Value: "demo"}}; !reflect.DeepEqual(pb.Repology, want) {
		t.Errorf("Repology = %v, want %v", pb.Repology, want)
	}

	if len(pb.Sources) != 2 {
		t.Fatalf("Sources = %v, want two entries", pb.Sources)
	}
	if s := pb.Sources[0]; s.Name != "demo.tar.gz" || s.Link.Kind != LinkHTTPS || s.Link.URL != "example.com/demo.tar.gz" {
		t.Errorf("Sources[0] = %+v", s)
	}
	if s := pb.Sources[1]; s.Name != "" || s.Link.URL != "example.com/extra.tar.gz" {
		t.Errorf("Sources[1] = %+v", s)
	}

	wantSums := ChecksumSet{
		"any":   {{Value: "aaaa"}, {Skip: true}},
		"arm64": {{Value: "bbbb"}},
	}
	if !reflect.DeepEqual(pb.SHA256Sums, wantSums) {
		t.Errorf("SHA256Sums = %v, want %v", pb.SHA256Sums, wantSums)
	}
	if want := (ChecksumSet{"any": {{Skip: true}}}); !reflect.DeepEqual(pb.B2Sums, want) {
		t.Errorf("B2Sums = %v, want %v", pb.B2Sums, want)
	}
	if pb.SHA384Sums != nil || pb.SHA512Sums != nil {
		t.Errorf("unexpected checksum families: %v %v", pb.SHA384Sums, pb.SHA512Sums)
	}

	if !strings.Contains(pb.Package, "install -Dm755") {
		t.Errorf("Package hook = %q", pb.Package)
	}
	if _, ok := pb.CustomFunctions["package"]; ok {
		t.Error("recognized hook leaked into CustomFunctions")
	}
	if body, ok := pb.CustomFunctions["greet"]; !ok || !strings.Contains(body, "echo hi") {
		t.Errorf("CustomFunctions = %v", pb.CustomFunctions)
	}
}

func TestParseAccumulatesErrors(t *testing.T) {
	dump := `pkgname="-bad"
pkgver="1.0!"
arch=([0]="amd64")
depends=([0]="gcc: >=not.a.version")
sources=([0]="ftp://example.com/x")
`
	_, err := parseDump(t, dump)
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *diag.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *diag.ParseError", err)
	}
	if perr.Input != dump {
		t.Errorf("Input = %q, want the expanded dump", perr.Input)
	}
	if len(perr.Related) != 4 {
		t.Fatalf("Related = %d diagnostics, want 4: %v", len(perr.Related), perr.Related)
	}
	for i, d := range perr.Related {
		if _, ok := d.(*diag.FieldError); !ok {
			t.Errorf("Related[%d] = %T, want *diag.FieldError", i, d)
		}
	}
	if !errors.Is(err, diag.ErrInvalidField) {
		t.Error("errors.Is(err, ErrInvalidField) = false")
	}
}

func TestParseFieldErrorsSuppressMissingCheck(t *testing.T) {
	// A manifest with value errors reports those alone, even though three
	// required fields are absent too.
	_, err := parseDump(t, "pkgname=\"-bad\"\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, diag.ErrInvalidField) {
		t.Error("errors.Is(err, ErrInvalidField) = false")
	}
	if errors.Is(err, diag.ErrMissingField) {
		t.Error("missing-field check ran on a dirty manifest")
	}
}

func TestParseMissingFieldOrder(t *testing.T) {
	const (
		pkgname = "pkgname=\"demo\"\n"
		pkgver  = "pkgver=\"1.0\"\n"
		arch    = "arch=([0]=\"amd64\")\n"
	)
	tests := []struct {
		name string
		dump string
		want string
	}{
		{name: "empty", dump: "", want: "pkgname is missing"},
		{name: "pkgname only", dump: pkgname, want: "pkgver is missing"},
		{name: "no arch", dump: pkgname + pkgver, want: "arch is missing"},
		{name: "no sources", dump: pkgname + pkgver + arch, want: "sources is missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDump(t, tt.dump)
			var perr *diag.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *diag.ParseError", err)
			}
			// The check stops at the first absence.
			if len(perr.Related) != 1 {
				t.Fatalf("Related = %v, want exactly one diagnostic", perr.Related)
			}
			missing, ok := perr.Related[0].(*diag.MissingField)
			if !ok {
				t.Fatalf("Related[0] = %T, want *diag.MissingField", perr.Related[0])
			}
			if missing.Label != tt.want {
				t.Errorf("Label = %q, want %q", missing.Label, tt.want)
			}
			if !errors.Is(err, diag.ErrMissingField) {
				t.Error("errors.Is(err, ErrMissingField) = false")
			}
		})
	}
}

func TestParseExpansionFailure(t *testing.T) {
	source := "pkgname=\"demo\"\nif [ oops\n"
	expander := &expand.Static{Err: &diag.BadSyntax{Reason: "shell expansion exited with status 2"}}
	_, err := ParseWith(context.Background(), expander, source)

	var perr *diag.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *diag.ParseError", err)
	}
	// Expansion produced no output, so diagnostics refer to the original.
	if perr.Input != source {
		t.Errorf("Input = %q, want the original source", perr.Input)
	}
	if len(perr.Related) != 1 || !errors.Is(err, diag.ErrBadSyntax) {
		t.Errorf("Related = %v, want one bad-syntax diagnostic", perr.Related)
	}
	if got := expander.Calls; len(got) != 1 || got[0] != source {
		t.Errorf("Calls = %v", got)
	}
}

func TestParseExtractionFailure(t *testing.T) {
	dump := "pkgname=\"unterminated\n"
	_, err := parseDump(t, dump)

	var perr *diag.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *diag.ParseError", err)
	}
	if perr.Input != dump {
		t.Errorf("Input = %q, want the expanded dump", perr.Input)
	}
	if !errors.Is(err, diag.ErrBadSyntax) {
		t.Error("errors.Is(err, ErrBadSyntax) = false")
	}
}

func TestParsePkgverFunction(t *testing.T) {
	dump := `pkgname="demo-git"
arch=([0]="amd64")
sources=([0]="git+https://example.com/demo.git")
pkgver ()
{
    git describe --tags
}
`
	pb := mustParseDump(t, dump)
	if !pb.Pkgver.IsFunction() || pb.Pkgver.Function != "pkgver" || pb.Pkgver.Variable != nil {
		t.Errorf("Pkgver = %+v, want function form", pb.Pkgver)
	}
	if body, ok := pb.CustomFunctions["pkgver"]; !ok || !strings.Contains(body, "git describe") {
		t.Errorf("CustomFunctions = %v", pb.CustomFunctions)
	}
}

func TestParsePkgverVariableWinsOverFunction(t *testing.T) {
	dump := `pkgname="demo"
pkgver="2.0"
arch=([0]="amd64")
sources=([0]="https://example.com/demo.tar.gz")
pkgver ()
{
    git describe --tags
}
`
	pb := mustParseDump(t, dump)
	if pb.Pkgver.IsFunction() || pb.Pkgver.Variable == nil || pb.Pkgver.Variable.String() != "2.0" {
		t.Errorf("Pkgver = %+v, want the assigned literal", pb.Pkgver)
	}
}

func TestParseInvalidLicense(t *testing.T) {
	dump := `pkgname="demo"
pkgver="1.0"
license="Not-A-Real-License-Id"
arch=([0]="amd64")
sources=([0]="https://example.com/demo.tar.gz")
`
	_, err := parseDump(t, dump)
	var perr *diag.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *diag.ParseError", err)
	}
	fe, ok := perr.Related[0].(*diag.FieldError)
	if !ok || fe.FieldLabel != "Invalid SPDX license expression" {
		t.Errorf("Related[0] = %+v", perr.Related[0])
	}
}

func TestParseIdempotent(t *testing.T) {
	first := mustParseDump(t, validDump)
	second := mustParseDump(t, validDump)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated parses disagree:\n%+v\n%+v", first, second)
	}
}
