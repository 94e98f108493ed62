package pacbuild

import (
	"strings"

	"github.com/github/go-spdx/v2/spdxexp"

	"github.com/pacbuild-project/pacbuild/internal/diag"
	"github.com/pacbuild-project/pacbuild/internal/shwalk"
)

// Field dispatch is table-driven: each recognized name maps to a variant
// constant, and a single switch per match kind routes the value to its
// validator. Adding a field means one table entry and one case.

type scalarField int

const (
	scalarPkgname scalarField = iota
	scalarPkgver
	scalarEpoch
	scalarPkgdesc
	scalarLicense
	scalarURL
)

var scalarFields = map[string]scalarField{
	"pkgname": scalarPkgname,
	"pkgver":  scalarPkgver,
	"epoch":   scalarEpoch,
	"pkgdesc": scalarPkgdesc,
	"license": scalarLicense,
	"url":     scalarURL,
}

type arrayField int

const (
	arrayArch arrayField = iota
	arrayMaintainer
	arrayNoExtract
	arrayDepends
	arrayOptDepends
	arrayPPA
	arrayRepology
	arraySources
	arraySHA256 // checksum families carry an optional _<arch> suffix
	arraySHA384
	arraySHA512
	arrayB2
)

var arrayFields = map[string]arrayField{
	"arch":       arrayArch,
	"maintainer": arrayMaintainer,
	"noextract":  arrayNoExtract,
	"depends":    arrayDepends,
	"optdepends": arrayOptDepends,
	"ppa":        arrayPPA,
	"repology":   arrayRepology,
	"sources":    arraySources,
}

var checksumFields = map[string]arrayField{
	"sha256sums": arraySHA256,
	"sha384sums": arraySHA384,
	"sha512sums": arraySHA512,
	"b2sums":     arrayB2,
}

// skipChecksum is the literal entry value meaning "no checksum here".
const skipChecksum = "SKIP"

// defaultChecksumArch is the bucket used by a checksum family without an
// architecture suffix.
const defaultChecksumArch = "any"

// lookupArrayField resolves an array name, splitting the architecture
// bucket off checksum family names.
func lookupArrayField(name string) (field arrayField, arch string, ok bool) {
	if f, ok := arrayFields[name]; ok {
		return f, "", true
	}
	for family, f := range checksumFields {
		if name == family {
			return f, defaultChecksumArch, true
		}
		if suffix, found := strings.CutPrefix(name, family+"_"); found {
			return f, suffix, true
		}
	}
	return 0, "", false
}

// hookNames are the recognized lifecycle functions, stored verbatim.
var hookNames = map[string]bool{
	"prepare": true, "build": true, "check": true, "package": true,
	"pre_install": true, "post_install": true,
	"pre_upgrade": true, "post_upgrade": true,
	"pre_remove": true, "post_remove": true,
}

// builder accumulates validated fields and field errors across all matches.
// Validation never stops early: every match is consumed and every error
// recorded before any decision is made.
type builder struct {
	out  PacBuild
	errs []diag.Diagnostic
}

func (b *builder) addErr(fe *diag.FieldError) {
	if fe != nil {
		b.errs = append(b.errs, fe)
	}
}

func (b *builder) consume(m shwalk.Match) {
	switch m.Kind {
	case shwalk.Scalar:
		b.consumeScalar(m)
	case shwalk.ArrayElem:
		b.consumeArrayElem(m)
	case shwalk.Function:
		b.consumeFunction(m)
	}
}

func (b *builder) consumeScalar(m shwalk.Match) {
	value := cleanupRaw(m.ValueText)

	field, recognized := scalarFields[m.Name]
	if !recognized {
		if b.out.CustomVariables == nil {
			b.out.CustomVariables = make(map[string]string)
		}
		b.out.CustomVariables[m.Name] = value
		return
	}

	switch field {
	case scalarPkgname:
		name, err := NewPkgname(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Pkgname = []Pkgname{name}
	case scalarPkgver:
		ver, err := NewPkgver(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Pkgver = PkgverType{Variable: &ver}
	case scalarEpoch:
		epoch, err := parseEpoch(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Epoch = epoch
	case scalarPkgdesc:
		b.out.Pkgdesc = value
	case scalarLicense:
		if valid, _ := spdxexp.ValidateLicenses([]string{value}); !valid {
			b.addErr(&diag.FieldError{
				FieldLabel: "Invalid SPDX license expression",
				FieldSpan:  m.FieldSpan,
				ErrorSpan:  diag.NewSpan(m.ValueSpan.Offset+1, m.ValueSpan.End()-1),
				Help:       "Use a valid SPDX expression, like `MIT` or `Apache-2.0 OR GPL-3.0-or-later`",
			})
			return
		}
		b.out.License = value
	case scalarURL:
		b.out.URL = value
	}
}

func (b *builder) consumeArrayElem(m shwalk.Match) {
	value := cleanupRaw(m.ValueText)

	field, arch, recognized := lookupArrayField(m.Name)
	if !recognized {
		return
	}

	switch field {
	case arrayArch:
		b.out.Arch = append(b.out.Arch, value)
	case arrayMaintainer:
		maintainer, err := NewMaintainer(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Maintainer = append(b.out.Maintainer, maintainer)
	case arrayNoExtract:
		b.out.NoExtract = append(b.out.NoExtract, value)
	case arrayDepends:
		dep, err := NewDependency(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Depends = append(b.out.Depends, dep)
	case arrayOptDepends:
		opt, err := NewOptionalDependency(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.OptDepends = append(b.out.OptDepends, opt)
	case arrayPPA:
		ppa, err := NewPPA(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.PPA = append(b.out.PPA, ppa)
	case arrayRepology:
		filter, err := NewRepologyFilter(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Repology = append(b.out.Repology, filter)
	case arraySources:
		source, err := NewSource(value, m.FieldSpan, m.ValueSpan)
		if err != nil {
			b.addErr(err)
			return
		}
		b.out.Sources = append(b.out.Sources, source)
	case arraySHA256:
		b.out.SHA256Sums = appendChecksum(b.out.SHA256Sums, arch, value)
	case arraySHA384:
		b.out.SHA384Sums = appendChecksum(b.out.SHA384Sums, arch, value)
	case arraySHA512:
		b.out.SHA512Sums = appendChecksum(b.out.SHA512Sums, arch, value)
	case arrayB2:
		b.out.B2Sums = appendChecksum(b.out.B2Sums, arch, value)
	}
}

func appendChecksum(set ChecksumSet, arch, value string) ChecksumSet {
	if set == nil {
		set = make(ChecksumSet)
	}
	entry := Checksum{Value: value}
	if value == skipChecksum {
		entry = Checksum{Skip: true}
	}
	set[arch] = append(set[arch], entry)
	return set
}

func (b *builder) consumeFunction(m shwalk.Match) {
	if slot := b.hookSlot(m.Name); slot != nil {
		*slot = m.Body
		return
	}

	// A pkgver function declares a dynamically computed version; an
	// assigned pkgver variable takes precedence when both exist.
	if m.Name == "pkgver" && b.out.Pkgver.Variable == nil {
		b.out.Pkgver = PkgverType{Function: m.Name}
	}

	if b.out.CustomFunctions == nil {
		b.out.CustomFunctions = make(map[string]string)
	}
	b.out.CustomFunctions[m.Name] = m.Body
}

func (b *builder) hookSlot(name string) *string {
	if !hookNames[name] {
		return nil
	}
	switch name {
	case "prepare":
		return &b.out.Prepare
	case "build":
		return &b.out.Build
	case "check":
		return &b.out.Check
	case "package":
		return &b.out.Package
	case "pre_install":
		return &b.out.PreInstall
	case "post_install":
		return &b.out.PostInstall
	case "pre_upgrade":
		return &b.out.PreUpgrade
	case "post_upgrade":
		return &b.out.PostUpgrade
	case "pre_remove":
		return &b.out.PreRemove
	case "post_remove":
		return &b.out.PostRemove
	}
	return nil
}
