// Package pacbuild parses package-build manifests into a validated,
// strongly-typed in-memory representation.
//
// A manifest is a bash superset declaring package metadata, dependencies,
// checksums, sources and lifecycle hook functions. Parsing first runs the
// text through a shell expander so interpolation and arrays are already
// resolved, then walks the structural parse of that dump, validating every
// recognized field against its own grammar. Validation is exhaustive: every
// field error in the manifest is reported in one pass. Required-field checks
// run only on otherwise clean manifests and stop at the first absence.
//
// Diagnostics carry byte spans into the shell-expanded text, which is
// exposed through diag.ParseError.Input; when interpolation changed lengths
// the spans do not line up with the original input.
package pacbuild

import "encoding/json"

// Pkgname is a validated package identifier: non-empty, not starting with
// '-' or '.', every byte one of [a-z0-9@._+-]. The constructor is the only
// way to obtain one.
type Pkgname struct {
	name string
}

// String returns the validated identifier.
func (p Pkgname) String() string { return p.name }

// MarshalJSON encodes the identifier as a plain string.
func (p Pkgname) MarshalJSON() ([]byte, error) { return json.Marshal(p.name) }

// Pkgver is a validated literal version string matching [A-Za-z0-9._]+.
type Pkgver struct {
	version string
}

// String returns the validated version.
func (v Pkgver) String() string { return v.version }

// MarshalJSON encodes the version as a plain string.
func (v Pkgver) MarshalJSON() ([]byte, error) { return json.Marshal(v.version) }

// PkgverType is the version specifier of a manifest: either a literal
// version string, or the name of a hook function that computes the version
// dynamically. The parser never evaluates the hook.
type PkgverType struct {
	Variable *Pkgver `json:"variable,omitempty"`
	Function string  `json:"function,omitempty"`
}

// IsFunction reports whether the version is computed by a hook.
func (v PkgverType) IsFunction() bool { return v.Function != "" }

// Checksum is one entry of a per-architecture checksum list. A SKIP entry
// keeps its position in the list with Skip set and an empty Value.
type Checksum struct {
	Value string `json:"value,omitempty"`
	Skip  bool   `json:"skip,omitempty"`
}

// ChecksumSet maps an architecture bucket (default "any") to its ordered
// checksum list. Entry order matches the declared source order.
type ChecksumSet map[string][]Checksum

// PacBuild is the parse result: every recognized field of one manifest plus
// open-ended custom variable and function buckets for unrecognized names.
// It is assembled once per successful parse and immutable afterwards; it
// holds byte spans, never syntax-tree handles, so it outlives the parse.
type PacBuild struct {
	Pkgname         []Pkgname         `json:"pkgname"`
	Pkgver          PkgverType        `json:"pkgver"`
	Epoch           *int              `json:"epoch,omitempty"`
	Pkgdesc         string            `json:"pkgdesc,omitempty"`
	URL             string            `json:"url,omitempty"`
	License         string            `json:"license,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`

	Arch       []string             `json:"arch"`
	Maintainer []Maintainer         `json:"maintainer,omitempty"`
	NoExtract  []string             `json:"noextract,omitempty"`
	SHA256Sums ChecksumSet          `json:"sha256sums,omitempty"`
	SHA384Sums ChecksumSet          `json:"sha384sums,omitempty"`
	SHA512Sums ChecksumSet          `json:"sha512sums,omitempty"`
	B2Sums     ChecksumSet          `json:"b2sums,omitempty"`
	Depends    []Dependency         `json:"depends,omitempty"`
	OptDepends []OptionalDependency `json:"optdepends,omitempty"`
	PPA        []PPA                `json:"ppa,omitempty"`
	Repology   []RepologyFilter     `json:"repology,omitempty"`
	Sources    []Source             `json:"sources"`

	Prepare     string `json:"prepare,omitempty"`
	Build       string `json:"build,omitempty"`
	Check       string `json:"check,omitempty"`
	Package     string `json:"package,omitempty"`
	PreInstall  string `json:"pre_install,omitempty"`
	PostInstall string `json:"post_install,omitempty"`
	PreUpgrade  string `json:"pre_upgrade,omitempty"`
	PostUpgrade string `json:"post_upgrade,omitempty"`
	PreRemove   string `json:"pre_remove,omitempty"`
	PostRemove  string `json:"post_remove,omitempty"`

	CustomFunctions map[string]string `json:"custom_functions,omitempty"`
}

// cleanupRaw strips the quoting wrapper from raw value text: exactly one
// leading and one trailing delimiter byte. Raw text of length <= 2 has no
// content between the delimiters.
func cleanupRaw(raw string) string {
	if len(raw) <= 2 {
		return ""
	}
	return raw[1 : len(raw)-1]
}
