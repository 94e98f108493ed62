package pacbuild

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pacbuild-project/pacbuild/internal/diag"
)

// Validators in this file share one shape: raw field value plus the spans of
// the enclosing assignment and of the raw value text, returning either the
// validated value or a FieldError pinpointing the erroneous subrange. The
// raw value span includes the quoting bytes, so the value content starts one
// byte past its offset.

func isPkgnameByte(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
		r == '@' || r == '.' || r == '_' || r == '+' || r == '-'
}

// NewPkgname validates a package identifier.
func NewPkgname(name string, fieldSpan, valueSpan diag.Span) (Pkgname, *diag.FieldError) {
	if strings.TrimSpace(name) == "" {
		return Pkgname{}, &diag.FieldError{
			FieldLabel: "Cannot be empty",
			FieldSpan:  fieldSpan,
			ErrorSpan:  valueSpan,
			Help:       "Remove this empty field",
		}
	}

	for i, r := range name {
		if i == 0 {
			if r == '-' {
				return Pkgname{}, &diag.FieldError{
					FieldLabel: "Cannot start with a hyphen ( - )",
					FieldSpan:  fieldSpan,
					ErrorSpan:  diag.At(valueSpan.Offset + 1),
					Help:       fmt.Sprintf("Use pkgname=%q instead", name[1:]),
				}
			}
			if r == '.' {
				return Pkgname{}, &diag.FieldError{
					FieldLabel: "Cannot start with a period ( . )",
					FieldSpan:  fieldSpan,
					ErrorSpan:  diag.At(valueSpan.Offset + 1),
					Help:       fmt.Sprintf("Use pkgname=%q instead", name[1:]),
				}
			}
		}

		if !isPkgnameByte(r) {
			cleaned := strings.Map(func(r rune) rune {
				if isPkgnameByte(r) {
					return r
				}
				return -1
			}, name)
			return Pkgname{}, &diag.FieldError{
				FieldLabel: "Can only contain lowercase, alphanumerics or @._+-",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.At(valueSpan.Offset + 1 + i),
				Help:       fmt.Sprintf("Use pkgname=%q instead", cleaned),
			}
		}
	}

	return Pkgname{name: name}, nil
}

// NewPkgver validates a literal version string.
func NewPkgver(version string, fieldSpan, valueSpan diag.Span) (Pkgver, *diag.FieldError) {
	for i, r := range version {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '_'
		if !ok {
			return Pkgver{}, &diag.FieldError{
				FieldLabel: "Can only contain alphanumerics, periods and underscores",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.At(valueSpan.Offset + 1 + i),
				Help:       "Remove the invalid characters",
			}
		}
	}
	return Pkgver{version: version}, nil
}

// parseEpoch validates the epoch field: a non-negative integer.
func parseEpoch(value string, fieldSpan, valueSpan diag.Span) (*int, *diag.FieldError) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return nil, &diag.FieldError{
			FieldLabel: "Can only be a non-negative integer",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.NewSpan(valueSpan.Offset+1, valueSpan.End()-1),
			Help:       "Use a non-negative epoch",
		}
	}
	return &n, nil
}

// Maintainer is a maintainer name plus zero or more bracketed emails, as in
// `Name <one@example.com> <two@example.com>`.
type Maintainer struct {
	Name   string   `json:"name"`
	Emails []string `json:"emails,omitempty"`
}

// String renders the maintainer in its manifest form.
func (m Maintainer) String() string {
	parts := []string{m.Name}
	for _, email := range m.Emails {
		parts = append(parts, "<"+email+">")
	}
	return strings.Join(parts, " ")
}

// NewMaintainer validates one maintainer entry.
func NewMaintainer(maintainer string, fieldSpan, valueSpan diag.Span) (Maintainer, *diag.FieldError) {
	split := strings.Fields(maintainer)
	if len(split) == 0 {
		return Maintainer{}, &diag.FieldError{
			FieldLabel: "Needs a maintainer name",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.At(valueSpan.Offset + 1),
			Help:       "Add a maintainer name. This is usually your GitHub username",
		}
	}

	m := Maintainer{Name: split[0]}
	for _, raw := range split[1:] {
		if !strings.HasSuffix(raw, ">") {
			return Maintainer{}, &diag.FieldError{
				FieldLabel: "Missing trailing >",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.At(valueSpan.End() - 2),
				Help:       "Add a trailing > to the email address",
			}
		}
		email := strings.Trim(raw, "<>")
		if email == "" {
			return Maintainer{}, &diag.FieldError{
				FieldLabel: "Email address cannot be empty",
				FieldSpan:  fieldSpan,
				ErrorSpan: diag.NewSpan(
					valueSpan.Offset+len(split[0])+1,
					valueSpan.End()-1,
				),
				Help: "Add the email address",
			}
		}
		m.Emails = append(m.Emails, email)
	}
	return m, nil
}

// Dependency is a required package plus an optional semver constraint, as in
// `name` or `name: >=1.2.3`.
type Dependency struct {
	Name       string              `json:"name"`
	VersionReq *semver.Constraints `json:"version_req,omitempty"`
}

// MarshalJSON renders the constraint in its textual form.
func (d Dependency) MarshalJSON() ([]byte, error) {
	out := struct {
		Name       string `json:"name"`
		VersionReq string `json:"version_req,omitempty"`
	}{Name: d.Name}
	if d.VersionReq != nil {
		out.VersionReq = d.VersionReq.String()
	}
	return json.Marshal(out)
}

// NewDependency validates one dependency entry.
func NewDependency(dependency string, fieldSpan, valueSpan diag.Span) (Dependency, *diag.FieldError) {
	name, rawReq, hasReq := strings.Cut(dependency, ":")

	for _, r := range name {
		if r > 127 {
			return Dependency{}, &diag.FieldError{
				FieldLabel: "Name has to be valid ASCII",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.NewSpan(valueSpan.Offset+1, valueSpan.End()),
				Help:       "Try romanizing your dependency name.",
			}
		}
	}

	dep := Dependency{Name: name}
	if hasReq {
		req, err := semver.NewConstraint(strings.TrimSpace(rawReq))
		if err != nil {
			// The span covers the constraint substring, not the whole field.
			return Dependency{}, &diag.FieldError{
				FieldLabel: err.Error(),
				FieldSpan:  fieldSpan,
				ErrorSpan: diag.NewSpan(
					valueSpan.Offset+1+len(name)+2,
					valueSpan.End()-1,
				),
				Help: "Use a version requirement like `>=1.2.3`, `<2` or `=1.0.0`",
			}
		}
		dep.VersionReq = req
	}
	return dep, nil
}

// OptionalDependency is a suggested package plus an optional human-readable
// reason, separated by exactly `: `.
type OptionalDependency struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewOptionalDependency validates one optional dependency entry. The
// separator grammar is strict: exactly one leading space after the colon,
// and no extra leading or trailing whitespace in the description.
func NewOptionalDependency(optionalDependency string, fieldSpan, valueSpan diag.Span) (OptionalDependency, *diag.FieldError) {
	if optionalDependency == "" {
		return OptionalDependency{}, &diag.FieldError{
			FieldLabel: "Cannot be empty",
			FieldSpan:  fieldSpan,
			ErrorSpan:  valueSpan,
			Help:       "Remove this empty field",
		}
	}

	// The colon may also appear inside the package name (`pkg:i386`), so
	// the separator is the last one.
	sep := strings.LastIndexByte(optionalDependency, ':')
	if sep < 0 {
		return OptionalDependency{Name: optionalDependency}, nil
	}

	name := optionalDependency[:sep]
	rawDescription := optionalDependency[sep+1:]
	trimmed := strings.TrimSpace(rawDescription)

	if !strings.HasPrefix(rawDescription, " ") {
		return OptionalDependency{}, &diag.FieldError{
			FieldLabel: "The syntactic leading space is missing",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.At(valueSpan.Offset + 1 + len(name) + 1),
			Help:       fmt.Sprintf("Use this instead: %q", name+": "+trimmed),
		}
	}

	description := rawDescription[1:]
	if lead := len(description) - len(strings.TrimLeft(description, " \t")); lead > 0 {
		return OptionalDependency{}, &diag.FieldError{
			FieldLabel: "Extra leading spaces are invalid",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.NewSpan(valueSpan.Offset+1+len(name)+2, valueSpan.Offset+1+len(name)+2+lead),
			Help:       fmt.Sprintf("Use this instead: %q", name+": "+trimmed),
		}
	}
	if trail := len(description) - len(strings.TrimRight(description, " \t")); trail > 0 {
		start := valueSpan.Offset + 1 + len(name) + 2 + len(description) - trail
		return OptionalDependency{}, &diag.FieldError{
			FieldLabel: "Trailing spaces are invalid",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.NewSpan(start, start+trail),
			Help:       fmt.Sprintf("Use this instead: %q", name+": "+trimmed),
		}
	}

	return OptionalDependency{Name: name, Description: description}, nil
}

// PPA is a Launchpad personal package archive reference, `owner/package`.
type PPA struct {
	Owner   string `json:"owner"`
	Package string `json:"package"`
}

// String renders the PPA in its manifest form.
func (p PPA) String() string { return p.Owner + "/" + p.Package }

// NewPPA validates one PPA entry.
func NewPPA(ppa string, fieldSpan, valueSpan diag.Span) (PPA, *diag.FieldError) {
	owner, pkg, found := strings.Cut(ppa, "/")
	if !found {
		return PPA{}, &diag.FieldError{
			FieldLabel: "Must contain the PPA in the format: owner/package",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.NewSpan(valueSpan.Offset+1, valueSpan.End()-1),
			Help:       "Add the PPA in proper format. Example: kelleyk/emacs",
		}
	}
	return PPA{Owner: owner, Package: pkg}, nil
}
