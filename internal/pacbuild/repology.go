package pacbuild

import (
	"fmt"
	"strings"

	"github.com/pacbuild-project/pacbuild/internal/diag"
)

// RepologyKind enumerates the filter keys repology accepts.
type RepologyKind string

const (
	RepologyProject     RepologyKind = "project"
	RepologyRepo        RepologyKind = "repo"
	RepologySubRepo     RepologyKind = "subrepo"
	RepologyName        RepologyKind = "name"
	RepologySrcName     RepologyKind = "srcname"
	RepologyBinName     RepologyKind = "binname"
	RepologyVisibleName RepologyKind = "visiblename"
	RepologyVersion     RepologyKind = "version"
	RepologyOrigVersion RepologyKind = "origversion"
	RepologyStatus      RepologyKind = "status"
	RepologySummary     RepologyKind = "summary"
)

// repologyKinds is the fixed key set, in the order used for help text.
var repologyKinds = []RepologyKind{
	RepologyProject, RepologyRepo, RepologySubRepo, RepologyName,
	RepologySrcName, RepologyBinName, RepologyVisibleName, RepologyVersion,
	RepologyOrigVersion, RepologyStatus, RepologySummary,
}

// repologyStatuses is the value set accepted by the status filter.
var repologyStatuses = []string{
	"newest", "devel", "unique", "outdated", "legacy",
	"rolling", "noscheme", "incorrect", "untrusted", "ignored",
}

// RepologyFilter is one `key: value` filter entry. For the status key the
// value is drawn from the fixed status set.
type RepologyFilter struct {
	Kind  RepologyKind `json:"kind"`
	Value string       `json:"value"`
}

// String renders the filter in its manifest form.
func (f RepologyFilter) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Value)
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}

// NewRepologyFilter validates one repology filter entry. The grammar is
// `key: value` with exactly one colon, no whitespace in the key, exactly one
// leading space before the value, and no whitespace in the value.
func NewRepologyFilter(filter string, fieldSpan, valueSpan diag.Span) (RepologyFilter, *diag.FieldError) {
	split := strings.Split(filter, ":")
	if len(split) != 2 {
		return RepologyFilter{}, &diag.FieldError{
			FieldLabel: "Must contain the repology filter in the format: `filter: value`",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.NewSpan(valueSpan.Offset+1, valueSpan.End()-1),
			Help:       "Add the repology filter in proper format. Example: `project: emacs`",
		}
	}
	key, rawValue := split[0], split[1]

	if strings.ContainsAny(key, " \t") {
		return RepologyFilter{}, &diag.FieldError{
			FieldLabel: "Filter must not contain whitespaces",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: valueSpan.Offset + 1, Len: len(key)},
			Help:       fmt.Sprintf("Maybe you meant this instead: `%s`", strings.ReplaceAll(key, " ", "")),
		}
	}

	if !strings.HasPrefix(rawValue, " ") {
		return RepologyFilter{}, &diag.FieldError{
			FieldLabel: "Value must start with a space",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.At(valueSpan.Offset + len(key) + 2),
			Help:       fmt.Sprintf("Use this: `%s: %s`", key, strings.TrimSpace(rawValue)),
		}
	}

	value := rawValue[1:]
	if strings.TrimSpace(value) == "" {
		return RepologyFilter{}, &diag.FieldError{
			FieldLabel: "Value cannot be empty",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: valueSpan.Offset + len(key) + 2, Len: len(value) + 1},
			Help:       "Add the repology filter in proper format. Example: `project: emacs`",
		}
	}
	if strings.ContainsAny(value, " \t") {
		return RepologyFilter{}, &diag.FieldError{
			FieldLabel: "Value must not contain whitespaces",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: valueSpan.Offset + len(key) + 2, Len: len(rawValue)},
			Help: fmt.Sprintf("Use this: `%s: %s`", key,
				strings.Join(strings.Fields(value), "")),
		}
	}

	kind := RepologyKind(key)
	switch kind {
	case RepologyStatus:
		valid := false
		for _, status := range repologyStatuses {
			if value == status {
				valid = true
				break
			}
		}
		if !valid {
			return RepologyFilter{}, &diag.FieldError{
				FieldLabel: "Invalid status",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.Span{Offset: valueSpan.Offset + len(key) + 2, Len: len(rawValue)},
				Help:       "Use one of " + quotedList(repologyStatuses),
			}
		}
	case RepologyProject, RepologyRepo, RepologySubRepo, RepologyName,
		RepologySrcName, RepologyBinName, RepologyVisibleName,
		RepologyVersion, RepologyOrigVersion, RepologySummary:
	default:
		kinds := make([]string, len(repologyKinds))
		for i, k := range repologyKinds {
			kinds[i] = string(k)
		}
		return RepologyFilter{}, &diag.FieldError{
			FieldLabel: "Invalid filter",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: valueSpan.Offset + 1, Len: len(key)},
			Help:       "Use one of " + quotedList(kinds),
		}
	}

	return RepologyFilter{Kind: kind, Value: value}, nil
}
