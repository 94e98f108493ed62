package pacbuild

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pacbuild-project/pacbuild/internal/diag"
)

// SourceLinkKind discriminates the protocol family of a source link.
type SourceLinkKind string

const (
	LinkHTTPS SourceLinkKind = "https"
	LinkGit   SourceLinkKind = "git"
)

// GitSourceKind discriminates where a git source is fetched from.
type GitSourceKind string

const (
	GitHTTPS GitSourceKind = "https"
	GitFile  GitSourceKind = "file"
)

// GitFragmentKind discriminates what a git fragment pins.
type GitFragmentKind string

const (
	FragmentBranch GitFragmentKind = "branch"
	FragmentTag    GitFragmentKind = "tag"
	FragmentCommit GitFragmentKind = "commit"
)

// GitFragment pins a git source to a branch, tag or commit.
type GitFragment struct {
	Kind  GitFragmentKind `json:"kind"`
	Value string          `json:"value"`
}

// SourceLink is the parsed link of one source entry: either a plain HTTPS
// URL, or a git source with its own location kind, optional fragment and
// optional signed query flag.
type SourceLink struct {
	Kind SourceLinkKind `json:"kind"`

	// URL is the link without protocol prefix, fragment or query.
	// For git+file sources it is a local directory path.
	URL string `json:"url"`

	GitKind     GitSourceKind `json:"git_kind,omitempty"`
	Fragment    *GitFragment  `json:"fragment,omitempty"`
	QuerySigned bool          `json:"query_signed,omitempty"`
}

// Source is one declared download entry: an optional rename, the link, and
// whether the entry feeds the repology changelog.
type Source struct {
	Name     string     `json:"name,omitempty"`
	Link     SourceLink `json:"link"`
	Repology bool       `json:"repology"`
}

// urlSanityRe is a loose shape check on the part after the protocol. It is
// compiled once; whitespace has already been rejected by the time it runs.
var urlSanityRe = regexp.MustCompile(`^[-a-zA-Z0-9@:%._+~#=]{1,256}(\.[a-z]{2,6})?([-a-zA-Z0-9@:%_+.~#?&/=]*)$`)

// whitespaceRun locates the first whitespace run in s, returning the byte
// offset of its start and its length, or (-1, 0) when there is none.
func whitespaceRun(s string) (start, length int) {
	start = strings.IndexAny(s, " \t")
	if start < 0 {
		return -1, 0
	}
	rest := s[start:]
	length = len(rest) - len(strings.TrimLeft(rest, " \t"))
	return start, length
}

// NewSource validates one source entry. The raw value splits on `::` into
// 1-3 parts: link, name::link, or name::link::repology. The link must carry
// a protocol prefix and may not contain whitespace; git links additionally
// parse an optional `#branch=`/`#tag=`/`#commit=` fragment and an optional
// `?signed` query.
func NewSource(source string, fieldSpan, valueSpan diag.Span) (Source, *diag.FieldError) {
	var (
		name        string
		link        string
		rawRepology string
		hasRepology bool
		repology    bool
	)

	split := strings.Split(source, "::")
	switch len(split) {
	case 1:
		link = split[0]
	case 2:
		if strings.Contains(split[0], "://") {
			link = split[0]
			rawRepology, hasRepology = split[1], true
		} else {
			name = split[0]
			link = split[1]
		}
	case 3:
		name = split[0]
		link = split[1]
		rawRepology, hasRepology = split[2], true
		repology = true
	default:
		return Source{}, &diag.FieldError{
			FieldLabel: "Too many `::` separators",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.NewSpan(valueSpan.Offset+1, valueSpan.End()-1),
			Help:       "Use one of `link`, `name::link` or `name::link::repology`",
		}
	}

	if hasRepology {
		if rawRepology != "repology" {
			if wsStart, wsLen := whitespaceRun(rawRepology); wsStart >= 0 {
				return Source{}, &diag.FieldError{
					FieldLabel: "Invalid whitespaces",
					FieldSpan:  fieldSpan,
					ErrorSpan: diag.Span{
						Offset: valueSpan.Offset + (len(source) - len(rawRepology) + 1) + wsStart,
						Len:    wsLen,
					},
					Help: fmt.Sprintf(
						"Remove the invalid whitespaces. You probably meant this instead: `%s::%s::repology`",
						split[0], split[1]),
				}
			}
			label := "Invalid key"
			if rawRepology == "" {
				label = "Missing repology key"
			}
			return Source{}, &diag.FieldError{
				FieldLabel: label,
				FieldSpan:  fieldSpan,
				ErrorSpan: diag.Span{
					Offset: valueSpan.Offset + (len(source) - len(rawRepology) + 1),
					Len:    len(rawRepology),
				},
				Help: fmt.Sprintf(
					"Maybe you meant to use the repology key, like this: `%s::%s::repology`",
					split[0], split[1]),
			}
		}
		repology = true
	}

	// linkStart is the offset of the link inside the analyzed source.
	linkStart := valueSpan.Offset + 1
	if name != "" {
		linkStart += len(name) + 2
	}

	if wsStart, wsLen := whitespaceRun(link); wsStart >= 0 {
		return Source{}, &diag.FieldError{
			FieldLabel: "Invalid whitespaces",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: linkStart + wsStart, Len: wsLen},
			Help: fmt.Sprintf(
				"Remove the invalid whitespaces. You probably meant this instead: `%s`",
				strings.Join(strings.Fields(link), "")),
		}
	}

	protocol, rest, found := strings.Cut(link, "://")
	if !found || strings.Contains(rest, "://") {
		return Source{}, &diag.FieldError{
			FieldLabel: "No protocol specified",
			FieldSpan:  fieldSpan,
			ErrorSpan:  valueSpan,
			Help:       "Use one of `https`, `git+https`, `git+file`",
		}
	}
	restStart := linkStart + len(protocol) + 3

	// The bare URL stops at the first fragment or query marker.
	bare := rest
	if i := strings.IndexAny(rest, "#?"); i >= 0 {
		bare = rest[:i]
	}

	var parsed SourceLink
	switch {
	case protocol == "https":
		parsed = SourceLink{Kind: LinkHTTPS, URL: bare}

	case strings.HasPrefix(protocol, "git"):
		gitLink, fieldErr := parseGitLink(protocol, rest, bare, fieldSpan, valueSpan, restStart)
		if fieldErr != nil {
			return Source{}, fieldErr
		}
		parsed = gitLink

	default:
		return Source{}, &diag.FieldError{
			FieldLabel: "Invalid protocol",
			FieldSpan:  fieldSpan,
			ErrorSpan:  valueSpan,
			Help:       "Specify a protocol like `https`, `git+https` or `git+file`",
		}
	}

	// Local repositories are filesystem paths, everything else must at
	// least look like a URL.
	if !(parsed.Kind == LinkGit && parsed.GitKind == GitFile) && !urlSanityRe.MatchString(rest) {
		return Source{}, &diag.FieldError{
			FieldLabel: "Invalid URL",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: restStart, Len: len(rest)},
			Help:       "Use a well-formed URL after the protocol",
		}
	}

	return Source{Name: name, Link: parsed, Repology: repology}, nil
}

// parseGitLink handles the `git+<kind>` protocol family plus the fragment
// and query grammar of the part after the protocol.
func parseGitLink(protocol, rest, bare string, fieldSpan, valueSpan diag.Span, restStart int) (SourceLink, *diag.FieldError) {
	link := SourceLink{Kind: LinkGit, URL: bare}

	gitHelp := "Specify a git protocol like `git+https` or `git+file`"
	kindSplit := strings.Split(protocol, "+")
	if len(kindSplit) != 2 {
		return SourceLink{}, &diag.FieldError{
			FieldLabel: "No git protocol specified",
			FieldSpan:  fieldSpan,
			ErrorSpan:  valueSpan,
			Help:       gitHelp,
		}
	}
	switch kindSplit[1] {
	case "https":
		link.GitKind = GitHTTPS
	case "file":
		link.GitKind = GitFile
		info, err := os.Stat(bare)
		if err != nil {
			return SourceLink{}, &diag.FieldError{
				FieldLabel: "Repository directory does not exist",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.Span{Offset: restStart, Len: len(bare)},
				Help:       "Point git+file at an existing local repository directory",
			}
		} else if !info.IsDir() {
			return SourceLink{}, &diag.FieldError{
				FieldLabel: "Repository is not a directory",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.Span{Offset: restStart, Len: len(bare)},
				Help:       "Point git+file at an existing local repository directory",
			}
		}
	default:
		return SourceLink{}, &diag.FieldError{
			FieldLabel: "Invalid git protocol",
			FieldSpan:  fieldSpan,
			ErrorSpan:  valueSpan,
			Help:       gitHelp,
		}
	}

	hashIdx := strings.IndexByte(rest, '#')
	queryIdx := strings.IndexByte(rest, '?')

	switch strings.Count(rest, "#") {
	case 0:
	case 1:
		if queryIdx >= 0 && queryIdx < hashIdx {
			return SourceLink{}, &diag.FieldError{
				FieldLabel: "Fragment must come before the query",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.Span{Offset: restStart + queryIdx, Len: hashIdx - queryIdx + 1},
				Help:       "Write the link as `...#fragment?signed`",
			}
		}
		fragEnd := len(rest)
		if queryIdx > hashIdx {
			fragEnd = queryIdx
		}
		fragment := rest[hashIdx+1 : fragEnd]
		fragSpan := diag.Span{Offset: restStart + hashIdx, Len: fragEnd - hashIdx}

		fragKind, fragValue, ok := strings.Cut(fragment, "=")
		if !ok || strings.Contains(fragValue, "=") {
			return SourceLink{}, &diag.FieldError{
				FieldLabel: "Invalid fragment syntax",
				FieldSpan:  fieldSpan,
				ErrorSpan:  fragSpan,
				Help:       "Write the fragment as `#branch=<name>`, `#tag=<name>` or `#commit=<hash>`",
			}
		}
		switch GitFragmentKind(fragKind) {
		case FragmentBranch, FragmentTag, FragmentCommit:
			link.Fragment = &GitFragment{Kind: GitFragmentKind(fragKind), Value: fragValue}
		default:
			return SourceLink{}, &diag.FieldError{
				FieldLabel: "Invalid fragment type",
				FieldSpan:  fieldSpan,
				ErrorSpan:  fragSpan,
				Help:       "Use one of `branch`, `tag`, `commit`",
			}
		}
	default:
		return SourceLink{}, &diag.FieldError{
			FieldLabel: "Only one `#` fragment is allowed",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: restStart, Len: len(rest)},
			Help:       "Keep a single `#branch=`, `#tag=` or `#commit=` fragment",
		}
	}

	switch strings.Count(rest, "?") {
	case 0:
	case 1:
		queryEnd := len(rest)
		if hashIdx > queryIdx {
			queryEnd = hashIdx
		}
		query := rest[queryIdx+1 : queryEnd]
		if query != "signed" {
			return SourceLink{}, &diag.FieldError{
				FieldLabel: "Invalid query",
				FieldSpan:  fieldSpan,
				ErrorSpan:  diag.Span{Offset: restStart + queryIdx, Len: queryEnd - queryIdx},
				Help:       "The only supported query is `?signed`",
			}
		}
		link.QuerySigned = true
	default:
		return SourceLink{}, &diag.FieldError{
			FieldLabel: "Only one `?` query is allowed",
			FieldSpan:  fieldSpan,
			ErrorSpan:  diag.Span{Offset: restStart, Len: len(rest)},
			Help:       "Keep a single `?signed` query",
		}
	}

	return link, nil
}
