// Package shwalk turns the shell-expanded manifest dump into a flat,
// ordered sequence of typed matches: scalar assignments, array elements and
// function definitions. It is the only place that touches shell syntax
// nodes; everything downstream works on names, raw value text and byte
// spans.
package shwalk

import (
	"bytes"
	"fmt"

	"mvdan.cc/sh/v3/syntax"

	"github.com/pacbuild-project/pacbuild/internal/diag"
)

// Kind discriminates what a match represents.
type Kind int

const (
	// Scalar is a top-level `name=value` assignment.
	Scalar Kind = iota
	// ArrayElem is one element of a top-level `name=(...)` assignment.
	// Per-architecture checksum lists arrive this way, one match per entry.
	ArrayElem
	// Function is a top-level function definition.
	Function
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case ArrayElem:
		return "array-element"
	case Function:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Match is one extracted (name, value) or (name, body) pair.
type Match struct {
	Kind Kind

	// Name is the variable or function name.
	Name string
	// NameSpan covers the name token.
	NameSpan diag.Span
	// FieldSpan covers the whole assignment or function definition.
	FieldSpan diag.Span

	// ValueText is the raw value text including any quoting bytes, for
	// Scalar and ArrayElem matches.
	ValueText string
	// ValueSpan covers ValueText.
	ValueSpan diag.Span

	// Body is the full definition text of a Function match.
	Body string
}

// Extract parses the expanded byte stream and enumerates its top-level
// assignments and function definitions in source order. An unparseable
// stream yields a BadSyntax diagnostic.
func Extract(src []byte) ([]Match, error) {
	file, err := syntax.NewParser().Parse(bytes.NewReader(src), "expanded")
	if err != nil {
		return nil, &diag.BadSyntax{Reason: fmt.Sprintf("expanded output is not valid shell: %v", err)}
	}

	var matches []Match
	for _, stmt := range file.Stmts {
		switch cmd := stmt.Cmd.(type) {
		case *syntax.CallExpr:
			// Assignments only; a call with arguments is not a declaration.
			if len(cmd.Args) > 0 {
				continue
			}
			for _, assign := range cmd.Assigns {
				matches = append(matches, assignMatches(src, assign)...)
			}
		case *syntax.FuncDecl:
			matches = append(matches, Match{
				Kind:      Function,
				Name:      cmd.Name.Value,
				NameSpan:  nodeSpan(cmd.Name),
				FieldSpan: nodeSpan(cmd),
				Body:      nodeText(src, cmd),
			})
		}
	}
	return matches, nil
}

func assignMatches(src []byte, assign *syntax.Assign) []Match {
	if assign.Name == nil {
		return nil
	}
	name := assign.Name.Value
	nameSpan := nodeSpan(assign.Name)
	fieldSpan := nodeSpan(assign)

	if assign.Array != nil {
		matches := make([]Match, 0, len(assign.Array.Elems))
		for _, elem := range assign.Array.Elems {
			if elem.Value == nil {
				continue
			}
			matches = append(matches, Match{
				Kind:      ArrayElem,
				Name:      name,
				NameSpan:  nameSpan,
				FieldSpan: fieldSpan,
				ValueText: nodeText(src, elem.Value),
				ValueSpan: nodeSpan(elem.Value),
			})
		}
		return matches
	}

	m := Match{
		Kind:      Scalar,
		Name:      name,
		NameSpan:  nameSpan,
		FieldSpan: fieldSpan,
	}
	if assign.Value != nil {
		m.ValueText = nodeText(src, assign.Value)
		m.ValueSpan = nodeSpan(assign.Value)
	} else {
		// Naked `name=` assignment: empty value at the end of the field.
		m.ValueSpan = diag.Span{Offset: fieldSpan.End()}
	}
	return []Match{m}
}

func nodeSpan(n syntax.Node) diag.Span {
	return diag.NewSpan(int(n.Pos().Offset()), int(n.End().Offset()))
}

func nodeText(src []byte, n syntax.Node) string {
	start, end := int(n.Pos().Offset()), int(n.End().Offset())
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return string(src[start:end])
}
