// Package tokenize locates string-literal and comment spans in source text
// so content rules can rename package identifiers without touching prose.
// Languages without a registered grammar fall back to plain regex replace.
package tokenize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
)

// Span is a protected byte range.
type Span struct {
	Start uint32
	End   uint32
}

// LanguageForExt returns the grammar for a file extension.
// Returns ok=false for extensions without span support.
func LanguageForExt(ext string) (*sitter.Language, bool) {
	switch ext {
	case ".java":
		return java.GetLanguage(), true
	case ".go":
		return golang.GetLanguage(), true
	default:
		return nil, false
	}
}

// Node types whose contents must never be renamed.
var protectedTypes = map[string]bool{
	// java
	"line_comment":   true,
	"block_comment":  true,
	"string_literal": true,
	// go
	"comment":                    true,
	"interpreted_string_literal": true,
	"raw_string_literal":         true,
}

// ProtectedSpans parses src and returns the literal/comment byte ranges in
// document order.
func ProtectedSpans(lang *sitter.Language, src []byte) ([]Span, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse for protected spans: %w", err)
	}

	var spans []Span
	collect(tree.RootNode(), &spans)
	return spans, nil
}

func collect(n *sitter.Node, spans *[]Span) {
	if protectedTypes[n.Type()] {
		*spans = append(*spans, Span{Start: n.StartByte(), End: n.EndByte()})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collect(n.Child(i), spans)
	}
}

// ReplaceOutside substitutes every match of find that does not overlap a
// protected span. Matches inside strings or comments survive unchanged, so
// the observable keep/rename behavior is the same as the regex pipeline for
// code outside literals.
func ReplaceOutside(lang *sitter.Language, find *regexp.Regexp, replaceWith, text string) (string, error) {
	spans, err := ProtectedSpans(lang, []byte(text))
	if err != nil {
		return "", err
	}

	matches := find.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		if overlaps(spans, m[0], m[1]) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(find.ReplaceAllString(text[m[0]:m[1]], replaceWith))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func overlaps(spans []Span, start, end int) bool {
	for _, s := range spans {
		if start < int(s.End) && end > int(s.Start) {
			return true
		}
	}
	return false
}
