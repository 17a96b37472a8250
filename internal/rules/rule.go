// Package rules defines the primitive find/replace rules of the versioning
// engine and the ordered rule sets composed from them. A RuleSet is built
// once per (module, version) pair and consumed read-only by the applier.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathRule rewrites a file's slash-separated relative path. Every matching
// rule in a chain is applied, in declared order; later rules observe the
// output of earlier ones.
type PathRule struct {
	Find        *regexp.Regexp
	ReplaceWith string

	// Unless skips the rule when the path already matches. RE2 has no
	// lookahead, so rules whose replacement would re-match their own
	// output carry an explicit guard to stay idempotent.
	Unless *regexp.Regexp
}

// NewPathRule compiles a path rule. Compilation failure wraps
// ErrPatternCompile.
func NewPathRule(find, replaceWith string) (PathRule, error) {
	re, err := regexp.Compile(find)
	if err != nil {
		return PathRule{}, fmt.Errorf("path rule %q: %v: %w", find, err, ErrPatternCompile)
	}
	return PathRule{Find: re, ReplaceWith: replaceWith}, nil
}

// NewGuardedPathRule compiles a path rule with an Unless guard.
func NewGuardedPathRule(find, replaceWith, unless string) (PathRule, error) {
	r, err := NewPathRule(find, replaceWith)
	if err != nil {
		return PathRule{}, err
	}
	g, err := regexp.Compile(unless)
	if err != nil {
		return PathRule{}, fmt.Errorf("path rule guard %q: %v: %w", unless, err, ErrPatternCompile)
	}
	r.Unless = g
	return r, nil
}

// Apply rewrites path, replacing every non-overlapping match.
func (r PathRule) Apply(path string) string {
	if r.Unless != nil && r.Unless.MatchString(path) {
		return path
	}
	return r.Find.ReplaceAllString(path, r.ReplaceWith)
}

// TransformFunc is an arbitrary text-to-text transform (e.g. region
// stripping) scoped by a content rule's path globs.
type TransformFunc func(text string) (string, error)

// ContentRule rewrites file content. Exactly one of Find/ReplaceWith or
// Transform is set. Paths are doublestar globs matched against the file's
// post-path-rule relative path.
type ContentRule struct {
	Paths       []string
	Find        *regexp.Regexp
	ReplaceWith string
	Transform   TransformFunc
}

// NewContentRule compiles a regex substitution rule. ReplaceWith may
// reference captured groups ($1, ${name}).
func NewContentRule(paths []string, find, replaceWith string) (ContentRule, error) {
	re, err := regexp.Compile(find)
	if err != nil {
		return ContentRule{}, fmt.Errorf("content rule %q: %v: %w", find, err, ErrPatternCompile)
	}
	return ContentRule{Paths: paths, Find: re, ReplaceWith: replaceWith}, nil
}

// NewTransformRule builds a content rule around an arbitrary transform.
func NewTransformRule(paths []string, fn TransformFunc) ContentRule {
	return ContentRule{Paths: paths, Transform: fn}
}

// Matches reports whether the rule's path filter covers path.
func (c ContentRule) Matches(path string) bool {
	path = strings.TrimPrefix(path, "/")
	for _, glob := range c.Paths {
		if ok, err := doublestar.Match(glob, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Apply runs the rule against text. All matches are replaced (global mode):
// repeated package references per file are the expected case.
func (c ContentRule) Apply(text string) (string, error) {
	if c.Transform != nil {
		return c.Transform(text)
	}
	return c.Find.ReplaceAllString(text, c.ReplaceWith), nil
}

// RuleSet is the per-(module, version) transform configuration. Rule order
// within each list is significant and fixed: this is a sequential pipeline,
// not a fixed-point rewrite.
type RuleSet struct {
	Path    []PathRule
	Content []ContentRule
}

// ApplyPath folds the whole path-rule chain over rel.
func (s *RuleSet) ApplyPath(rel string) string {
	for _, r := range s.Path {
		rel = r.Apply(rel)
	}
	return rel
}

// MatchesContent reports whether at least one content rule covers path.
// Files with no covering rule are copied byte-for-byte.
func (s *RuleSet) MatchesContent(path string) bool {
	for _, c := range s.Content {
		if c.Matches(path) {
			return true
		}
	}
	return false
}

// ApplyContent folds every matching content rule over text in declared
// order. matched holds the indices of rules whose filter covered path,
// regardless of whether their pattern found anything.
func (s *RuleSet) ApplyContent(path, text string) (out string, matched []int, err error) {
	out = text
	for i, c := range s.Content {
		if !c.Matches(path) {
			continue
		}
		matched = append(matched, i)
		out, err = c.Apply(out)
		if err != nil {
			return "", matched, err
		}
	}
	return out, matched, nil
}
