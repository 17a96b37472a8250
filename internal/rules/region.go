package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Default region markers. Lines carrying them, and everything in between,
// are removed from the versioned copy.
const (
	DefaultStripStart = "WHEN_VERSIONING_REMOVE_FROM_HERE"
	DefaultStripEnd   = "WHEN_VERSIONING_REMOVE_TO_HERE"
)

// StripRegions removes every line range delimited by a start-marker line and
// the next end-marker line, both inclusive. Regions are independent and
// removed in document order. Text without a start marker is returned
// unchanged.
//
// A start marker with no following end marker fails with ErrMalformedRegion
// rather than silently dropping to end-of-file: a dropped region could leave
// unintended code in the versioned output.
func StripRegions(start, end *regexp.Regexp, text string) (string, error) {
	if !start.MatchString(text) {
		return text, nil
	}

	lines := strings.SplitAfter(text, "\n")
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(lines); {
		if !start.MatchString(lines[i]) {
			out.WriteString(lines[i])
			i++
			continue
		}
		j := i + 1
		for j < len(lines) && !end.MatchString(lines[j]) {
			j++
		}
		if j == len(lines) {
			return "", fmt.Errorf("region opened at line %d has no closing marker: %w", i+1, ErrMalformedRegion)
		}
		i = j + 1
	}
	return out.String(), nil
}

// RegionStripper compiles the marker patterns into a TransformFunc usable
// as a content rule.
func RegionStripper(startPattern, endPattern string) (TransformFunc, error) {
	start, err := regexp.Compile(startPattern)
	if err != nil {
		return nil, fmt.Errorf("strip start marker %q: %v: %w", startPattern, err, ErrPatternCompile)
	}
	end, err := regexp.Compile(endPattern)
	if err != nil {
		return nil, fmt.Errorf("strip end marker %q: %v: %w", endPattern, err, ErrPatternCompile)
	}
	return func(text string) (string, error) {
		return StripRegions(start, end, text)
	}, nil
}
