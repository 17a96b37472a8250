// Package ruleset composes the per-(module, version) rule set from a
// versioning config. Layering order is fixed: generic path rules, keep-list
// marking, renames, sentinel cleanup, import injection, then module
// overrides. Later rules observe earlier output, so the order is the
// disambiguation policy for overlapping patterns.
package ruleset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/verso-build/verso/api"
	"github.com/verso-build/verso/internal/rules"
	"github.com/verso-build/verso/internal/tokenize"
)

// KeepSentinel is the neutral prefix protecting keep-list identifiers
// during the rename pass. Marking, renaming, then unmarking guarantees
// protected names survive regardless of pattern overlap; a combined regex
// with a skip-list is fragile when package names prefix one another.
const KeepSentinel = "__VERSO_KEEP__"

// sourceGlobs are the files subject to package-identifier rewriting.
var sourceGlobs = []string{"**/*.java", "**/*.kt", "**/*.xml", "**/*.gradle"}

// Build composes the rule set for (module, versionToken). An unknown module
// name yields the base set plus an error wrapping rules.ErrUnknownModule;
// callers must treat that as a warning, never a build failure.
func Build(cfg *api.Config, module string) (*rules.RuleSet, error) {
	token := cfg.VersionToken
	set := &rules.RuleSet{}

	// 1. Generic path rules. The relocation rule carries a guard so the
	// chain is idempotent; the manifest sentinel keeps AndroidManifest.xml
	// from being processed in-place during the same pass.
	relocate, err := rules.NewGuardedPathRule(
		`src/main/(?:java|kotlin)(/|$)`,
		"src/main/java/"+token+"$1",
		`src/main/java/`+regexp.QuoteMeta(token)+`(/|$)`,
	)
	if err != nil {
		return nil, err
	}
	manifest, err := rules.NewPathRule(`(^|/)AndroidManifest\.xml$`, "${1}AndroidManifest.tmp.xml")
	if err != nil {
		return nil, err
	}
	set.Path = append(set.Path, relocate, manifest)

	// 2. Keep-list marking.
	for _, pkg := range cfg.PackagesToKeep {
		rs, err := substitutionRules(pkg, KeepSentinel+pkg, cfg.ProtectedSpans)
		if err != nil {
			return nil, err
		}
		set.Content = append(set.Content, rs...)
	}

	// 3. Renames. The replacement carries the sentinel directly in front of
	// the package name: its trailing underscore removes the word boundary,
	// so an overlapping rename later in the list cannot re-match this
	// rule's output and double-prefix it. Placing the sentinel before the
	// token would leave a boundary at the package name and not protect
	// anything.
	for _, pkg := range cfg.PackagesToRename {
		rs, err := substitutionRules(pkg, token+"."+KeepSentinel+pkg, cfg.ProtectedSpans)
		if err != nil {
			return nil, err
		}
		set.Content = append(set.Content, rs...)
	}

	// 4. Sentinel cleanup restores kept identifiers and unwraps renamed ones.
	if len(cfg.PackagesToKeep) > 0 || len(cfg.PackagesToRename) > 0 {
		unmark, err := rules.NewContentRule(sourceGlobs, regexp.QuoteMeta(KeepSentinel), "")
		if err != nil {
			return nil, err
		}
		set.Content = append(set.Content, unmark)
	}

	// 5. Import-marker injection, one rule per dialect.
	if cfg.ImportMarker != "" && cfg.ImportPackage != "" {
		marker := regexp.QuoteMeta(cfg.ImportMarker)
		javaImport, err := rules.NewContentRule([]string{"**/*.java"}, marker,
			"import "+token+"."+cfg.ImportPackage+";")
		if err != nil {
			return nil, err
		}
		ktImport, err := rules.NewContentRule([]string{"**/*.kt"}, marker,
			"import "+token+"."+cfg.ImportPackage)
		if err != nil {
			return nil, err
		}
		set.Content = append(set.Content, javaImport, ktImport)
	}

	// 6. Module overrides, layered after the base set.
	if module == "" {
		return set, nil
	}
	mod := cfg.Module(module)
	if mod == nil {
		return set, fmt.Errorf("module %q: %w", module, rules.ErrUnknownModule)
	}
	if err := applyOverrides(set, cfg, mod); err != nil {
		return nil, err
	}
	return set, nil
}

// substitutionRules emits the content rules replacing standalone occurrences
// of pkg. With protected spans enabled, files with a registered grammar get
// a syntax-aware transform that skips strings and comments; everything else
// keeps the plain regex.
func substitutionRules(pkg, replacement string, protectedSpans bool) ([]rules.ContentRule, error) {
	find := `\b` + regexp.QuoteMeta(pkg) + `\b`

	if !protectedSpans {
		r, err := rules.NewContentRule(sourceGlobs, find, replacement)
		if err != nil {
			return nil, err
		}
		return []rules.ContentRule{r}, nil
	}

	re, err := regexp.Compile(find)
	if err != nil {
		return nil, fmt.Errorf("package pattern %q: %v: %w", find, err, rules.ErrPatternCompile)
	}
	lang, _ := tokenize.LanguageForExt(".java")
	javaRule := rules.NewTransformRule([]string{"**/*.java"}, func(text string) (string, error) {
		return tokenize.ReplaceOutside(lang, re, replacement, text)
	})

	var rest []string
	for _, g := range sourceGlobs {
		if g != "**/*.java" {
			rest = append(rest, g)
		}
	}
	plain, err := rules.NewContentRule(rest, find, replacement)
	if err != nil {
		return nil, err
	}
	return []rules.ContentRule{javaRule, plain}, nil
}

func applyOverrides(set *rules.RuleSet, cfg *api.Config, mod *api.ModuleConfig) error {
	if mod.StripRegions {
		start, end := cfg.StripStartMarker, cfg.StripEndMarker
		if start == "" {
			start = regexp.QuoteMeta(rules.DefaultStripStart)
		}
		if end == "" {
			end = regexp.QuoteMeta(rules.DefaultStripEnd)
		}
		strip, err := rules.RegionStripper(start, end)
		if err != nil {
			return err
		}
		set.Content = append(set.Content, rules.NewTransformRule(sourceGlobs, strip))
	}

	for _, pr := range mod.PathRules {
		var (
			r   rules.PathRule
			err error
		)
		if pr.Unless != "" {
			r, err = rules.NewGuardedPathRule(pr.Find, pr.ReplaceWith, pr.Unless)
		} else {
			r, err = rules.NewPathRule(pr.Find, pr.ReplaceWith)
		}
		if err != nil {
			return err
		}
		set.Path = append(set.Path, r)
	}

	for _, cr := range mod.ContentRules {
		r, err := rules.NewContentRule(cr.Paths, cr.Find, cr.ReplaceWith)
		if err != nil {
			return err
		}
		set.Content = append(set.Content, r)
	}
	return nil
}

// Fingerprint identifies a (config, module) pair for the incremental cache.
// Any change to the inputs that could alter output bytes changes the
// fingerprint.
func Fingerprint(cfg *api.Config, module string) string {
	h := sha256.New()
	fmt.Fprintf(h, "token=%s\n", cfg.VersionToken)
	fmt.Fprintf(h, "keep=%s\n", strings.Join(cfg.PackagesToKeep, ","))
	fmt.Fprintf(h, "rename=%s\n", strings.Join(cfg.PackagesToRename, ","))
	fmt.Fprintf(h, "import=%s:%s\n", cfg.ImportMarker, cfg.ImportPackage)
	fmt.Fprintf(h, "strip=%s:%s\n", cfg.StripStartMarker, cfg.StripEndMarker)
	fmt.Fprintf(h, "spans=%v\n", cfg.ProtectedSpans)
	fmt.Fprintf(h, "module=%s\n", module)
	if mod := cfg.Module(module); mod != nil {
		fmt.Fprintf(h, "strip_regions=%v\n", mod.StripRegions)
		for _, pr := range mod.PathRules {
			fmt.Fprintf(h, "pr=%s|%s|%s\n", pr.Find, pr.ReplaceWith, pr.Unless)
		}
		for _, cr := range mod.ContentRules {
			fmt.Fprintf(h, "cr=%s|%s|%s\n", strings.Join(cr.Paths, ","), cr.Find, cr.ReplaceWith)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
