// Package api defines the versioning configuration users write. A config
// declares the version token, the package keep/rename lists, and optional
// per-module overrides; it is the single input from which a rule set is
// composed for each (module, version) pair.
package api

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the root of a verso.hcl file.
type Config struct {
	// VersionToken is the namespace the versioned copy is placed under,
	// e.g. "abi45_0_0". It must be a valid path segment and a valid
	// package-name prefix.
	VersionToken string `hcl:"version_token"`

	// PackagesToKeep are package names protected from the rename pass.
	PackagesToKeep []string `hcl:"packages_to_keep,optional"`

	// PackagesToRename are package names rewritten to <token>.<name>.
	PackagesToRename []string `hcl:"packages_to_rename,optional"`

	// ImportMarker is the comment replaced by a version-namespaced import.
	ImportMarker string `hcl:"import_marker,optional"`

	// ImportPackage is the package imported at the marker site.
	ImportPackage string `hcl:"import_package,optional"`

	// StripStartMarker / StripEndMarker override the default region markers.
	StripStartMarker string `hcl:"strip_start_marker,optional"`
	StripEndMarker   string `hcl:"strip_end_marker,optional"`

	// ProtectedSpans enables syntax-aware renaming: occurrences inside
	// string literals and comments are left untouched for languages with
	// a registered grammar.
	ProtectedSpans bool `hcl:"protected_spans,optional"`

	Modules []ModuleConfig `hcl:"module,block"`
}

// ModuleConfig layers module-specific transforms on top of the base set.
// Overrides extend the base rule lists; they never replace them.
type ModuleConfig struct {
	Name string `hcl:"name,label"`

	// StripRegions appends a region-stripping content rule for this module.
	StripRegions bool `hcl:"strip_regions,optional"`

	PathRules    []PathRuleConfig    `hcl:"path_rule,block"`
	ContentRules []ContentRuleConfig `hcl:"content_rule,block"`
}

// PathRuleConfig is a declarative path rename rule.
type PathRuleConfig struct {
	Find        string `hcl:"find"`
	ReplaceWith string `hcl:"replace_with"`
	Unless      string `hcl:"unless,optional"`
}

// ContentRuleConfig is a declarative content substitution rule.
type ContentRuleConfig struct {
	Paths       []string `hcl:"paths"`
	Find        string   `hcl:"find"`
	ReplaceWith string   `hcl:"replace_with"`
}

// tokenPattern: a path segment that is also usable as an identifier prefix
// in the package namespaces we rewrite.
var tokenPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks structural invariants the HCL schema cannot express.
func (c *Config) Validate() error {
	if !tokenPattern.MatchString(c.VersionToken) {
		return fmt.Errorf("version_token %q is not a valid path segment and identifier prefix", c.VersionToken)
	}
	seen := make(map[string]bool, len(c.Modules))
	for _, m := range c.Modules {
		if seen[m.Name] {
			return fmt.Errorf("duplicate module block %q", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// Module returns the override block for name, or nil when none is declared.
func (c *Config) Module(name string) *ModuleConfig {
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i]
		}
	}
	return nil
}
