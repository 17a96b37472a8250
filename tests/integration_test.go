package tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verso-build/verso/api"
	"github.com/verso-build/verso/internal/apply"
	"github.com/verso-build/verso/internal/cache"
	"github.com/verso-build/verso/internal/ruleset"
)

const testConfig = `
version_token = "abi45_0_0"

packages_to_keep   = ["com.facebook.yoga"]
packages_to_rename = ["com.facebook.react", "com.facebook.yoga", "expo.modules"]

import_marker  = "// EXPO_VERSIONING_NEEDS_EXPOVIEW"
import_package = "host.exp.expoview.R"

module "expoview" {
  strip_regions = true

  content_rule {
    paths        = ["**/*.gradle"]
    find         = "versionName \"[^\"]+\""
    replace_with = "versionName \"45.0.0\""
  }
}
`

const bridgeSource = `package com.facebook.react.bridge

import com.facebook.yoga.YogaNode
import expo.modules.core.Module

// EXPO_VERSIONING_NEEDS_EXPOVIEW

class Bridge {
  // WHEN_VERSIONING_REMOVE_FROM_HERE
  fun devOnly() {}
  // WHEN_VERSIONING_REMOVE_TO_HERE
  fun run() {}
}
`

// fixture holds a real on-disk source tree plus the config that versions it.
type fixture struct {
	cfg     *api.Config
	srcDir  string
	destDir string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "verso.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))
	cfg, err := api.Load(cfgPath)
	require.NoError(t, err)

	srcDir := filepath.Join(dir, "src")
	files := map[string]string{
		"src/main/kotlin/com/facebook/react/bridge/Bridge.kt": bridgeSource,
		"src/main/AndroidManifest.xml":                         `<manifest package="com.facebook.react"/>`,
		"build.gradle": "android {\n  versionName \"0.0.0-dev\"\n}\n",
		"assets/logo.png": "\x89PNG\x00\x00binary",
	}
	for rel, content := range files {
		p := filepath.Join(srcDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	return &fixture{cfg: cfg, srcDir: srcDir, destDir: filepath.Join(dir, "dest")}
}

func (f *fixture) run(t *testing.T, c *cache.Cache, fingerprint string) *apply.Report {
	t.Helper()
	set, err := ruleset.Build(f.cfg, "expoview")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(f.destDir, 0o755))

	applier := &apply.Applier{
		Src:         osfs.New(f.srcDir),
		Dst:         osfs.New(f.destDir),
		Set:         set,
		Cache:       c,
		Fingerprint: fingerprint,
	}
	report, err := applier.Run(context.Background())
	require.NoError(t, err)
	return report
}

func (f *fixture) dest(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.destDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestEndToEnd_VersionedTree(t *testing.T) {
	f := setup(t)
	report := f.run(t, nil, "")
	require.Empty(t, report.Errors)
	assert.Equal(t, 4, report.Files)

	// Kotlin source relocates under the versioned package root.
	bridge := f.dest(t, "src/main/java/abi45_0_0/com/facebook/react/bridge/Bridge.kt")

	assert.Contains(t, bridge, "package abi45_0_0.com.facebook.react.bridge")
	assert.Contains(t, bridge, "import abi45_0_0.expo.modules.core.Module")

	// Kept package survives the rename pass untouched, with no sentinel left.
	assert.Contains(t, bridge, "import com.facebook.yoga.YogaNode")
	assert.NotContains(t, bridge, "abi45_0_0.com.facebook.yoga")
	assert.NotContains(t, bridge, "__VERSO_KEEP__")

	// Kotlin marker expansion has no trailing semicolon.
	assert.Contains(t, bridge, "import abi45_0_0.host.exp.expoview.R\n")
	assert.NotContains(t, bridge, "R;\n")

	// Version-gated region is gone, markers included.
	assert.NotContains(t, bridge, "devOnly")
	assert.NotContains(t, bridge, "WHEN_VERSIONING_REMOVE")
	assert.Contains(t, bridge, "fun run()")

	// Manifest never lands under its original name.
	_, err := os.Stat(filepath.Join(f.destDir, "src/main/AndroidManifest.xml"))
	require.True(t, os.IsNotExist(err))
	manifest := f.dest(t, "src/main/AndroidManifest.tmp.xml")
	assert.Contains(t, manifest, "abi45_0_0.com.facebook.react")

	// Module override rewrote the gradle version, on top of the base rules.
	gradle := f.dest(t, "build.gradle")
	assert.Contains(t, gradle, `versionName "45.0.0"`)

	// Binary asset copied byte for byte.
	assert.Equal(t, "\x89PNG\x00\x00binary", f.dest(t, "assets/logo.png"))
}

func TestEndToEnd_SecondPassIsIdentical(t *testing.T) {
	f := setup(t)
	f.run(t, nil, "")

	snapshot := map[string]string{}
	require.NoError(t, filepath.Walk(f.destDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snapshot[path] = string(data)
		return nil
	}))

	report := f.run(t, nil, "")
	require.Empty(t, report.Errors)

	for path, content := range snapshot {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, string(data), path)
	}
}

func TestEndToEnd_IncrementalSkipsCleanFiles(t *testing.T) {
	f := setup(t)
	c, err := cache.Open(filepath.Join(t.TempDir(), "pass.db"))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	fp := ruleset.Fingerprint(f.cfg, "expoview")

	first := f.run(t, c, fp)
	assert.Equal(t, 0, first.Skipped)

	second := f.run(t, c, fp)
	assert.Equal(t, second.Files, second.Skipped)

	// A different token invalidates the whole pass.
	f.cfg.VersionToken = "abi46_0_0"
	third := f.run(t, c, ruleset.Fingerprint(f.cfg, "expoview"))
	assert.Equal(t, 0, third.Skipped)
}
