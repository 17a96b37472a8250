// tree-gen writes a synthetic library source tree for exercising verso:
// java and kotlin packages that reference each other, a manifest, and a
// binary asset. Deterministic for a given seed.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var packages = []string{
	"com.facebook.react",
	"com.facebook.react.bridge",
	"com.facebook.yoga",
	"com.facebook.soloader",
	"expo.modules.core",
}

func main() {
	outDir := flag.String("out", "testtree", "Output directory")
	filesPer := flag.Int("files", 5, "Files per package")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	for _, pkg := range packages {
		dir := filepath.Join(*outDir, "src", "main", "java", filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/")))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
		for i := 0; i < *filesPer; i++ {
			name := fmt.Sprintf("Gen%c%d", 'A'+rng.Intn(26), i)
			var path string
			var content string
			if rng.Intn(3) == 0 {
				path = filepath.Join(dir, name+".kt")
				content = kotlinFile(pkg, name, rng)
			} else {
				path = filepath.Join(dir, name+".java")
				content = javaFile(pkg, name, rng)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				fatal(err)
			}
		}
	}

	manifest := filepath.Join(*outDir, "src", "main", "AndroidManifest.xml")
	if err := os.WriteFile(manifest, []byte(manifestXML()), 0o644); err != nil {
		fatal(err)
	}

	blob := make([]byte, 4096)
	rng.Read(blob)
	asset := filepath.Join(*outDir, "src", "main", "assets", "blob.bin")
	if err := os.MkdirAll(filepath.Dir(asset), 0o755); err != nil {
		fatal(err)
	}
	if err := os.WriteFile(asset, blob, 0o644); err != nil {
		fatal(err)
	}

	fmt.Printf("Generated tree in %s\n", *outDir)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func javaFile(pkg, name string, rng *rand.Rand) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", pkg)
	other := packages[rng.Intn(len(packages))]
	fmt.Fprintf(&b, "import %s.Runtime;\n\n", other)
	fmt.Fprintf(&b, "public class %s {\n", name)
	fmt.Fprintf(&b, "  // %s helper\n", pkg)
	fmt.Fprintf(&b, "  private static final String TAG = \"%s.%s\";\n", pkg, name)
	b.WriteString("  public void run() {}\n")
	b.WriteString("}\n")
	return b.String()
}

func kotlinFile(pkg, name string, rng *rand.Rand) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	other := packages[rng.Intn(len(packages))]
	fmt.Fprintf(&b, "import %s.Runtime\n\n", other)
	fmt.Fprintf(&b, "class %s {\n", name)
	b.WriteString("  fun run() {}\n")
	b.WriteString("}\n")
	return b.String()
}

func manifestXML() string {
	return `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="com.facebook.react">
</manifest>
`
}
