// Package apply walks a source tree and materializes the versioned copy.
// It is the only component that touches the filesystem; everything above it
// hands over an immutable rule set. Files are independent units of work:
// one file's failure is recorded and the pass continues.
package apply

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"sort"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/verso-build/verso/internal/cache"
	"github.com/verso-build/verso/internal/output"
	"github.com/verso-build/verso/internal/rules"
)

// FormatterFunc post-processes transformed content before it is written,
// e.g. gofumpt for rewritten Go sources. It must return the input unchanged
// on failure.
type FormatterFunc func(content []byte, path string) []byte

// Applier runs one tree pass for a single (module, version) rule set.
type Applier struct {
	Src billy.Filesystem
	Dst billy.Filesystem
	Set *rules.RuleSet

	// Workers bounds the per-file parallelism; <=0 means GOMAXPROCS.
	// Rule order within a file is sequential regardless.
	Workers int

	// Formatter is optional.
	Formatter FormatterFunc

	// Cache enables incremental re-runs; Fingerprint scopes its entries.
	Cache       *cache.Cache
	Fingerprint string
}

type fileResult struct {
	rel         string
	dest        string
	transformed bool
	copied      bool
	skipped     bool
	matched     []int
	err         *rules.FileError
}

// Run transforms every file reachable under the source root. The returned
// error is non-nil only for pass-level failures (walk error, cancellation);
// per-file failures live in the report.
func (a *Applier) Run(ctx context.Context) (*Report, error) {
	files, err := a.listFiles()
	if err != nil {
		return nil, fmt.Errorf("walk source tree: %w", err)
	}

	workers := a.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	output.Debug("starting pass", "files", len(files), "workers", workers)

	report := newReport()
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range files {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			res := a.transformOne(rel)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Aborted between files; a partial destination tree must be
		// discarded, not resumed.
		return report.finish(), err
	}
	return report.finish(), nil
}

// listFiles collects every regular file under the source root, sorted so
// scheduling order is stable run to run.
func (a *Applier) listFiles() ([]string, error) {
	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := a.Src.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, fi := range entries {
			p := path.Join(dir, fi.Name())
			switch {
			case fi.IsDir():
				if err := walk(p); err != nil {
					return err
				}
			case fi.Mode().IsRegular():
				files = append(files, p)
			}
		}
		return nil
	}
	if err := walk("."); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (a *Applier) transformOne(rel string) fileResult {
	dest := a.Set.ApplyPath(rel)
	res := fileResult{rel: rel, dest: dest}

	data, err := util.ReadFile(a.Src, rel)
	if err != nil {
		res.err = rules.NewFileError(rel, fmt.Errorf("read: %v: %w", err, rules.ErrIO))
		return res
	}

	fi, err := a.Src.Stat(rel)
	if err != nil {
		res.err = rules.NewFileError(rel, fmt.Errorf("stat: %v: %w", err, rules.ErrIO))
		return res
	}
	perm := fi.Mode().Perm()

	var srcHash string
	if a.Cache != nil {
		srcHash = cache.HashBytes(data)
		if a.cacheHit(rel, dest, srcHash) {
			res.skipped = true
			return res
		}
	}

	if a.Set.MatchesContent(dest) && !isBinary(data) {
		text, matched, err := a.Set.ApplyContent(dest, string(data))
		res.matched = matched
		if err != nil {
			res.err = rules.NewFileError(rel, err)
			return res
		}
		data = []byte(text)
		if a.Formatter != nil {
			data = a.Formatter(data, dest)
		}
		res.transformed = true
	} else {
		res.copied = true
	}

	if err := util.WriteFile(a.Dst, dest, data, perm); err != nil {
		res.err = rules.NewFileError(rel, fmt.Errorf("write %s: %v: %w", dest, err, rules.ErrIO))
		return res
	}

	if a.Cache != nil {
		entry := cache.Entry{SrcHash: srcHash, DestPath: dest, OutHash: cache.HashBytes(data)}
		if err := a.Cache.Store(a.Fingerprint, rel, entry); err != nil {
			output.Debug("cache store failed", "file", rel, "error", err)
		}
	}
	return res
}

// cacheHit reports whether the destination already holds the output this
// source file produced under the current fingerprint. Anything stale or
// missing forces a rewrite.
func (a *Applier) cacheHit(rel, dest, srcHash string) bool {
	entry, err := a.Cache.Lookup(a.Fingerprint, rel)
	if err != nil {
		output.Debug("cache lookup failed", "file", rel, "error", err)
		return false
	}
	if entry == nil || entry.SrcHash != srcHash || entry.DestPath != dest {
		return false
	}
	existing, err := util.ReadFile(a.Dst, dest)
	if err != nil {
		return false
	}
	return cache.HashBytes(existing) == entry.OutHash
}
