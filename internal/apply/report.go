package apply

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/ohler55/ojg/oj"

	"github.com/verso-build/verso/internal/rules"
)

// Report summarizes one tree pass. RuleCoverage lists the content-rule
// indices whose path filter covered at least one file; a rule that never
// fires usually means a config typo.
type Report struct {
	Files        int                `json:"files"`
	Transformed  int                `json:"transformed"`
	Copied       int                `json:"copied"`
	Skipped      int                `json:"skipped"`
	Errors       []*rules.FileError `json:"errors"`
	RuleCoverage []uint32           `json:"ruleCoverage"`

	coverage *roaring.Bitmap
}

func newReport() *Report {
	return &Report{
		Errors:   []*rules.FileError{},
		coverage: roaring.New(),
	}
}

func (r *Report) add(res fileResult) {
	r.Files++
	switch {
	case res.err != nil:
		r.Errors = append(r.Errors, res.err)
	case res.skipped:
		r.Skipped++
	case res.transformed:
		r.Transformed++
	default:
		r.Copied++
	}
	for _, idx := range res.matched {
		r.coverage.Add(uint32(idx))
	}
}

// finish freezes derived fields. Errors are ordered by path so identical
// runs produce identical reports regardless of worker scheduling.
func (r *Report) finish() *Report {
	sort.Slice(r.Errors, func(i, j int) bool { return r.Errors[i].Path < r.Errors[j].Path })
	r.RuleCoverage = r.coverage.ToArray()
	return r
}

// OK reports whether the pass completed without per-file errors.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// JSON renders the report for --report output and the MCP surface.
func (r *Report) JSON() ([]byte, error) {
	return oj.Marshal(r, 2)
}
