package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying transform failures. The applier maps these to
// per-file error kinds; ErrUnknownModule is the only non-fatal one.
var (
	ErrMalformedRegion = errors.New("malformed strip region")
	ErrPatternCompile  = errors.New("pattern compile error")
	ErrIO              = errors.New("io error")
	ErrUnknownModule   = errors.New("unknown module")
)

// FileError records a single file's failure during a tree pass.
// The pass aggregates these instead of aborting: files are independent
// units of work, not parts of a transaction.
type FileError struct {
	Path    string `json:"file"`
	Kind    string `json:"errorKind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// NewFileError wraps err with the file path and a kind derived from the
// sentinel it matches.
func NewFileError(path string, err error) *FileError {
	return &FileError{
		Path:    path,
		Kind:    kindOf(err),
		Message: err.Error(),
		Err:     err,
	}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrMalformedRegion):
		return "MalformedRegion"
	case errors.Is(err, ErrPatternCompile):
		return "PatternCompileError"
	case errors.Is(err, ErrUnknownModule):
		return "UnknownModule"
	default:
		return "IOError"
	}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
