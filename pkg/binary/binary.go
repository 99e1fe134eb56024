// Package binary models a Mach-O executable as a set of typed segments and
// an exported-symbol table, behind a format-inspection capability interface.
package binary

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrBinaryNotFound means the binary path is missing or unreadable.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrBinaryParse means the binary could not be parsed as a Mach-O image.
	ErrBinaryParse = errors.New("failed to parse binary")
)

// Inspector is the capability needed to turn a binary into segments and
// exported symbols. The default implementation parses load commands and the
// symbol table directly; ToolInspector wraps otool/nm for environments where
// a native parse is not possible.
type Inspector interface {
	// Validate checks that the file exists and carries a recognized magic.
	Validate() error
	// Segments returns the binary's named segments in discovery order.
	Segments(ctx context.Context) ([]Segment, error)
	// Symbols returns the exported name to address table.
	Symbols(ctx context.Context) (map[string]uint64, error)
}
