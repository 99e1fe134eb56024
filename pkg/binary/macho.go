package binary

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/blacktop/go-macho"

	"github.com/blacktop/addrdb/internal/magic"
)

// MachoInspector parses the binary's load commands and symbol table directly
// with go-macho. This is the default Inspector.
type MachoInspector struct {
	path string
}

func NewMachoInspector(path string) *MachoInspector {
	return &MachoInspector{path: path}
}

func (i *MachoInspector) Validate() error {
	fi, err := os.Stat(i.path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, i.path)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrBinaryNotFound, i.path)
	}
	if ok, err := magic.IsMachO(i.path); !ok {
		return fmt.Errorf("%w: %v", ErrBinaryParse, err)
	}
	return nil
}

func (i *MachoInspector) Segments(ctx context.Context) ([]Segment, error) {
	m, err := macho.Open(i.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinaryParse, err)
	}
	defer m.Close()

	var segs []Segment
	for _, seg := range m.Segments() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segs = append(segs, Segment{
			Name:     seg.Name,
			Addr:     seg.Addr,
			Size:     seg.Memsz,
			Offset:   seg.Offset,
			Filesz:   seg.Filesz,
			Category: CategoryForName(seg.Name),
		})
	}
	return segs, nil
}

func (i *MachoInspector) Symbols(ctx context.Context) (map[string]uint64, error) {
	m, err := macho.Open(i.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinaryParse, err)
	}
	defer m.Close()

	syms := make(map[string]uint64)
	if m.Symtab == nil {
		log.Debugf("%s has no LC_SYMTAB", i.path)
		return syms, nil
	}
	for _, sym := range m.Symtab.Syms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sym.Type.IsDebugSym() || !sym.Type.IsExternalSym() {
			continue
		}
		if !sym.Type.IsDefinedInSection() && !sym.Type.IsAbsoluteSym() {
			continue
		}
		if sym.Name == "" || sym.Value == 0 {
			continue
		}
		syms[sym.Name] = sym.Value
	}
	return syms, nil
}
