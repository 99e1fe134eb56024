package binary

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blacktop/addrdb/internal/magic"
	"github.com/blacktop/addrdb/internal/utils"
)

const (
	segmentToolTimeout = 30 * time.Second
	symbolToolTimeout  = 120 * time.Second
)

var segFieldRE = regexp.MustCompile(`^(vmaddr|vmsize|fileoff|filesize)\s+(0x[0-9a-fA-F]+|\d+)$`)

// ToolInspector shells out to otool(1) and nm(1) and parses their text
// output. It exists for environments where the native parser cannot handle
// the image; prefer MachoInspector.
type ToolInspector struct {
	path string
}

func NewToolInspector(path string) *ToolInspector {
	return &ToolInspector{path: path}
}

func (i *ToolInspector) Validate() error {
	if _, err := os.Stat(i.path); err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, i.path)
	}
	if ok, err := magic.IsMachO(i.path); !ok {
		return fmt.Errorf("%w: %v", ErrBinaryParse, err)
	}
	return nil
}

func (i *ToolInspector) Segments(ctx context.Context) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, segmentToolTimeout)
	defer cancel()

	var out []byte
	err := utils.Retry(2, time.Second, func() error {
		var rerr error
		out, rerr = exec.CommandContext(ctx, "otool", "-l", i.path).Output()
		return rerr
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: otool timed out parsing segments", ErrBinaryParse)
		}
		return nil, fmt.Errorf("%w: otool failed: %v", ErrBinaryParse, err)
	}

	return parseOtoolSegments(out), nil
}

// parseOtoolSegments walks `otool -l` output collecting LC_SEGMENT_64 load
// commands.
func parseOtoolSegments(out []byte) []Segment {
	var segs []Segment
	var cur *Segment

	flush := func() {
		if cur != nil && strings.HasPrefix(cur.Name, "__") {
			cur.Category = CategoryForName(cur.Name)
			segs = append(segs, *cur)
		}
		cur = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.Contains(line, "cmd LC_SEGMENT_64"):
			flush()
			cur = &Segment{}
		case cur != nil && strings.HasPrefix(line, "segname "):
			cur.Name = strings.Fields(line)[1]
		case cur != nil && strings.HasPrefix(line, "cmd "):
			// next load command, current segment is complete
			flush()
		case cur != nil:
			if m := segFieldRE.FindStringSubmatch(line); m != nil {
				var val uint64
				var err error
				if strings.HasPrefix(m[2], "0x") {
					val, err = strconv.ParseUint(strings.TrimPrefix(m[2], "0x"), 16, 64)
				} else {
					val, err = strconv.ParseUint(m[2], 10, 64)
				}
				if err != nil {
					continue
				}
				switch m[1] {
				case "vmaddr":
					cur.Addr = val
				case "vmsize":
					cur.Size = val
				case "fileoff":
					cur.Offset = val
				case "filesize":
					cur.Filesz = val
				}
			}
		}
	}
	flush()

	return segs
}

func (i *ToolInspector) Symbols(ctx context.Context) (map[string]uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, symbolToolTimeout)
	defer cancel()

	var out []byte
	err := utils.Retry(2, time.Second, func() error {
		var rerr error
		out, rerr = exec.CommandContext(ctx, "nm", "-g", "-n", i.path).Output()
		return rerr
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("nm timed out")
		}
		return nil, fmt.Errorf("nm failed: %v", err)
	}

	return parseNmSymbols(out), nil
}

// parseNmSymbols parses `nm -g -n` lines of the form `<address> <type> <name>`.
func parseNmSymbols(out []byte) map[string]uint64 {
	syms := make(map[string]uint64)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			continue
		}
		syms[parts[2]] = addr
	}
	return syms
}
