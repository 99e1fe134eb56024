// Package scan implements wildcard byte-pattern search over a binary's file
// ranges. It is the resolver's reserved fallback strategy: the contract is
// fixed here but the default resolution chain does not invoke it.
package scan

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const chunkSize = 1 << 20

// Pattern is a parsed wildcard byte pattern like "48 89 5C 24 ??".
type Pattern struct {
	bytes []byte
	mask  []bool // true = literal byte must match
}

// ParsePattern parses a space-separated token pattern. Each token is either
// a two-digit hex byte or a "?"/"??" wildcard.
func ParsePattern(s string) (*Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(s) {
		if tok == "?" || tok == "??" {
			p.bytes = append(p.bytes, 0)
			p.mask = append(p.mask, false)
			continue
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern byte %q: %w", tok, err)
		}
		p.bytes = append(p.bytes, byte(b))
		p.mask = append(p.mask, true)
	}
	if len(p.bytes) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return &p, nil
}

// Len returns the pattern length in bytes.
func (p *Pattern) Len() int {
	return len(p.bytes)
}

// MatchAt reports whether the pattern matches data at offset i.
func (p *Pattern) MatchAt(data []byte, i int) bool {
	if i+len(p.bytes) > len(data) {
		return false
	}
	for j, pb := range p.bytes {
		if p.mask[j] && data[i+j] != pb {
			return false
		}
	}
	return true
}

// Range restricts a scan to a file byte range.
type Range struct {
	Off  uint64
	Size uint64
}

// Scanner performs masked linear scans over a binary file.
type Scanner struct {
	path string
}

func NewScanner(path string) *Scanner {
	return &Scanner{path: path}
}

// Scan searches for pattern within r (the whole file when r is nil) and
// returns the file offsets of matches, capped at maxMatches. The scan is a
// simple masked linear pass: O(rangeSize x patternLength) worst case.
func (s *Scanner) Scan(pattern string, r *Range, maxMatches int) ([]uint64, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	start := uint64(0)
	var length uint64
	if r != nil {
		start = r.Off
		length = r.Size
	} else {
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		length = uint64(fi.Size())
	}

	if maxMatches <= 0 {
		maxMatches = 100
	}

	var matches []uint64
	buf := make([]byte, chunkSize+p.Len()-1)
	for off := start; off < start+length; off += chunkSize {
		want := len(buf)
		if remaining := start + length - off; remaining < uint64(want) {
			want = int(remaining)
		}
		n, err := f.ReadAt(buf[:want], int64(off))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read at %#x: %w", off, err)
		}
		// overlap of patternLen-1 so matches spanning chunk edges are seen
		limit := n - p.Len() + 1
		if limit > chunkSize {
			limit = chunkSize
		}
		for i := 0; i < limit; i++ {
			if p.MatchAt(buf[:n], i) {
				matches = append(matches, off+uint64(i))
				if len(matches) >= maxMatches {
					return matches, nil
				}
			}
		}
		if err == io.EOF {
			break
		}
	}

	return matches, nil
}
