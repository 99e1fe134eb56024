package binary

import "fmt"

// Category classifies a segment by what it holds.
type Category int

const (
	Unknown Category = iota
	Code
	ReadOnlyData
	ReadWriteData
)

func (c Category) String() string {
	switch c {
	case Code:
		return "Code"
	case ReadOnlyData:
		return "ReadOnlyData"
	case ReadWriteData:
		return "ReadWriteData"
	default:
		return "Unknown"
	}
}

// CategoryFromCode maps the 1/2/3 segment codes used by the manual-override
// and output formats.
func CategoryFromCode(code int) Category {
	switch code {
	case 1:
		return Code
	case 2:
		return ReadOnlyData
	case 3:
		return ReadWriteData
	default:
		return Unknown
	}
}

// Code returns the numeric segment code used in the output format.
func (c Category) Code() int {
	return int(c)
}

// fixed segment name to category table
var segmentCategories = map[string]Category{
	"__TEXT":       Code,
	"__DATA_CONST": ReadOnlyData,
	"__DATA":       ReadWriteData,
}

// CategoryForName returns the category for a Mach-O segment name.
func CategoryForName(name string) Category {
	if cat, ok := segmentCategories[name]; ok {
		return cat
	}
	return Unknown
}

// Segment is a named contiguous region of the binary's virtual address space.
type Segment struct {
	Name     string   `json:"name"`
	Addr     uint64   `json:"addr"`
	Size     uint64   `json:"size"`
	Offset   uint64   `json:"offset"`
	Filesz   uint64   `json:"filesz"`
	Category Category `json:"category"`
}

func (s Segment) String() string {
	return fmt.Sprintf("%s addr=%#x size=%#x off=%#x filesz=%#x (%s)",
		s.Name, s.Addr, s.Size, s.Offset, s.Filesz, s.Category)
}

// Contains reports whether addr falls inside the segment's VM range.
func (s Segment) Contains(addr uint64) bool {
	return s.Addr <= addr && addr < s.Addr+s.Size
}

// SegmentMap holds parsed segments in discovery order.
type SegmentMap struct {
	segs []Segment
}

func NewSegmentMap(segs []Segment) *SegmentMap {
	return &SegmentMap{segs: segs}
}

// Segments returns all segments in discovery order.
func (m *SegmentMap) Segments() []Segment {
	return m.segs
}

// Segment returns the first segment with the given name, or nil.
func (m *SegmentMap) Segment(name string) *Segment {
	for i := range m.segs {
		if m.segs[i].Name == name {
			return &m.segs[i]
		}
	}
	return nil
}

// CategoryOf performs a linear containment scan in discovery order and
// returns the first matching segment's category. Addresses outside every
// segment default to Code.
func (m *SegmentMap) CategoryOf(addr uint64) Category {
	for _, seg := range m.segs {
		if seg.Contains(addr) {
			return seg.Category
		}
	}
	return Code
}

// Base returns the VM base address of the first segment with the given
// category.
func (m *SegmentMap) Base(cat Category) (uint64, bool) {
	for _, seg := range m.segs {
		if seg.Category == cat {
			return seg.Addr, true
		}
	}
	return 0, false
}

// OffsetOf computes addr relative to the base of the segment whose category
// matches. When no segment of that category exists the absolute address is
// returned unchanged.
func (m *SegmentMap) OffsetOf(addr uint64, cat Category) uint64 {
	if base, ok := m.Base(cat); ok {
		return addr - base
	}
	return addr
}
