package binary

import "testing"

func testSegments() *SegmentMap {
	return NewSegmentMap([]Segment{
		{Name: "__TEXT", Addr: 0x100000000, Size: 0x1000000, Offset: 0, Filesz: 0x1000000, Category: Code},
		{Name: "__DATA_CONST", Addr: 0x101000000, Size: 0x100000, Offset: 0x1000000, Filesz: 0x100000, Category: ReadOnlyData},
		{Name: "__DATA", Addr: 0x101100000, Size: 0x200000, Offset: 0x1100000, Filesz: 0x100000, Category: ReadWriteData},
	})
}

func TestCategoryOf(t *testing.T) {
	sm := testSegments()

	tests := []struct {
		name string
		addr uint64
		want Category
	}{
		{name: "text start", addr: 0x100000000, want: Code},
		{name: "text middle", addr: 0x100500000, want: Code},
		{name: "data const", addr: 0x101000010, want: ReadOnlyData},
		{name: "data", addr: 0x101100008, want: ReadWriteData},
		{name: "end of data is exclusive", addr: 0x101300000, want: Code},
		{name: "outside all segments defaults to code", addr: 0x200000000, want: Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sm.CategoryOf(tt.addr); got != tt.want {
				t.Errorf("CategoryOf(%#x) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestOffsetOf(t *testing.T) {
	sm := testSegments()

	if got := sm.OffsetOf(0x100001000, Code); got != 0x1000 {
		t.Errorf("OffsetOf() = %#x, want 0x1000", got)
	}
	if got := sm.OffsetOf(0x101000010, ReadOnlyData); got != 0x10 {
		t.Errorf("OffsetOf() = %#x, want 0x10", got)
	}
	// missing category keeps the absolute address
	if got := sm.OffsetOf(0x100002000, Unknown); got != 0x100002000 {
		t.Errorf("OffsetOf() unknown category = %#x, want the absolute address", got)
	}
}

func TestCategoryForName(t *testing.T) {
	tcs := map[string]Category{
		"__TEXT":       Code,
		"__DATA_CONST": ReadOnlyData,
		"__DATA":       ReadWriteData,
		"__LINKEDIT":   Unknown,
		"__PAGEZERO":   Unknown,
	}
	for name, want := range tcs {
		if got := CategoryForName(name); got != want {
			t.Errorf("CategoryForName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCategoryFromCode(t *testing.T) {
	for code := 1; code <= 3; code++ {
		if got := CategoryFromCode(code); got.Code() != code {
			t.Errorf("CategoryFromCode(%d).Code() = %d", code, got.Code())
		}
	}
	if CategoryFromCode(7) != Unknown {
		t.Error("CategoryFromCode(7) should be Unknown")
	}
}
