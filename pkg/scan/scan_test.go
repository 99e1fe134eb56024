package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeBinary(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("AA ?? CC")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 3 {
		t.Errorf("Len() = %d, want 3", p.Len())
	}

	if _, err := ParsePattern("ZZ"); err == nil {
		t.Error("ParsePattern(ZZ) should fail")
	}
	if _, err := ParsePattern("   "); err == nil {
		t.Error("ParsePattern of empty pattern should fail")
	}
}

func TestScanWildcard(t *testing.T) {
	// AA ?? CC matches at i iff data[i]==0xAA and data[i+2]==0xCC,
	// regardless of data[i+1]
	data := []byte{
		0xAA, 0x00, 0xCC, // match at 0
		0xAA, 0xFF, 0xCC, // match at 3
		0xAA, 0x00, 0xCD, // no match (third byte)
		0xAB, 0x00, 0xCC, // no match (first byte)
		0xAA, 0x42, 0xCC, // match at 12, ends at the buffer boundary
	}
	s := NewScanner(writeBinary(t, data))

	matches, err := s.Scan("AA ?? CC", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{0, 3, 12}
	if !reflect.DeepEqual(matches, want) {
		t.Errorf("Scan() = %v, want %v", matches, want)
	}
}

func TestScanNoMatch(t *testing.T) {
	s := NewScanner(writeBinary(t, []byte{0x01, 0x02, 0x03, 0x04}))
	matches, err := s.Scan("AA ?? CC", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("Scan() = %v, want none", matches)
	}
}

func TestScanRangeRestriction(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xAA, 0xBB, 0xCC}
	s := NewScanner(writeBinary(t, data))

	matches, err := s.Scan("AA BB CC", &Range{Off: 3, Size: 3}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(matches, []uint64{3}) {
		t.Errorf("Scan() = %v, want [3]", matches)
	}
}

func TestScanMaxMatches(t *testing.T) {
	data := make([]byte, 64)
	s := NewScanner(writeBinary(t, data))

	matches, err := s.Scan("00", nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 5 {
		t.Errorf("Scan() returned %d matches, want cap of 5", len(matches))
	}
}

func TestScanPatternAtExactEnd(t *testing.T) {
	data := []byte{0x00, 0x00, 0xAA, 0x11, 0xCC}
	s := NewScanner(writeBinary(t, data))

	matches, err := s.Scan("AA ?? CC", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(matches, []uint64{2}) {
		t.Errorf("Scan() = %v, want [2]", matches)
	}
}
