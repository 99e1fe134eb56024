package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/addrdb/pkg/binary"
)

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual_addresses.json")
	if err := os.WriteFile(path, []byte(`{
  "addresses": [
    {"name": "Foo", "address": "0x100001000", "segment": 1},
    {"name": "GlobalTable", "address": "0x101100020", "segment": 3},
    {"name": "BadAddr", "address": "not-hex", "segment": 1},
    {"name": "NoPrefix", "address": "100001000", "segment": 1},
    {"name": "BadSeg", "address": "0x1000", "segment": 9},
    {"name": "", "address": "0x1000", "segment": 1}
  ]
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(overrides) != 2 {
		t.Fatalf("loaded %d overrides, want 2 (malformed records skipped): %v", len(overrides), overrides)
	}

	foo := overrides["Foo"]
	if foo.Address != 0x100001000 || foo.Category != binary.Code {
		t.Errorf("Foo = %+v", foo)
	}
	gt := overrides["GlobalTable"]
	if gt.Address != 0x101100020 || gt.Category != binary.ReadWriteData {
		t.Errorf("GlobalTable = %+v", gt)
	}
}

func TestLoadOverridesMissingFileIsEmpty(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing override file should not error: %v", err)
	}
	if len(overrides) != 0 {
		t.Errorf("got %d overrides from missing file", len(overrides))
	}
}

func TestLoadOverridesMalformedJSONIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOverrides(path); err == nil {
		t.Error("malformed JSON should be an error")
	}
}

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	if err := os.WriteFile(path, []byte(`{
  "version": "1.0",
  "game_version": "2.3.1",
  "mappings": [
    {"hash": "0xDEADBEEF", "symbol": "__ZN3FooEv"},
    {"symbol": "__ZN3BarEv"}
  ]
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMapping(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.GameVersion != "2.3.1" || len(m.Mappings) != 2 {
		t.Errorf("mapping = %+v", m)
	}
	hash, err := m.Mappings[0].HashValue()
	if err != nil || hash != 0xDEADBEEF {
		t.Errorf("HashValue() = %#x, %v", hash, err)
	}
}

func TestLoadMappingRejectsBadRecords(t *testing.T) {
	dir := t.TempDir()

	badHash := filepath.Join(dir, "badhash.json")
	os.WriteFile(badHash, []byte(`{"mappings":[{"hash":"deadbeef","symbol":"_Zx"}]}`), 0o644)
	if _, err := LoadMapping(badHash); err == nil {
		t.Error("hash without 0x prefix should fail validation")
	}

	noSym := filepath.Join(dir, "nosym.json")
	os.WriteFile(noSym, []byte(`{"mappings":[{"hash":"0x1"}]}`), 0o644)
	if _, err := LoadMapping(noSym); err == nil {
		t.Error("record without symbol should fail validation")
	}
}
