package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/blacktop/addrdb/pkg/binary"
	"github.com/blacktop/addrdb/pkg/resolve"
)

func TestBuildSchema(t *testing.T) {
	// hash constant Foo = 0x1 resolved by manual override at 0x100001000
	// against a Code segment based at 0x100000000
	entries := []resolve.Entry{
		{Name: "Foo", Hash: 0x1, Address: 0x100001000, HasAddress: true,
			Category: binary.Code, Offset: 0x1000, Source: resolve.SourceManual},
		{Name: "Gone", Hash: 0x2, Source: resolve.SourceUnresolved},
	}
	stats := resolve.NewStats(2)
	stats.Record(resolve.SourceManual)
	stats.Record(resolve.SourceUnresolved)
	stats.Finalize()

	db := Build(entries, stats, "2.3.1")

	if db.Version != "1.0" || db.GameVersion != "2.3.1" {
		t.Errorf("header = %s/%s", db.Version, db.GameVersion)
	}
	if db.Stats.Total != 2 || db.Stats.Resolved != 1 || db.Stats.Unresolved != 1 {
		t.Errorf("stats = %+v", db.Stats)
	}
	if len(db.Addresses) != 1 {
		t.Fatalf("unresolved entries must be dropped, got %d", len(db.Addresses))
	}
	if db.Addresses[0].Hash != "1" {
		t.Errorf("hash = %q, want decimal string \"1\"", db.Addresses[0].Hash)
	}
	if db.Addresses[0].Offset != "1:0x1000" {
		t.Errorf("offset = %q, want \"1:0x1000\"", db.Addresses[0].Offset)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`).MatchString(db.Generated) {
		t.Errorf("generated = %q, want ISO8601", db.Generated)
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "addresses.json")

	stats := resolve.NewStats(0)
	stats.Finalize()
	db := Build(nil, stats, "2.3.1")

	if err := Write(db, path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var round Database
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if round.Version != "1.0" {
		t.Errorf("version = %q", round.Version)
	}
}

func TestWriteFailurePreservesPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "addresses.json") // parent missing

	stats := resolve.NewStats(0)
	stats.Finalize()
	if err := Write(Build(nil, stats, "x"), path); err == nil {
		t.Error("write into missing directory should fail with ErrOutput")
	}
}

func TestEmptyAddressesSerializesAsArray(t *testing.T) {
	stats := resolve.NewStats(1)
	stats.Record(resolve.SourceUnresolved)
	stats.Finalize()

	entries := []resolve.Entry{{Name: "Gone", Hash: 0x2, Source: resolve.SourceUnresolved}}
	data, err := json.Marshal(Build(entries, stats, "2.3.1"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"Addresses":[]`) {
		t.Errorf("empty Addresses must serialize as [], got %s", data)
	}
}

func TestDeterministicAddresses(t *testing.T) {
	entries := []resolve.Entry{
		{Name: "A", Hash: 10, Category: binary.Code, Offset: 0x10, Source: resolve.SourceSymbol},
		{Name: "B", Hash: 20, Category: binary.ReadWriteData, Offset: 0x20, Source: resolve.SourceManual},
	}
	stats := resolve.NewStats(2)
	stats.Record(resolve.SourceSymbol)
	stats.Record(resolve.SourceManual)
	stats.Finalize()

	a, _ := json.Marshal(Build(entries, stats, "v").Addresses)
	b, _ := json.Marshal(Build(entries, stats, "v").Addresses)
	if string(a) != string(b) {
		t.Error("Addresses arrays must be byte-identical across builds")
	}
}
