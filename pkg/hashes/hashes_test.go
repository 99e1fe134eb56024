package hashes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGrammar(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "AddressHashes.hpp", `
#pragma once
namespace Detail {
constexpr std::uint32_t CBaseFunction_Execute = 0xDEADBEEF;
constexpr std::uint32_t Foo = 1193046;
constexpr std::uint32_t WithSuffix = 0x1234ULL;
constexpr std::uint32_t Truncated = 0x1FFFFFFFF;
const int NotAHash = 5;
constexpr std::uint64_t WrongType = 0x1;
}
`)

	reg, err := Load([]string{src})
	if err != nil {
		t.Fatal(err)
	}

	tcs := map[string]uint32{
		"CBaseFunction_Execute": 0xDEADBEEF,
		"Foo":                   1193046,
		"WithSuffix":            0x1234,
		"Truncated":             0xFFFFFFFF, // masked to 32 bits
	}
	if len(reg) != len(tcs) {
		t.Errorf("loaded %d constants, want %d: %v", len(reg), len(tcs), reg)
	}
	for name, want := range tcs {
		if got, ok := reg[name]; !ok || got != want {
			t.Errorf("reg[%q] = %#x (present=%v), want %#x", name, got, ok, want)
		}
	}
}

func TestLoadLastSourceWins(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.hpp", "constexpr std::uint32_t Dup = 0x1;\n")
	b := writeSource(t, dir, "b.hpp", "constexpr std::uint32_t Dup = 0x2;\n")

	// every permutation of source order must deterministically prefer the
	// later-scanned source
	perms := [][]string{{a, b}, {b, a}}
	wants := []uint32{0x2, 0x1}

	for i, perm := range perms {
		reg, err := Load(perm)
		if err != nil {
			t.Fatal(err)
		}
		if reg["Dup"] != wants[i] {
			t.Errorf("order %v: Dup = %#x, want %#x", perm, reg["Dup"], wants[i])
		}
	}
}

func TestLoadNoSources(t *testing.T) {
	dir := t.TempDir()
	_, err := Load([]string{
		filepath.Join(dir, "missing1.hpp"),
		filepath.Join(dir, "missing2.hpp"),
	})
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("Load() error = %v, want ErrNoSources", err)
	}
}

func TestLoadEmptySourceIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "empty.hpp", "// nothing to see here\n")

	reg, err := Load([]string{src})
	if err != nil {
		t.Errorf("Load() on empty source = %v, want nil", err)
	}
	if len(reg) != 0 {
		t.Errorf("loaded %d constants from empty source", len(reg))
	}
}
