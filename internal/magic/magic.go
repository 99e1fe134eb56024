// Package magic sniffs executable-image file formats by magic number.
package magic

import (
	"encoding/binary"
	"fmt"
	"os"
)

type Magic uint32

const (
	Magic32    Magic = 0xfeedface
	Magic64    Magic = 0xfeedfacf
	MagicFatBE Magic = 0xcafebabe
	MagicFatLE Magic = 0xbebafeca
)

func (m Magic) String() string {
	switch m {
	case Magic32:
		return "32-bit MachO"
	case Magic64:
		return "64-bit MachO"
	case MagicFatBE, MagicFatLE:
		return "Fat MachO"
	default:
		return fmt.Sprintf("unknown magic 0x%08x", uint32(m))
	}
}

// IsMachO checks that filePath begins with a recognized Mach-O magic number.
func IsMachO(filePath string) (bool, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err = f.Read(magic[:]); err != nil {
		return false, fmt.Errorf("failed to read magic: %w", err)
	}

	switch Magic(binary.LittleEndian.Uint32(magic[:])) {
	case Magic32, Magic64, MagicFatBE, MagicFatLE:
		return true, nil
	default:
		return false, fmt.Errorf("not a macho file")
	}
}
