package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

// SPIR-V errors.
var (
	ErrInvalidSPIRV = errors.New("invalid SPIR-V module")
)

// ParseSPIRV converts little-endian SPIR-V bytes to words.
func ParseSPIRV(data []byte) ([]uint32, error) {
	if len(data) < 20 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSPIRV, len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if words[0] != SPIRVMagic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrInvalidSPIRV, words[0])
	}
	return words, nil
}

// LoadSPIRV reads a SPIR-V file.
func LoadSPIRV(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	words, err := ParseSPIRV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

// WriteSPIRV writes words as a little-endian SPIR-V binary.
func WriteSPIRV(w io.Writer, words []uint32) error {
	buf := make([]byte, len(words)*4)
	for i, word := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], word)
	}
	_, err := w.Write(buf)
	return err
}
