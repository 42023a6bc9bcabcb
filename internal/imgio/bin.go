package imgio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// DumpF64 writes a float64 slice to a raw little-endian binary file. Used
// for debug dumps of intermediate vectors.
func DumpF64(path string, slice []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, slice); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
