package imgio

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/kshedden/gonpy"
)

// WriteNpy saves a matrix as a NumPy npy binary file.
func WriteNpy(path string, matrix *mat64.Dense) error {
	rows, cols := matrix.Dims()
	raw := matrix.RawMatrix()

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	w.Shape = []int{rows, cols}
	w.Version = 2
	if err := w.WriteFloat64(raw.Data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
