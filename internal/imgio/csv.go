package imgio

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/gonum/matrix/mat64"
)

// WriteCSV writes matrix rows as delimiter-separated float64 values, one
// line per row. Rows are formatted by a batch of goroutines, one stride of
// rows at a time, and flushed in order.
func WriteCSV(path string, matrix *mat64.Dense, delim string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	rows, _ := matrix.Dims()

	stride := runtime.NumCPU()
	lines := make([]string, stride)

	for row := 0; row < rows; row += stride {
		batch := stride
		if row+stride > rows {
			batch = rows - row
		}

		var wg sync.WaitGroup
		wg.Add(batch)
		for offset := 0; offset < batch; offset++ {
			go formatRow(matrix, lines, row, offset, delim, &wg)
		}
		wg.Wait()

		for i := 0; i < batch; i++ {
			if _, err := fmt.Fprintf(f, "%s\n", lines[i]); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
		}
	}

	return nil
}

func formatRow(matrix *mat64.Dense, lines []string, row int, offset int, delim string, wg *sync.WaitGroup) {
	defer wg.Done()

	_, cols := matrix.Dims()

	parts := make([]string, cols)
	for i := 0; i < cols; i++ {
		parts[i] = strconv.FormatFloat(matrix.At(row+offset, i), 'g', -1, 64)
	}
	lines[offset] = strings.Join(parts, delim)
}

// WriteLabels writes the ROI label of each output row, in row order. When
// a label table is available each line carries the label's name as a
// second field.
func WriteLabels(path string, rois []int, names map[int]string, delim string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	for _, roi := range rois {
		var err error
		if len(names) > 0 {
			_, err = fmt.Fprintf(f, "%d%s%s\n", roi, delim, names[roi])
		} else {
			_, err = fmt.Fprintf(f, "%d\n", roi)
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	return nil
}
