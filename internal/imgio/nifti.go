package imgio

import (
	"fmt"
	"os"

	"github.com/KyungWonPark/nifti"
	"github.com/gonum/matrix/mat64"
)

// LoadNifti reads a NIfTI-1 volume and flattens it to a samples x
// timepoints matrix. Voxels are ordered x-fastest, matching the on-disk
// layout, so seed and functional volumes from the same grid line up row
// by row. A 3D volume yields a single column.
func LoadNifti(path string) (*mat64.Dense, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var img nifti.Nifti1Image
	img.LoadImage(path, true)

	dims := img.GetDims()
	nx, ny, nz, nt := int(dims[0]), int(dims[1]), int(dims[2]), int(dims[3])
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("%s: degenerate volume dimensions %dx%dx%d", path, nx, ny, nz)
	}
	if nt < 1 {
		nt = 1
	}

	mat := mat64.NewDense(nx*ny*nz, nt, nil)
	for t := 0; t < nt; t++ {
		row := 0
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					mat.Set(row, t, float64(img.GetAt(uint32(x), uint32(y), uint32(z), uint32(t))))
					row++
				}
			}
		}
	}

	return mat, nil
}
