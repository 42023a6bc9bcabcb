package imgio

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
)

// GiftiImage is a decoded GIFTI file: the stacked data arrays as a
// vertices x columns matrix, plus the label table when one is present.
type GiftiImage struct {
	Data   *mat64.Dense
	Labels map[int]string
}

type giftiFile struct {
	XMLName    xml.Name         `xml:"GIFTI"`
	LabelTable *giftiLabelTable `xml:"LabelTable"`
	DataArrays []giftiDataArray `xml:"DataArray"`
}

type giftiLabelTable struct {
	Labels []giftiLabel `xml:"Label"`
}

type giftiLabel struct {
	Key   string `xml:"Key,attr"`
	Index string `xml:"Index,attr"` // pre-1.0 files use Index instead of Key
	Name  string `xml:",chardata"`
}

type giftiDataArray struct {
	DataType         string `xml:"DataType,attr"`
	Dimensionality   int    `xml:"Dimensionality,attr"`
	Dim0             int    `xml:"Dim0,attr"`
	Dim1             int    `xml:"Dim1,attr"`
	Encoding         string `xml:"Encoding,attr"`
	Endian           string `xml:"Endian,attr"`
	ExternalFileName string `xml:"ExternalFileName,attr"`
	Data             string `xml:"Data"`
}

// LoadGifti reads a GIFTI surface data file. Each DataArray becomes one or
// more columns (per its Dim1); all arrays must share the vertex count.
func LoadGifti(path string) (*GiftiImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var doc giftiFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: parsing GIFTI XML: %w", path, err)
	}
	if len(doc.DataArrays) == 0 {
		return nil, fmt.Errorf("%s: GIFTI file has no data arrays", path)
	}

	cols := make([][]float64, 0, len(doc.DataArrays))
	vertices := -1
	for i, da := range doc.DataArrays {
		if da.ExternalFileName != "" {
			return nil, fmt.Errorf("%s: externally stored GIFTI data is not supported", path)
		}
		arrCols, err := decodeDataArray(&da)
		if err != nil {
			return nil, fmt.Errorf("%s: data array %d: %w", path, i, err)
		}
		if vertices == -1 {
			vertices = len(arrCols[0])
		} else if len(arrCols[0]) != vertices {
			return nil, fmt.Errorf("%s: data array %d has %d vertices, expected %d", path, i, len(arrCols[0]), vertices)
		}
		cols = append(cols, arrCols...)
	}

	mat := mat64.NewDense(vertices, len(cols), nil)
	for j, col := range cols {
		mat.SetCol(j, col)
	}

	img := &GiftiImage{Data: mat}
	if doc.LabelTable != nil && len(doc.LabelTable.Labels) > 0 {
		img.Labels = make(map[int]string, len(doc.LabelTable.Labels))
		for _, l := range doc.LabelTable.Labels {
			keyStr := l.Key
			if keyStr == "" {
				keyStr = l.Index
			}
			key, err := strconv.Atoi(strings.TrimSpace(keyStr))
			if err != nil {
				return nil, fmt.Errorf("%s: bad label key %q", path, keyStr)
			}
			img.Labels[key] = strings.TrimSpace(l.Name)
		}
	}

	return img, nil
}

// decodeDataArray returns the array's values as columns of float64.
// A 1D array is one column; a 2D row-major array of Dim0 x Dim1 becomes
// Dim1 columns of Dim0 values.
func decodeDataArray(da *giftiDataArray) ([][]float64, error) {
	rows, ncol := da.Dim0, 1
	switch da.Dimensionality {
	case 1:
	case 2:
		ncol = da.Dim1
	default:
		return nil, fmt.Errorf("unsupported dimensionality %d", da.Dimensionality)
	}
	if rows < 1 || ncol < 1 {
		return nil, fmt.Errorf("degenerate dimensions %dx%d", rows, ncol)
	}
	n := rows * ncol

	var flat []float64
	var err error
	switch da.Encoding {
	case "ASCII":
		flat, err = decodeASCII(da.Data, n)
	case "Base64Binary":
		flat, err = decodeBase64(da.Data, da.DataType, da.Endian, n, false)
	case "GZipBase64Binary":
		flat, err = decodeBase64(da.Data, da.DataType, da.Endian, n, true)
	default:
		err = fmt.Errorf("unsupported encoding %q", da.Encoding)
	}
	if err != nil {
		return nil, err
	}

	// Row-major on disk: value (i, j) sits at flat[i*ncol+j].
	cols := make([][]float64, ncol)
	for j := 0; j < ncol; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			col[i] = flat[i*ncol+j]
		}
		cols[j] = col
	}
	return cols, nil
}

func decodeASCII(text string, n int) ([]float64, error) {
	fields := strings.Fields(text)
	if len(fields) != n {
		return nil, fmt.Errorf("ASCII data has %d values, expected %d", len(fields), n)
	}
	out := make([]float64, n)
	for i, fld := range fields {
		v, err := strconv.ParseFloat(fld, 64)
		if err != nil {
			return nil, fmt.Errorf("bad ASCII value %q", fld)
		}
		out[i] = v
	}
	return out, nil
}

func decodeBase64(text, dataType, endian string, n int, compressed bool) ([]float64, error) {
	// Writers wrap long payloads; base64 ignores nothing, so strip all
	// whitespace first.
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
	if err != nil {
		return nil, fmt.Errorf("bad base64 data: %w", err)
	}

	if compressed {
		raw, err = inflate(raw)
		if err != nil {
			return nil, err
		}
	}

	var order binary.ByteOrder = binary.LittleEndian
	if endian == "BigEndian" {
		order = binary.BigEndian
	}

	out := make([]float64, n)
	switch dataType {
	case "NIFTI_TYPE_FLOAT32":
		if len(raw) != 4*n {
			return nil, fmt.Errorf("payload is %d bytes, expected %d", len(raw), 4*n)
		}
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		}
	case "NIFTI_TYPE_FLOAT64":
		if len(raw) != 8*n {
			return nil, fmt.Errorf("payload is %d bytes, expected %d", len(raw), 8*n)
		}
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	case "NIFTI_TYPE_INT32":
		if len(raw) != 4*n {
			return nil, fmt.Errorf("payload is %d bytes, expected %d", len(raw), 4*n)
		}
		for i := 0; i < n; i++ {
			out[i] = float64(int32(order.Uint32(raw[4*i:])))
		}
	case "NIFTI_TYPE_UINT8":
		if len(raw) != n {
			return nil, fmt.Errorf("payload is %d bytes, expected %d", len(raw), n)
		}
		for i := 0; i < n; i++ {
			out[i] = float64(raw[i])
		}
	default:
		return nil, fmt.Errorf("unsupported data type %q", dataType)
	}
	return out, nil
}

// inflate handles both zlib- and gzip-wrapped payloads; writers disagree on
// which "GZip" means.
func inflate(raw []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err == nil {
			return out, nil
		}
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("compressed payload is neither zlib nor gzip: %w", err)
	}
	defer gz.Close()
	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	return out, nil
}
