package imgio

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeGifti(t *testing.T, name string, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	doc := `<?xml version="1.0" encoding="UTF-8"?>` + "\n<GIFTI Version=\"1.0\">" + body + "</GIFTI>\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write gifti file: %v", err)
	}
	return path
}

func float32Payload(values []float64) []byte {
	buf := &bytes.Buffer{}
	for _, v := range values {
		binary.Write(buf, binary.LittleEndian, float32(v))
	}
	return buf.Bytes()
}

func TestLoadGiftiASCII(t *testing.T) {
	body := `<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="4"
		Encoding="ASCII" Endian="LittleEndian">
		<Data>1.5 0 -2 7</Data></DataArray>`
	path := writeGifti(t, "seed.func.gii", body)

	img, err := LoadGifti(path)
	if err != nil {
		t.Fatalf("LoadGifti returned error: %v", err)
	}

	rows, cols := img.Data.Dims()
	if rows != 4 || cols != 1 {
		t.Fatalf("Expected 4x1 matrix, got %dx%d", rows, cols)
	}
	want := []float64{1.5, 0, -2, 7}
	for i, w := range want {
		if got := img.Data.At(i, 0); got != w {
			t.Errorf("Row %d: expected %g, got %g", i, w, got)
		}
	}
}

func TestLoadGiftiBase64(t *testing.T) {
	values := []float64{0.25, -1, 3, 42}
	enc := base64.StdEncoding.EncodeToString(float32Payload(values))
	body := fmt.Sprintf(`<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="4"
		Encoding="Base64Binary" Endian="LittleEndian"><Data>%s</Data></DataArray>`, enc)
	path := writeGifti(t, "seed.func.gii", body)

	img, err := LoadGifti(path)
	if err != nil {
		t.Fatalf("LoadGifti returned error: %v", err)
	}
	for i, w := range values {
		if got := img.Data.At(i, 0); math.Abs(got-w) > 1e-6 {
			t.Errorf("Row %d: expected %g, got %g", i, w, got)
		}
	}
}

func TestLoadGiftiGZipBase64(t *testing.T) {
	values := []float64{5, 6, 7}
	raw := float32Payload(values)

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write(raw)
	zw.Close()
	enc := base64.StdEncoding.EncodeToString(compressed.Bytes())

	body := fmt.Sprintf(`<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="3"
		Encoding="GZipBase64Binary" Endian="LittleEndian"><Data>%s</Data></DataArray>`, enc)
	path := writeGifti(t, "seed.func.gii", body)

	img, err := LoadGifti(path)
	if err != nil {
		t.Fatalf("LoadGifti returned error: %v", err)
	}
	for i, w := range values {
		if got := img.Data.At(i, 0); math.Abs(got-w) > 1e-6 {
			t.Errorf("Row %d: expected %g, got %g", i, w, got)
		}
	}
}

func TestLoadGiftiMultipleArraysBecomeColumns(t *testing.T) {
	body := `<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="2"
		Encoding="ASCII" Endian="LittleEndian"><Data>1 2</Data></DataArray>
		<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="2"
		Encoding="ASCII" Endian="LittleEndian"><Data>3 4</Data></DataArray>`
	path := writeGifti(t, "func.func.gii", body)

	img, err := LoadGifti(path)
	if err != nil {
		t.Fatalf("LoadGifti returned error: %v", err)
	}

	rows, cols := img.Data.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("Expected 2x2 matrix, got %dx%d", rows, cols)
	}
	if img.Data.At(0, 0) != 1 || img.Data.At(1, 0) != 2 || img.Data.At(0, 1) != 3 || img.Data.At(1, 1) != 4 {
		t.Errorf("Unexpected matrix content: %v", img.Data.RawMatrix().Data)
	}
}

func TestLoadGiftiTwoDimensionalArray(t *testing.T) {
	// Row-major 3x2: vertex i has values (i, 10i).
	body := `<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="2" Dim0="3" Dim1="2"
		Encoding="ASCII" Endian="LittleEndian"><Data>0 0 1 10 2 20</Data></DataArray>`
	path := writeGifti(t, "func.func.gii", body)

	img, err := LoadGifti(path)
	if err != nil {
		t.Fatalf("LoadGifti returned error: %v", err)
	}

	rows, cols := img.Data.Dims()
	if rows != 3 || cols != 2 {
		t.Fatalf("Expected 3x2 matrix, got %dx%d", rows, cols)
	}
	for i := 0; i < 3; i++ {
		if img.Data.At(i, 0) != float64(i) || img.Data.At(i, 1) != float64(10*i) {
			t.Errorf("Row %d: expected (%d, %d), got (%g, %g)", i, i, 10*i, img.Data.At(i, 0), img.Data.At(i, 1))
		}
	}
}

func TestLoadGiftiLabelTable(t *testing.T) {
	body := `<LabelTable>
		<Label Key="0" Red="0" Green="0" Blue="0" Alpha="0">???</Label>
		<Label Key="7" Red="0.2" Green="0.5" Blue="0.1" Alpha="1">precuneus</Label>
	</LabelTable>
	<DataArray DataType="NIFTI_TYPE_INT32" Dimensionality="1" Dim0="3"
		Encoding="ASCII" Endian="LittleEndian"><Data>0 7 7</Data></DataArray>`
	path := writeGifti(t, "seed.label.gii", body)

	img, err := LoadGifti(path)
	if err != nil {
		t.Fatalf("LoadGifti returned error: %v", err)
	}
	if img.Labels == nil {
		t.Fatal("Expected a label table")
	}
	if img.Labels[7] != "precuneus" {
		t.Errorf("Expected label 7 = precuneus, got %q", img.Labels[7])
	}
	if img.Data.At(1, 0) != 7 {
		t.Errorf("Expected int32 value 7 at row 1, got %g", img.Data.At(1, 0))
	}
}

func TestLoadGiftiVertexCountMismatch(t *testing.T) {
	body := `<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="2"
		Encoding="ASCII" Endian="LittleEndian"><Data>1 2</Data></DataArray>
		<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="3"
		Encoding="ASCII" Endian="LittleEndian"><Data>3 4 5</Data></DataArray>`
	path := writeGifti(t, "func.func.gii", body)

	if _, err := LoadGifti(path); err == nil {
		t.Error("Expected error for mismatched vertex counts, got nil")
	}
}

func TestLoadGiftiUnsupportedEncoding(t *testing.T) {
	body := `<DataArray DataType="NIFTI_TYPE_FLOAT32" Dimensionality="1" Dim0="1"
		Encoding="ExternalFileBinary" Endian="LittleEndian"><Data></Data></DataArray>`
	path := writeGifti(t, "seed.func.gii", body)

	if _, err := LoadGifti(path); err == nil {
		t.Error("Expected error for unsupported encoding, got nil")
	}
}

func TestLoadGiftiMissingFile(t *testing.T) {
	if _, err := LoadGifti(filepath.Join(t.TempDir(), "nope.gii")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}
