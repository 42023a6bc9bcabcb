// Package imgio loads functional neuroimaging containers into dense
// matrices and writes the tool's table outputs.
package imgio

import (
	"path/filepath"
	"strings"
)

// Kind identifies the container format of an image file.
type Kind int

const (
	KindUnknown Kind = iota
	KindNifti
	KindGifti
	KindCifti
)

func (k Kind) String() string {
	switch k {
	case KindNifti:
		return "nifti"
	case KindGifti:
		return "gifti"
	case KindCifti:
		return "cifti"
	default:
		return "unknown"
	}
}

// ciftiSuffixes are the CIFTI-2 double extensions handled through
// wb_command. Anything else ending in .nii is a plain NIfTI volume.
var ciftiSuffixes = []string{
	".dtseries.nii", ".dscalar.nii", ".dlabel.nii",
	".ptseries.nii", ".pscalar.nii",
}

// DetectKind classifies a path by its suffix chain.
func DetectKind(path string) Kind {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")

	for _, s := range ciftiSuffixes {
		if strings.HasSuffix(name, s) {
			return KindCifti
		}
	}
	if strings.HasSuffix(name, ".nii") {
		return KindNifti
	}
	if strings.HasSuffix(name, ".gii") {
		return KindGifti
	}
	return KindUnknown
}

// IsDlabel reports whether path names a CIFTI dense label file.
func IsDlabel(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(strings.TrimSuffix(name, ".gz"), ".dlabel.nii")
}

// IsLabelGifti reports whether path names a GIFTI label file.
func IsLabelGifti(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(strings.TrimSuffix(name, ".gz"), ".label.gii")
}

// BaseName strips the directory and every imaging extension from path,
// leaving the stem used to build default output names.
func BaseName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")

	lower := strings.ToLower(name)
	for _, s := range ciftiSuffixes {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)]
		}
	}
	for _, s := range []string{".func.gii", ".shape.gii", ".label.gii", ".surf.gii", ".gii", ".nii"} {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)]
		}
	}
	return name
}
