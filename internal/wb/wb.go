// Package wb shells out to the Connectome Workbench wb_command binary for
// the CIFTI manipulation this tool does not do itself: conversion to
// fake-NIfTI, hemisphere separation, and label table export.
package wb

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner invokes wb_command. With DryRun set, every call prints the argv
// it would execute and returns without running anything. With Debug set,
// executed commands are echoed first.
type Runner struct {
	Command string
	DryRun  bool
	Debug   bool
	Out     io.Writer
}

// New returns a Runner for the given wb_command binary.
func New(command string, dryRun bool, debug bool) *Runner {
	return &Runner{Command: command, DryRun: dryRun, Debug: debug, Out: os.Stdout}
}

func (r *Runner) run(args ...string) error {
	line := r.Command + " " + strings.Join(args, " ")

	if r.DryRun {
		fmt.Fprintf(r.Out, "[dry-run] %s\n", line)
		return nil
	}
	if r.Debug {
		fmt.Fprintf(r.Out, "[wb] %s\n", line)
	}

	out, err := exec.Command(r.Command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v: %s", line, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CiftiConvertToNifti rewrites a CIFTI file as a fake-NIfTI volume whose
// voxels are the CIFTI grayordinates.
func (r *Runner) CiftiConvertToNifti(in string, out string) error {
	return r.run("-cifti-convert", "-to-nifti", in, out)
}

// CiftiSeparateMetric extracts one cortical hemisphere of a CIFTI file as
// a metric GIFTI. structure is CORTEX_LEFT or CORTEX_RIGHT.
func (r *Runner) CiftiSeparateMetric(in string, structure string, out string) error {
	return r.run("-cifti-separate", in, "COLUMN", "-metric", structure, out)
}

// CiftiLabelExportTable exports the label table of one map of a dense
// label file to a text file.
func (r *Runner) CiftiLabelExportTable(in string, mapIndex int, out string) error {
	return r.run("-cifti-label-export-table", in, strconv.Itoa(mapIndex), out)
}

// HemiStructure maps a --hemi flag value to the CIFTI structure name.
func HemiStructure(hemi string) (string, error) {
	switch strings.ToUpper(hemi) {
	case "L":
		return "CORTEX_LEFT", nil
	case "R":
		return "CORTEX_RIGHT", nil
	default:
		return "", fmt.Errorf("hemisphere must be L or R, got %q", hemi)
	}
}

// ParseLabelTable reads a wb_command label table: pairs of lines, the
// label name then "key R G B A".
func ParseLabelTable(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read label table %s: %w", path, err)
	}

	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines)%2 != 0 {
		return nil, fmt.Errorf("label table %s: odd number of lines", path)
	}

	names := make(map[int]string, len(lines)/2)
	for i := 0; i < len(lines); i += 2 {
		name := strings.TrimSpace(lines[i])
		fields := strings.Fields(lines[i+1])
		if len(fields) != 5 {
			return nil, fmt.Errorf("label table %s: bad key line %q", path, lines[i+1])
		}
		key, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("label table %s: bad key %q", path, fields[0])
		}
		names[key] = name
	}
	return names, nil
}
