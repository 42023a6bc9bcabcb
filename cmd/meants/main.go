// meants extracts mean time series from a functional image within the
// regions of a seed mask and writes them as a delimiter-separated table,
// one row per region.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gonum/matrix/mat64"

	"github.com/jasonhere/OnlineBrainIntensive/internal/calc"
	"github.com/jasonhere/OnlineBrainIntensive/internal/config"
	"github.com/jasonhere/OnlineBrainIntensive/internal/imgio"
	"github.com/jasonhere/OnlineBrainIntensive/internal/wb"
)

type options struct {
	funcPath     string
	seedPath     string
	maskPath     string
	outputCSV    string
	outputLabels string
	outputNpy    string
	roiLabel     int
	weighted     bool
	surfaceOnly  bool
	hemi         string
	debug        bool
	dryRun       bool
	cfg          *config.Config
}

func main() {
	mask := flag.String("mask", "", "brain mask image; seed labels outside it are dropped")
	outputCSV := flag.String("outputcsv", "", "output table path (default: <func>_meants.csv beside the func image)")
	outputLabels := flag.String("outputlabels", "", "also write the seed label of each output row to this file")
	roiLabel := flag.Int("roi-label", 0, "extract only this seed label")
	weighted := flag.Bool("weighted", false, "write a single row: the seed-weighted mean of all samples")
	surfaceOnly := flag.Bool("surfaceonly", false, "use only the cortical surface part of cifti inputs")
	hemi := flag.String("hemi", "", "hemisphere (L or R) when the seed is gifti and the func is cifti")
	debug := flag.Bool("debug", false, "log external commands and keep the scratch directory")
	dryRun := flag.Bool("dry-run", false, "print the planned commands and outputs, then exit")
	outputNpy := flag.String("outputnpy", "", "also write the means matrix as a npy file")
	configPath := flag.String("config", "meants.yaml", "tool configuration file")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: meants [options] <func> <seed>\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[meants] %v", err)
	}

	opts := &options{
		funcPath:     flag.Arg(0),
		seedPath:     flag.Arg(1),
		maskPath:     *mask,
		outputCSV:    *outputCSV,
		outputLabels: *outputLabels,
		outputNpy:    *outputNpy,
		roiLabel:     *roiLabel,
		weighted:     *weighted,
		surfaceOnly:  *surfaceOnly,
		hemi:         *hemi,
		debug:        *debug,
		dryRun:       *dryRun,
		cfg:          cfg,
	}

	if err := run(opts); err != nil {
		log.Fatalf("[meants] %v", err)
	}
}

func run(o *options) error {
	funcKind := imgio.DetectKind(o.funcPath)
	seedKind := imgio.DetectKind(o.seedPath)
	if funcKind == imgio.KindUnknown {
		return fmt.Errorf("unrecognized image format: %s", o.funcPath)
	}
	if seedKind == imgio.KindUnknown {
		return fmt.Errorf("unrecognized image format: %s", o.seedPath)
	}
	if o.weighted && o.roiLabel != 0 {
		return fmt.Errorf("--weighted and --roi-label cannot be combined")
	}
	if o.surfaceOnly && seedKind != imgio.KindCifti {
		return fmt.Errorf("--surfaceonly applies to cifti inputs, seed is %s", seedKind)
	}

	csvPath := o.outputCSV
	if csvPath == "" {
		csvPath = filepath.Join(filepath.Dir(o.funcPath), imgio.BaseName(o.funcPath)+o.cfg.Output.Suffix+".csv")
	}

	if o.cfg.Output.Verbose {
		fmt.Printf("Processing: %s\n", o.funcPath)
	}

	scratch, err := os.MkdirTemp("", "meants-")
	if err != nil {
		return fmt.Errorf("cannot create scratch directory: %w", err)
	}
	if o.debug {
		fmt.Printf("Scratch directory (kept): %s\n", scratch)
	} else {
		defer os.RemoveAll(scratch)
	}

	runner := wb.New(o.cfg.Workbench.Command, o.dryRun, o.debug)

	in, err := loadInputs(runner, scratch, o, funcKind, seedKind)
	if err != nil {
		return err
	}

	if o.dryRun {
		fmt.Printf("[dry-run] would write: %s\n", csvPath)
		if o.outputLabels != "" {
			fmt.Printf("[dry-run] would write: %s\n", o.outputLabels)
		}
		if o.outputNpy != "" {
			fmt.Printf("[dry-run] would write: %s\n", o.outputNpy)
		}
		return nil
	}

	funcRows, _ := in.funcMat.Dims()
	seedRows, _ := in.seedMat.Dims()
	if funcRows != seedRows {
		return fmt.Errorf("func has %d samples but seed has %d", funcRows, seedRows)
	}

	seed, seedCols := calc.SeedColumn(in.seedMat)
	if seedCols > 1 {
		log.Printf("[meants] seed has %d maps; using the first", seedCols)
	}
	labels := calc.RoundLabels(seed)

	if in.maskMat != nil {
		maskRows, _ := in.maskMat.Dims()
		if maskRows != seedRows {
			return fmt.Errorf("mask has %d samples but seed has %d", maskRows, seedRows)
		}
		maskVec, maskCols := calc.SeedColumn(in.maskMat)
		if maskCols > 1 {
			log.Printf("[meants] mask has %d maps; using the first", maskCols)
		}
		if err := calc.ApplyMask(seed, labels, maskVec); err != nil {
			return err
		}
	}

	rois := calc.Rois(labels)
	if o.roiLabel != 0 {
		found := false
		for _, r := range rois {
			if r == o.roiLabel {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("label %d not found in seed", o.roiLabel)
		}
		rois = []int{o.roiLabel}
	}

	if o.debug {
		if err := imgio.DumpF64(filepath.Join(scratch, "seed.f64"), seed); err != nil {
			return err
		}
	}

	var means *mat64.Dense
	if o.weighted {
		means, err = calc.WeightedMeanTimeSeries(in.funcMat, seed)
	} else {
		means, err = calc.MeanTimeSeries(in.funcMat, labels, rois)
	}
	if err != nil {
		return err
	}

	if o.cfg.Output.Verbose {
		fmt.Println("Writing results...")
	}
	if err := imgio.WriteCSV(csvPath, means, o.cfg.Output.Delimiter); err != nil {
		return err
	}

	if o.outputLabels != "" {
		if o.weighted {
			log.Printf("[meants] weighted output has no per-region rows; skipping %s", o.outputLabels)
		} else if err := imgio.WriteLabels(o.outputLabels, rois, in.labelNames, o.cfg.Output.Delimiter); err != nil {
			return err
		}
	}
	if o.outputNpy != "" {
		if err := imgio.WriteNpy(o.outputNpy, means); err != nil {
			return err
		}
	}

	if o.cfg.Output.Verbose {
		fmt.Printf("Finished: %s\n", csvPath)
	}
	return nil
}

// inputs holds the aligned dense matrices for one invocation. All three
// share the sample axis; maskMat is nil when no mask was given. In dry-run
// mode the matrices stay nil.
type inputs struct {
	funcMat    *mat64.Dense
	seedMat    *mat64.Dense
	maskMat    *mat64.Dense
	labelNames map[int]string
}

// loadInputs dispatches on the (seed, func) format pair, runs whatever
// wb_command conversions the pair needs, and loads the resulting arrays.
func loadInputs(r *wb.Runner, scratch string, o *options, funcKind, seedKind imgio.Kind) (*inputs, error) {
	maskKind := imgio.KindUnknown
	if o.maskPath != "" {
		maskKind = imgio.DetectKind(o.maskPath)
		if maskKind == imgio.KindUnknown {
			return nil, fmt.Errorf("unrecognized image format: %s", o.maskPath)
		}
	}

	in := &inputs{}

	switch seedKind {
	case imgio.KindCifti:
		if funcKind != imgio.KindCifti {
			return nil, fmt.Errorf("a cifti seed requires a cifti func, got %s", funcKind)
		}
		if o.maskPath != "" && maskKind != imgio.KindCifti {
			return nil, fmt.Errorf("a cifti seed requires a cifti mask, got %s", maskKind)
		}

		if o.outputLabels != "" && imgio.IsDlabel(o.seedPath) {
			table := filepath.Join(scratch, "seed_labels.txt")
			if err := r.CiftiLabelExportTable(o.seedPath, 1, table); err != nil {
				return nil, err
			}
			if !r.DryRun {
				names, err := wb.ParseLabelTable(table)
				if err != nil {
					return nil, err
				}
				in.labelNames = names
			}
		}

		load := loadCiftiVolume
		if o.surfaceOnly {
			load = loadCiftiSurface
		}

		var err error
		if in.funcMat, err = load(r, scratch, o.funcPath, "func"); err != nil {
			return nil, err
		}
		if in.seedMat, err = load(r, scratch, o.seedPath, "seed"); err != nil {
			return nil, err
		}
		if o.maskPath != "" {
			if in.maskMat, err = load(r, scratch, o.maskPath, "mask"); err != nil {
				return nil, err
			}
		}

	case imgio.KindGifti:
		seedImg, err := loadGifti(r, o.seedPath)
		if err != nil {
			return nil, err
		}
		if seedImg != nil {
			in.seedMat = seedImg.Data
			if o.outputLabels != "" && imgio.IsLabelGifti(o.seedPath) {
				in.labelNames = seedImg.Labels
			}
		}

		switch funcKind {
		case imgio.KindGifti:
			funcImg, err := loadGifti(r, o.funcPath)
			if err != nil {
				return nil, err
			}
			if funcImg != nil {
				in.funcMat = funcImg.Data
			}
		case imgio.KindCifti:
			if o.hemi == "" {
				return nil, fmt.Errorf("a gifti seed with a cifti func requires --hemi")
			}
			structure, err := wb.HemiStructure(o.hemi)
			if err != nil {
				return nil, err
			}
			if in.funcMat, err = separateHemi(r, scratch, o.funcPath, structure, "func"); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("a gifti seed requires a gifti or cifti func, got %s", funcKind)
		}

		if o.maskPath != "" {
			switch maskKind {
			case imgio.KindGifti:
				maskImg, err := loadGifti(r, o.maskPath)
				if err != nil {
					return nil, err
				}
				if maskImg != nil {
					in.maskMat = maskImg.Data
				}
			case imgio.KindCifti:
				if o.hemi == "" {
					return nil, fmt.Errorf("a cifti mask with a gifti seed requires --hemi")
				}
				structure, err := wb.HemiStructure(o.hemi)
				if err != nil {
					return nil, err
				}
				if in.maskMat, err = separateHemi(r, scratch, o.maskPath, structure, "mask"); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("a gifti seed requires a gifti or cifti mask, got %s", maskKind)
			}
		}

	case imgio.KindNifti:
		if funcKind != imgio.KindNifti {
			return nil, fmt.Errorf("a nifti seed requires a nifti func, got %s", funcKind)
		}
		if o.maskPath != "" && maskKind != imgio.KindNifti {
			return nil, fmt.Errorf("a nifti seed requires a nifti mask, got %s", maskKind)
		}
		if r.DryRun {
			break
		}

		var err error
		if in.funcMat, err = imgio.LoadNifti(o.funcPath); err != nil {
			return nil, err
		}
		if in.seedMat, err = imgio.LoadNifti(o.seedPath); err != nil {
			return nil, err
		}
		if o.maskPath != "" {
			if in.maskMat, err = imgio.LoadNifti(o.maskPath); err != nil {
				return nil, err
			}
		}
	}

	return in, nil
}

// loadGifti reads a GIFTI file directly, or skips the read in dry-run mode.
func loadGifti(r *wb.Runner, path string) (*imgio.GiftiImage, error) {
	if r.DryRun {
		return nil, nil
	}
	return imgio.LoadGifti(path)
}

// loadCiftiVolume converts one CIFTI file to fake-NIfTI and loads it, all
// grayordinates included.
func loadCiftiVolume(r *wb.Runner, scratch string, path string, tag string) (*mat64.Dense, error) {
	out := filepath.Join(scratch, tag+".nii")
	if err := r.CiftiConvertToNifti(path, out); err != nil {
		return nil, err
	}
	if r.DryRun {
		return nil, nil
	}
	return imgio.LoadNifti(out)
}

// loadCiftiSurface separates both cortical hemispheres of a CIFTI file as
// metric GIFTIs and stacks them, left above right.
func loadCiftiSurface(r *wb.Runner, scratch string, path string, tag string) (*mat64.Dense, error) {
	left, err := separateHemi(r, scratch, path, "CORTEX_LEFT", tag+".L")
	if err != nil {
		return nil, err
	}
	right, err := separateHemi(r, scratch, path, "CORTEX_RIGHT", tag+".R")
	if err != nil {
		return nil, err
	}
	if r.DryRun {
		return nil, nil
	}
	return vstack(left, right)
}

func separateHemi(r *wb.Runner, scratch string, path string, structure string, tag string) (*mat64.Dense, error) {
	out := filepath.Join(scratch, tag+".func.gii")
	if err := r.CiftiSeparateMetric(path, structure, out); err != nil {
		return nil, err
	}
	if r.DryRun {
		return nil, nil
	}
	img, err := imgio.LoadGifti(out)
	if err != nil {
		return nil, err
	}
	return img.Data, nil
}

func vstack(top, bottom *mat64.Dense) (*mat64.Dense, error) {
	_, tc := top.Dims()
	_, bc := bottom.Dims()
	if tc != bc {
		return nil, fmt.Errorf("hemispheres have %d and %d timepoints", tc, bc)
	}
	var out mat64.Dense
	out.Stack(top, bottom)
	return &out, nil
}
