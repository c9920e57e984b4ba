package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"cordmorph/internal/models"
	"cordmorph/pkg/centerline"
	"cordmorph/pkg/config"
	"cordmorph/pkg/export"
	"cordmorph/pkg/morphometry"
	"cordmorph/pkg/nii"
	"cordmorph/pkg/qc"
	"cordmorph/pkg/resample"
)

func main() {
	// Parse command line arguments
	input := flag.String("i", "", "Input segmentation (.nii or .nii.gz), RPI-oriented")
	centerlinePath := flag.String("centerline", "", "Optional centerline volume used for angle correction instead of the segmentation")
	angleCorr := flag.Bool("angle-corr", true, "Correct each slice for the angle between the acquisition plane and the cord axis")
	output := flag.String("o", "", "Output CSV path (default from config)")
	configPath := flag.String("config", "cordmorph.yaml", "Configuration file")
	cores := flag.Int("cores", 0, "Number of CPU cores for the per-slice loop (0 = config/default)")
	qcDir := flag.String("qc", "", "Directory for per-slice QC images (empty = config/default)")
	zRange := flag.String("z", "", "Restrict the printed summary to a slice range start:end (the full table is always written)")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override config
	cfg.Processing.AngleCorrection = *angleCorr
	if *cores > 0 {
		cfg.Processing.NumCores = *cores
	}
	if *output != "" {
		cfg.Output.CSVPath = *output
	}
	if *qcDir != "" {
		cfg.Output.QCDir = *qcDir
	}

	seg, err := nii.Load(*input)
	if err != nil {
		log.Fatalf("Failed to load segmentation: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("Loaded %s: %dx%dx%d voxels, spacing (%.2f, %.2f, %.2f) mm\n",
			*input, seg.Nx, seg.Ny, seg.Nz, seg.Px, seg.Py, seg.Pz)
	}

	var centerlineVol *models.Volume
	if *centerlinePath != "" {
		centerlineVol, err = nii.Load(*centerlinePath)
		if err != nil {
			log.Fatalf("Failed to load centerline volume: %v", err)
		}
	}

	opts := morphometry.Options{
		AngleCorrection:  cfg.Processing.AngleCorrection,
		NumCores:         cfg.Processing.NumCores,
		ResampleTarget:   cfg.Processing.ResampleTarget,
		CenterlineVolume: centerlineVol,
		CenterlineParams: centerline.Params{
			Algorithm:      cfg.Centerline.Algorithm,
			Degree:         cfg.Centerline.Degree,
			ControlSpacing: cfg.Centerline.ControlSpacing,
		},
	}
	if cfg.Output.Verbose {
		opts.Progress = func(done, total int) {
			fmt.Printf("\rComputing shape metrics: %d/%d slices", done, total)
		}
	}

	start := time.Now()
	metrics, fit, err := morphometry.ComputeShape(seg, opts)
	if err != nil {
		log.Fatalf("Shape computation failed: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("\nDone in %.2f seconds\n", time.Since(start).Seconds())
	}

	if err := export.WriteCSV(cfg.Output.CSVPath, metrics); err != nil {
		log.Fatalf("Failed to write metrics: %v", err)
	}
	fmt.Printf("Per-slice metrics written to %s\n", cfg.Output.CSVPath)

	if fit != nil && cfg.Output.Verbose {
		fmt.Printf("Centerline fit (%s, n=%d): RMSE x=%.3f y=%.3f voxels, R2 x=%.3f y=%.3f\n",
			fit.Algorithm, fit.N, fit.RMSEX, fit.RMSEY, fit.R2X, fit.R2Y)
	}

	if cfg.Output.Verbose {
		summaries := export.Summarize(metrics)
		label := "measured slices"
		if *zRange != "" {
			minZ, maxZ, err := parseSliceRange(*zRange)
			if err != nil {
				log.Fatalf("Invalid -z range: %v", err)
			}
			summaries = export.SummarizeRange(metrics, minZ, maxZ)
			label = fmt.Sprintf("slices %d:%d", minZ, maxZ)
		}

		fmt.Printf("\nSummary over %s:\n", label)
		for _, s := range summaries {
			fmt.Printf("  %-13s n=%-4d mean=%-10.4f std=%-10.4f median=%.4f\n",
				s.Metric, s.N, s.Mean, s.Std, s.Median)
		}
	}

	if cfg.Output.QCDir != "" {
		// Render the resampled mask the measurements were taken on.
		vol, err := resample.InPlane(seg, cfg.Processing.ResampleTarget)
		if err != nil {
			log.Fatalf("Failed to resample for QC: %v", err)
		}
		minZ, maxZ, ok := vol.OccupiedRange(models.NearZeroThreshold)
		if !ok {
			log.Fatalf("No occupied slices to render")
		}
		if err := qc.SaveSliceRange(vol, minZ, maxZ, cfg.Output.QCDir); err != nil {
			log.Fatalf("Failed to write QC images: %v", err)
		}
		fmt.Printf("QC images written to %s\n", cfg.Output.QCDir)
	}
}

// parseSliceRange parses "start:end" into an inclusive slice range.
func parseSliceRange(s string) (minZ, maxZ int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected start:end, got %q", s)
	}
	minZ, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad start slice %q: %v", parts[0], err)
	}
	maxZ, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad end slice %q: %v", parts[1], err)
	}
	if minZ < 0 || maxZ < minZ {
		return 0, 0, fmt.Errorf("range %d:%d is not ascending and non-negative", minZ, maxZ)
	}
	return minZ, maxZ, nil
}
