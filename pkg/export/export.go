// Package export writes the per-slice metric table to CSV and summarizes it
// across slices.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"cordmorph/pkg/morphometry"
)

// Row is one slice of the output table. Unmeasured slices carry NaN.
type Row struct {
	Slice        int     `csv:"slice"`
	Area         float64 `csv:"area_mm2"`
	AngleAP      float64 `csv:"angle_ap_deg"`
	AngleRL      float64 `csv:"angle_rl_deg"`
	DiameterAP   float64 `csv:"diameter_ap_mm"`
	DiameterRL   float64 `csv:"diameter_rl_mm"`
	Eccentricity float64 `csv:"eccentricity"`
	Orientation  float64 `csv:"orientation_deg"`
	Solidity     float64 `csv:"solidity"`
	Length       float64 `csv:"length_mm"`
}

// Rows flattens the metric table into per-slice records, one row per slice
// index in [0, Nz).
func Rows(m *morphometry.Metrics) []Row {
	rows := make([]Row, m.Nz)
	for z := 0; z < m.Nz; z++ {
		rows[z] = Row{
			Slice:        z,
			Area:         m.Get("area")[z],
			AngleAP:      m.Get("angle_AP")[z],
			AngleRL:      m.Get("angle_RL")[z],
			DiameterAP:   m.Get("diameter_AP")[z],
			DiameterRL:   m.Get("diameter_RL")[z],
			Eccentricity: m.Get("eccentricity")[z],
			Orientation:  m.Get("orientation")[z],
			Solidity:     m.Get("solidity")[z],
			Length:       m.Get("length")[z],
		}
	}
	return rows
}

// WriteCSV writes the full table to the given path, creating parent
// directories as needed.
func WriteCSV(path string, m *morphometry.Metrics) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer f.Close()

	rows := Rows(m)
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}

	return nil
}

// Summary aggregates one metric across all measured slices.
type Summary struct {
	Metric string
	N      int
	Mean   float64
	Std    float64
	Median float64
}

// Summarize computes mean, standard deviation and median of each metric
// over the slices where it is defined. Metrics with no measured slices get
// NaN aggregates.
func Summarize(m *morphometry.Metrics) []Summary {
	return SummarizeRange(m, 0, m.Nz-1)
}

// SummarizeRange aggregates like Summarize, restricted to slices in
// [minZ, maxZ]. The range is clipped to the table bounds.
func SummarizeRange(m *morphometry.Metrics, minZ, maxZ int) []Summary {
	if minZ < 0 {
		minZ = 0
	}
	if maxZ > m.Nz-1 {
		maxZ = m.Nz - 1
	}

	summaries := make([]Summary, 0, len(morphometry.MetricNames))

	for _, name := range morphometry.MetricNames {
		var measured []float64
		values := m.Get(name)
		for z := minZ; z <= maxZ; z++ {
			if v := values[z]; !math.IsNaN(v) {
				measured = append(measured, v)
			}
		}

		s := Summary{Metric: name, N: len(measured)}
		if len(measured) == 0 {
			s.Mean = math.NaN()
			s.Std = math.NaN()
			s.Median = math.NaN()
		} else {
			data := stats.Float64Data(measured)
			s.Mean, _ = stats.Mean(data)
			s.Std, _ = stats.StandardDeviation(data)
			s.Median, _ = stats.Median(data)
		}
		summaries = append(summaries, s)
	}

	return summaries
}
