// Package export writes figure results to disk. Each figure produces a
// wide CSV mirroring the query result plus the long chart form as CSV
// and Parquet, all named fig<N>_<slug> under one output directory.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"go.uber.org/zap"

	"bedcap/internal/report"
)

// longRecord is the Parquet schema for single-measure long rows.
type longRecord struct {
	HospitalName string `parquet:"hospital_name"`
	BedType      string `parquet:"bed_type"`
	BedCount     int64  `parquet:"bed_count"`
}

// compositeLongRecord adds the unit dimension the composite figures
// carry.
type compositeLongRecord struct {
	HospitalName string `parquet:"hospital_name"`
	BedType      string `parquet:"bed_type"`
	ICUSICU      string `parquet:"icu_sicu"`
	BedCount     int64  `parquet:"bed_count"`
}

var (
	wideHeader = []string{"hospital_name", "icu_beds", "sicu_beds", "total_beds"}

	compositeWideHeader = []string{
		"hospital_name",
		"license_icu_beds", "license_sicu_beds", "license_total_beds",
		"census_icu_beds", "census_sicu_beds", "census_total_beds",
		"staffed_icu_beds", "staffed_sicu_beds", "staffed_total_beds",
	}

	longHeader          = []string{"hospital_name", "bed_type", "bed_count"}
	compositeLongHeader = []string{"hospital_name", "bed_type", "icu_sicu", "bed_count"}
)

// Exporter writes figure files under one output directory.
type Exporter struct {
	dir string
	log *zap.Logger
}

// New creates the output directory if needed and returns an exporter
// rooted there.
func New(dir string, log *zap.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: dir, log: log}, nil
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.dir }

// WriteFigure writes one single-measure figure and returns the paths
// written, wide CSV first.
func (e *Exporter) WriteFigure(fig report.Figure, wide []report.AggregateRow, long []report.LongRow) ([]string, error) {
	base := filepath.Join(e.dir, fmt.Sprintf("fig%d_%s", fig.Num, fig.Slug))

	wideRecords := make([][]string, 0, len(wide))
	for _, r := range wide {
		wideRecords = append(wideRecords, []string{
			r.HospitalName,
			strconv.FormatInt(r.ICU, 10),
			strconv.FormatInt(r.SICU, 10),
			strconv.FormatInt(r.Total, 10),
		})
	}
	if err := writeCSV(base+".csv", wideHeader, wideRecords); err != nil {
		return nil, err
	}

	longRecords := make([][]string, 0, len(long))
	rows := make([]longRecord, 0, len(long))
	for _, r := range long {
		longRecords = append(longRecords, []string{
			r.HospitalName, r.BedType, strconv.FormatInt(r.BedCount, 10),
		})
		rows = append(rows, longRecord{
			HospitalName: r.HospitalName,
			BedType:      r.BedType,
			BedCount:     r.BedCount,
		})
	}
	if err := writeCSV(base+"_long.csv", longHeader, longRecords); err != nil {
		return nil, err
	}
	if err := writeParquet(base+"_long.parquet", rows); err != nil {
		return nil, err
	}

	e.log.Info("figure exported",
		zap.Int("figure", fig.Num),
		zap.String("title", fig.Title),
		zap.Int("hospitals", len(wide)))
	return []string{base + ".csv", base + "_long.csv", base + "_long.parquet"}, nil
}

// WriteCompositeFigure writes one composite figure: the wide CSV with
// all nine sums plus the long form carrying both category dimensions.
func (e *Exporter) WriteCompositeFigure(fig report.Figure, wide []report.CompositeRow, long []report.LongRow) ([]string, error) {
	base := filepath.Join(e.dir, fmt.Sprintf("fig%d_%s", fig.Num, fig.Slug))

	wideRecords := make([][]string, 0, len(wide))
	for _, r := range wide {
		wideRecords = append(wideRecords, []string{
			r.HospitalName,
			strconv.FormatInt(r.LicenseICU, 10),
			strconv.FormatInt(r.LicenseSICU, 10),
			strconv.FormatInt(r.LicenseTotal, 10),
			strconv.FormatInt(r.CensusICU, 10),
			strconv.FormatInt(r.CensusSICU, 10),
			strconv.FormatInt(r.CensusTotal, 10),
			strconv.FormatInt(r.StaffedICU, 10),
			strconv.FormatInt(r.StaffedSICU, 10),
			strconv.FormatInt(r.StaffedTotal, 10),
		})
	}
	if err := writeCSV(base+".csv", compositeWideHeader, wideRecords); err != nil {
		return nil, err
	}

	longRecords := make([][]string, 0, len(long))
	rows := make([]compositeLongRecord, 0, len(long))
	for _, r := range long {
		longRecords = append(longRecords, []string{
			r.HospitalName, r.BedType, r.ICUSICU, strconv.FormatInt(r.BedCount, 10),
		})
		rows = append(rows, compositeLongRecord{
			HospitalName: r.HospitalName,
			BedType:      r.BedType,
			ICUSICU:      r.ICUSICU,
			BedCount:     r.BedCount,
		})
	}
	if err := writeCSV(base+"_long.csv", compositeLongHeader, longRecords); err != nil {
		return nil, err
	}
	if err := writeParquet(base+"_long.parquet", rows); err != nil {
		return nil, err
	}

	e.log.Info("figure exported",
		zap.Int("figure", fig.Num),
		zap.String("title", fig.Title),
		zap.Int("hospitals", len(wide)))
	return []string{base + ".csv", base + "_long.csv", base + "_long.parquet"}, nil
}

// writeCSV writes a header and records. encoding/csv quotes fields
// holding newlines, so wrapped hospital names round-trip.
func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeParquet[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := parquet.NewGenericWriter[T](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("bedcap", "1.0", ""),
	)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer %s: %w", path, err)
	}
	return f.Close()
}
