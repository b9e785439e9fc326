// Package source reads the three bed capacity input tables from CSV or
// XLSX files. Each file must carry a header row with the exact expected
// column set; missing, extra, or duplicate columns fail the load with
// no partial recovery.
package source

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bedcap/internal/beds"
)

var (
	bedTypeColumns  = []string{"bed_id", "bed_code", "bed_desc"}
	bedFactColumns  = []string{"ims_org_id", "bed_id", "license_beds", "census_beds", "staffed_beds"}
	businessColumns = []string{"ims_org_id", "business_name", "ttl_license_beds", "ttl_census_beds", "ttl_staffed_beds", "bed_cluster_id"}
)

// ReadBedTypes reads the bed type dimension file.
func ReadBedTypes(path string) ([]beds.BedType, error) {
	t, err := readTable(path, bedTypeColumns)
	if err != nil {
		return nil, err
	}
	out := make([]beds.BedType, 0, len(t.rows))
	for n := range t.rows {
		id, err := t.int32At(n, "bed_id")
		if err != nil {
			return nil, err
		}
		out = append(out, beds.BedType{
			BedID:   id,
			BedCode: t.strAt(n, "bed_code"),
			BedDesc: t.strAt(n, "bed_desc"),
		})
	}
	return out, nil
}

// ReadBedFacts reads the per-hospital bed fact file.
func ReadBedFacts(path string) ([]beds.BedFact, error) {
	t, err := readTable(path, bedFactColumns)
	if err != nil {
		return nil, err
	}
	out := make([]beds.BedFact, 0, len(t.rows))
	for n := range t.rows {
		id, err := t.int32At(n, "bed_id")
		if err != nil {
			return nil, err
		}
		license, err := t.countAt(n, "license_beds")
		if err != nil {
			return nil, err
		}
		census, err := t.countAt(n, "census_beds")
		if err != nil {
			return nil, err
		}
		staffed, err := t.countAt(n, "staffed_beds")
		if err != nil {
			return nil, err
		}
		out = append(out, beds.BedFact{
			IMSOrgID:    t.strAt(n, "ims_org_id"),
			BedID:       id,
			LicenseBeds: license,
			CensusBeds:  census,
			StaffedBeds: staffed,
		})
	}
	return out, nil
}

// ReadBusinesses reads the business totals file.
func ReadBusinesses(path string) ([]beds.Business, error) {
	t, err := readTable(path, businessColumns)
	if err != nil {
		return nil, err
	}
	out := make([]beds.Business, 0, len(t.rows))
	for n := range t.rows {
		cluster, err := t.int32At(n, "bed_cluster_id")
		if err != nil {
			return nil, err
		}
		license, err := t.countAt(n, "ttl_license_beds")
		if err != nil {
			return nil, err
		}
		census, err := t.countAt(n, "ttl_census_beds")
		if err != nil {
			return nil, err
		}
		staffed, err := t.countAt(n, "ttl_staffed_beds")
		if err != nil {
			return nil, err
		}
		out = append(out, beds.Business{
			IMSOrgID:       t.strAt(n, "ims_org_id"),
			BusinessName:   t.strAt(n, "business_name"),
			TTLLicenseBeds: license,
			TTLCensusBeds:  census,
			TTLStaffedBeds: staffed,
			BedClusterID:   cluster,
		})
	}
	return out, nil
}

// table is a parsed input file: validated column index plus data rows.
// rowNum keeps the 1-based file row for error messages.
type table struct {
	path   string
	colIdx map[string]int
	rows   [][]string
	rowNum []int64
}

func readTable(path string, want []string) (*table, error) {
	var (
		header []string
		rows   [][]string
		nums   []int64
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		header, rows, nums, err = readCSV(path)
	case ".xlsx", ".xlsm":
		header, rows, nums, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%s: unsupported input format %q (want .csv or .xlsx)", path, ext)
	}
	if err != nil {
		return nil, err
	}

	colIdx, err := indexColumns(header, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &table{path: path, colIdx: colIdx, rows: rows, rowNum: nums}, nil
}

// indexColumns validates the header against the expected column set and
// returns a name to position map. Matching is case-insensitive with
// surrounding whitespace ignored; empty header cells are skipped.
func indexColumns(header, want []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, dup := idx[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		idx[h] = i
	}

	wantSet := make(map[string]bool, len(want))
	var missing []string
	for _, w := range want {
		wantSet[w] = true
		if _, ok := idx[w]; !ok {
			missing = append(missing, w)
		}
	}
	var extra []string
	for h := range idx {
		if !wantSet[h] {
			extra = append(extra, h)
		}
	}
	sort.Strings(extra)

	if len(missing) > 0 || len(extra) > 0 {
		return nil, fmt.Errorf("header mismatch: missing columns %v, unexpected columns %v", missing, extra)
	}
	return idx, nil
}

// strAt returns the trimmed cell value; cells beyond a short row read
// as empty.
func (t *table) strAt(n int, col string) string {
	row := t.rows[n]
	i := t.colIdx[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// int32At parses an integer cell such as bed_id or bed_cluster_id.
func (t *table) int32At(n int, col string) (int32, error) {
	raw := t.strAt(n, col)
	v, err := strconv.ParseInt(stripGrouping(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s row %d: column %s: invalid integer %q", t.path, t.rowNum[n], col, raw)
	}
	return int32(v), nil
}

// countAt parses a bed count cell. Counts are non-negative integers;
// anything else is a hard failure.
func (t *table) countAt(n int, col string) (int64, error) {
	raw := t.strAt(n, col)
	v, err := strconv.ParseInt(stripGrouping(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d: column %s: invalid bed count %q", t.path, t.rowNum[n], col, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s row %d: column %s: negative bed count %d", t.path, t.rowNum[n], col, v)
	}
	return v, nil
}

// stripGrouping drops comma digit grouping ("1,234" reads as 1234).
func stripGrouping(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

func isEmptyRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
