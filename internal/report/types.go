// Package report implements the reporting core: the combined-table
// build, the integrity checks, the eight-figure query battery, and the
// wide-to-long reshape whose output the chart renderer consumes.
package report

import "fmt"

// Measure selects which bed count a figure aggregates.
type Measure string

const (
	MeasureLicense Measure = "license_beds"
	MeasureCensus  Measure = "census_beds"
	MeasureStaffed Measure = "staffed_beds"
)

// column maps a measure onto its combined-table column. Queries only
// ever interpolate column names that pass through here.
func (m Measure) column() (string, error) {
	switch m {
	case MeasureLicense, MeasureCensus, MeasureStaffed:
		return string(m), nil
	}
	return "", fmt.Errorf("unknown measure %q", string(m))
}

// Split declares how the composite figure's two category dimensions
// are grouped for display.
type Split int

const (
	// SplitByBedType keeps the long rows measure-major:
	// License ICU, License SICU, Census ICU, ...
	SplitByBedType Split = iota
	// SplitByUnit regroups them unit-major:
	// License ICU, Census ICU, Staffed ICU, License SICU, ...
	SplitByUnit
)

// Figure describes one report in the fixed battery.
type Figure struct {
	Num         int
	Slug        string
	Title       string
	Measure     Measure // unset for the composite figures
	MinPresence bool
	Composite   bool
	Split       Split
}

// Figures is the fixed battery, run in order on every report pass.
var Figures = []Figure{
	{Num: 1, Slug: "license_beds_top10", Title: "Top 10 hospitals by licensed ICU and SICU beds", Measure: MeasureLicense},
	{Num: 2, Slug: "census_beds_top10", Title: "Top 10 hospitals by ICU and SICU census beds", Measure: MeasureCensus},
	{Num: 3, Slug: "staffed_beds_top10", Title: "Top 10 hospitals by staffed ICU and SICU beds", Measure: MeasureStaffed},
	{Num: 4, Slug: "license_beds_min_presence", Title: "Top 10 hospitals with both unit types, by licensed beds", Measure: MeasureLicense, MinPresence: true},
	{Num: 5, Slug: "census_beds_min_presence", Title: "Top 10 hospitals with both unit types, by census beds", Measure: MeasureCensus, MinPresence: true},
	{Num: 6, Slug: "staffed_beds_min_presence", Title: "Top 10 hospitals with both unit types, by staffed beds", Measure: MeasureStaffed, MinPresence: true},
	{Num: 7, Slug: "all_measures_by_bed_type", Title: "All bed measures for the top 10 hospitals, grouped by measure", Composite: true, MinPresence: true, Split: SplitByBedType},
	{Num: 8, Slug: "all_measures_by_unit", Title: "All bed measures for the top 10 hospitals, grouped by unit", Composite: true, MinPresence: true, Split: SplitByUnit},
}

// AggregateRow is one wide result row of a single-measure figure.
type AggregateRow struct {
	HospitalName string
	ICU          int64
	SICU         int64
	Total        int64
}

// CompositeRow is one wide result row of the composite figures: all
// nine conditional sums for one hospital.
type CompositeRow struct {
	HospitalName string
	LicenseICU   int64
	LicenseSICU  int64
	LicenseTotal int64
	CensusICU    int64
	CensusSICU   int64
	CensusTotal  int64
	StaffedICU   int64
	StaffedSICU  int64
	StaffedTotal int64
}

// LongRow is the pivoted chart form: one row per hospital and
// category. ICUSICU is empty for single-measure figures and carries
// the unit dimension for the composite ones.
type LongRow struct {
	HospitalName string
	BedType      string
	ICUSICU      string
	BedCount     int64
}

// BuildResult reports what the combiner did.
type BuildResult struct {
	Rebuilt    bool
	SourceHash string
	Rows       int64
}

// KeyViolation is one offending key and the number of rows holding it.
type KeyViolation struct {
	Key   []string
	Count int64
}

// CheckResult is the outcome of one integrity check. Findings are
// advisory; the caller decides whether the run continues.
type CheckResult struct {
	Name       string
	Table      string
	KeyColumns []string
	Violations []KeyViolation
}

// OK reports whether the check found no violations.
func (r CheckResult) OK() bool { return len(r.Violations) == 0 }
