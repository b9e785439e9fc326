package report

import (
	"strings"

	"bedcap/internal/beds"
)

// unitOrder fixes the ICU-before-SICU block order used by both
// reshapes.
var unitOrder = []string{string(beds.CareUnitICU), string(beds.CareUnitSICU)}

// nameWraps breaks four long hospital names across two lines so chart
// labels stay readable. Names already wrapped pass through unchanged.
var nameWraps = [...][2]string{
	{"Hospital of the University of Pennsylvania", "Hospital of the\nUniversity of Pennsylvania"},
	{"University of Maryland Medical Center", "University of Maryland\nMedical Center"},
	{"Via Christi Regional Medical Center", "Via Christi Regional\nMedical Center"},
	{"Charleston Area Medical Center", "Charleston Area\nMedical Center"},
}

// WrapHospitalName applies the fixed label substitutions to one name.
func WrapHospitalName(name string) string {
	for _, w := range nameWraps {
		name = strings.ReplaceAll(name, w[0], w[1])
	}
	return name
}

// Reshape melts wide single-measure rows into the long chart form: the
// ICU block first, then the SICU block, hospitals in ranked order
// within each. ICUSICU stays empty; the unit is the bed type here.
func Reshape(rows []AggregateRow) []LongRow {
	out := make([]LongRow, 0, 2*len(rows))
	for _, r := range rows {
		out = append(out, LongRow{
			HospitalName: WrapHospitalName(r.HospitalName),
			BedType:      string(beds.CareUnitICU),
			BedCount:     r.ICU,
		})
	}
	for _, r := range rows {
		out = append(out, LongRow{
			HospitalName: WrapHospitalName(r.HospitalName),
			BedType:      string(beds.CareUnitSICU),
			BedCount:     r.SICU,
		})
	}
	return out
}

// compositeCols names the six measure-unit cells of a composite row in
// measure-major order. The compound name splits on the first space
// into the two category dimensions.
type compositeCol struct {
	name  string
	value func(CompositeRow) int64
}

var compositeCols = []compositeCol{
	{"License ICU", func(r CompositeRow) int64 { return r.LicenseICU }},
	{"License SICU", func(r CompositeRow) int64 { return r.LicenseSICU }},
	{"Census ICU", func(r CompositeRow) int64 { return r.CensusICU }},
	{"Census SICU", func(r CompositeRow) int64 { return r.CensusSICU }},
	{"Staffed ICU", func(r CompositeRow) int64 { return r.StaffedICU }},
	{"Staffed SICU", func(r CompositeRow) int64 { return r.StaffedSICU }},
}

// ReshapeComposite melts composite rows into long form. SplitByBedType
// keeps the measure-major block order; SplitByUnit regroups the same
// cells unit-major. Within every block the hospitals keep their ranked
// order.
func ReshapeComposite(rows []CompositeRow, split Split) []LongRow {
	ordered := compositeCols
	if split == SplitByUnit {
		ordered = make([]compositeCol, 0, len(compositeCols))
		for _, unit := range unitOrder {
			for _, col := range compositeCols {
				if _, u, _ := strings.Cut(col.name, " "); u == unit {
					ordered = append(ordered, col)
				}
			}
		}
	}

	out := make([]LongRow, 0, len(ordered)*len(rows))
	for _, col := range ordered {
		bedType, unit, _ := strings.Cut(col.name, " ")
		for _, r := range rows {
			out = append(out, LongRow{
				HospitalName: WrapHospitalName(r.HospitalName),
				BedType:      bedType,
				ICUSICU:      unit,
				BedCount:     col.value(r),
			})
		}
	}
	return out
}
