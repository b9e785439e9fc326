// Package beds holds the row types of the three bed capacity source
// tables and the canonical ICU/SICU care unit classification.
package beds

import "strings"

// Bed type ids with a fixed meaning in the source data.
const (
	BedIDICU  = 4
	BedIDSICU = 15
)

// CareUnit is the canonical unit classification resolved once when the
// combined table is built. Every downstream query filters and buckets
// on this value; raw bed ids and descriptions never reappear there.
type CareUnit string

const (
	CareUnitICU   CareUnit = "ICU"
	CareUnitSICU  CareUnit = "SICU"
	CareUnitOther CareUnit = "OTHER"
)

// Classify resolves the care unit for a bed type. The id mapping wins;
// the description is consulted only for ids outside the fixed set.
// Rows where the two paths disagree keep the id verdict and are
// surfaced by the unit agreement check.
func Classify(bedID int32, bedDesc string) CareUnit {
	switch bedID {
	case BedIDICU:
		return CareUnitICU
	case BedIDSICU:
		return CareUnitSICU
	}
	switch strings.ToUpper(strings.TrimSpace(bedDesc)) {
	case string(CareUnitICU):
		return CareUnitICU
	case string(CareUnitSICU):
		return CareUnitSICU
	}
	return CareUnitOther
}

// BedType is one row of the bed type dimension.
type BedType struct {
	BedID   int32
	BedCode string
	BedDesc string
}

// BedFact is one row of per-hospital bed counts for one bed type.
// (IMSOrgID, BedID) is expected to be unique; duplicates still load
// and are reported by the integrity checks.
type BedFact struct {
	IMSOrgID    string
	BedID       int32
	LicenseBeds int64
	CensusBeds  int64
	StaffedBeds int64
}

// Business is one row of per-hospital totals. (IMSOrgID, BedClusterID)
// is expected to be unique; duplicates still load and are reported.
type Business struct {
	IMSOrgID       string
	BusinessName   string
	TTLLicenseBeds int64
	TTLCensusBeds  int64
	TTLStaffedBeds int64
	BedClusterID   int32
}
