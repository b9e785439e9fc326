package report

import (
	"context"
	"fmt"

	"bedcap/internal/beds"
	"bedcap/internal/store"
)

// topN is how many hospitals each figure keeps. Results are fully
// materialized and sorted before the cut so ties resolve by name, not
// by arrival order.
const topN = 10

var (
	careUnitFilter = fmt.Sprintf("care_unit IN ('%s', '%s')",
		beds.CareUnitICU, beds.CareUnitSICU)

	// minPresenceHaving keeps only hospitals holding at least one row
	// in each unit.
	minPresenceHaving = fmt.Sprintf(
		"HAVING count(*) FILTER (WHERE care_unit = '%s') > 0 AND count(*) FILTER (WHERE care_unit = '%s') > 0",
		beds.CareUnitICU, beds.CareUnitSICU)
)

// TopHospitals runs one single-measure figure: per-hospital ICU and
// SICU sums of the chosen measure over the combined table, ranked by
// the unit total with the hospital name as tie break.
func TopHospitals(ctx context.Context, st *store.Store, measure Measure, minPresence bool) ([]AggregateRow, error) {
	col, err := measure.column()
	if err != nil {
		return nil, err
	}
	having := ""
	if minPresence {
		having = minPresenceHaving
	}
	q := fmt.Sprintf(`
		SELECT business_name,
			SUM(CASE WHEN care_unit = '%[3]s' THEN %[1]s ELSE 0 END) AS icu_beds,
			SUM(CASE WHEN care_unit = '%[4]s' THEN %[1]s ELSE 0 END) AS sicu_beds,
			SUM(%[1]s) AS total_beds
		FROM %[2]s
		WHERE %[5]s
		GROUP BY business_name
		%[6]s
		ORDER BY total_beds DESC, business_name ASC`,
		col, store.TableCombined, beds.CareUnitICU, beds.CareUnitSICU, careUnitFilter, having)

	rows, err := st.Pool().Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s figure: %w", col, err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var r AggregateRow
		if err := rows.Scan(&r.HospitalName, &r.ICU, &r.SICU, &r.Total); err != nil {
			return nil, fmt.Errorf("scan %s figure row: %w", col, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s figure: %w", col, err)
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// CompositeTop runs the composite figure: all nine conditional sums
// per hospital, ranked by the sum of the three grand totals. Both
// composite figures share this result and differ only in how the
// reshape orders it.
func CompositeTop(ctx context.Context, st *store.Store) ([]CompositeRow, error) {
	q := fmt.Sprintf(`
		SELECT business_name, %s, %s, %s
		FROM %s
		WHERE %s
		GROUP BY business_name
		%s
		ORDER BY SUM(license_beds) + SUM(census_beds) + SUM(staffed_beds) DESC, business_name ASC`,
		measureSums(string(MeasureLicense)),
		measureSums(string(MeasureCensus)),
		measureSums(string(MeasureStaffed)),
		store.TableCombined, careUnitFilter, minPresenceHaving)

	rows, err := st.Pool().Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query composite figure: %w", err)
	}
	defer rows.Close()

	var out []CompositeRow
	for rows.Next() {
		var r CompositeRow
		if err := rows.Scan(&r.HospitalName,
			&r.LicenseICU, &r.LicenseSICU, &r.LicenseTotal,
			&r.CensusICU, &r.CensusSICU, &r.CensusTotal,
			&r.StaffedICU, &r.StaffedSICU, &r.StaffedTotal); err != nil {
			return nil, fmt.Errorf("scan composite figure row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read composite figure: %w", err)
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// measureSums expands one measure column into its ICU, SICU, and total
// sum expressions, in that column order.
func measureSums(col string) string {
	return fmt.Sprintf(
		"SUM(CASE WHEN care_unit = '%[2]s' THEN %[1]s ELSE 0 END), "+
			"SUM(CASE WHEN care_unit = '%[3]s' THEN %[1]s ELSE 0 END), "+
			"SUM(%[1]s)",
		col, beds.CareUnitICU, beds.CareUnitSICU)
}
