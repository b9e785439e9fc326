package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"bedcap/internal/beds"
	"bedcap/internal/store"
)

// unitAgreementQuery compares the care unit the combiner stored (bed
// id wins) against the unit the description alone would yield, and
// groups the rows where the two disagree.
var unitAgreementQuery = fmt.Sprintf(`
	SELECT bed_id, bed_desc, count(*)
	FROM %[1]s
	WHERE care_unit <> CASE
		WHEN upper(btrim(bed_desc)) = '%[2]s' THEN '%[2]s'
		WHEN upper(btrim(bed_desc)) = '%[3]s' THEN '%[3]s'
		ELSE '%[4]s'
	END
	GROUP BY bed_id, bed_desc
	ORDER BY bed_id, bed_desc`,
	store.TableCombined, beds.CareUnitICU, beds.CareUnitSICU, beds.CareUnitOther)

// CheckBedFactKey looks for bed-fact rows sharing an (ims_org_id,
// bed_id) pair. Each hospital should report each bed type once; a
// duplicated pair double-counts that hospital in every figure.
func CheckBedFactKey(ctx context.Context, st *store.Store) (CheckResult, error) {
	return checkUnique(ctx, st, "bed_fact_key", store.TableBedFact, []string{"ims_org_id", "bed_id"})
}

// CheckBusinessKey looks for business rows sharing an (ims_org_id,
// bed_cluster_id) pair.
func CheckBusinessKey(ctx context.Context, st *store.Store) (CheckResult, error) {
	return checkUnique(ctx, st, "business_key", store.TableBusiness, []string{"ims_org_id", "bed_cluster_id"})
}

// CheckUnitAgreement reports combined rows whose bed description
// disagrees with the care unit assigned from the bed id. The id
// verdict stands either way; the findings flag source rows worth a
// second look. The check reads the combined table, so it is only
// meaningful after a build.
func CheckUnitAgreement(ctx context.Context, st *store.Store) (CheckResult, error) {
	res := CheckResult{
		Name:       "unit_agreement",
		Table:      store.TableCombined,
		KeyColumns: []string{"bed_id", "bed_desc"},
	}
	rows, err := st.Pool().Query(ctx, unitAgreementQuery)
	if err != nil {
		return res, fmt.Errorf("check %s: %w", res.Name, err)
	}
	res.Violations, err = collectViolations(rows, len(res.KeyColumns))
	if err != nil {
		return res, fmt.Errorf("check %s: %w", res.Name, err)
	}
	return res, nil
}

func checkUnique(ctx context.Context, st *store.Store, name, table string, keyCols []string) (CheckResult, error) {
	res := CheckResult{Name: name, Table: table, KeyColumns: keyCols}
	cols := strings.Join(keyCols, ", ")
	q := fmt.Sprintf(
		"SELECT %[1]s, count(*) FROM %[2]s GROUP BY %[1]s HAVING count(*) > 1 ORDER BY count(*) DESC, %[1]s",
		cols, table)
	rows, err := st.Pool().Query(ctx, q)
	if err != nil {
		return res, fmt.Errorf("check %s: %w", name, err)
	}
	res.Violations, err = collectViolations(rows, len(keyCols))
	if err != nil {
		return res, fmt.Errorf("check %s: %w", name, err)
	}
	return res, nil
}

// collectViolations scans (key columns..., count) rows. Key values of
// any column type are rendered to strings so callers can log them
// without caring about the underlying type.
func collectViolations(rows pgx.Rows, keyLen int) ([]KeyViolation, error) {
	defer rows.Close()
	var out []KeyViolation
	for rows.Next() {
		keyVals := make([]any, keyLen)
		dest := make([]any, 0, keyLen+1)
		for i := range keyVals {
			dest = append(dest, &keyVals[i])
		}
		var count int64
		dest = append(dest, &count)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		key := make([]string, keyLen)
		for i, v := range keyVals {
			key[i] = fmt.Sprint(v)
		}
		out = append(out, KeyViolation{Key: key, Count: count})
	}
	return out, rows.Err()
}
