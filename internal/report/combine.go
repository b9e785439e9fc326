package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bedcap/internal/beds"
	"bedcap/internal/store"
)

// combinedInsert joins the three source tables and classifies each row
// into a care unit as it lands. The bed_id mapping wins over the
// description so the two sources cannot disagree inside the combined
// table; CheckUnitAgreement surfaces rows where they differ.
var combinedInsert = fmt.Sprintf(`
	INSERT INTO %[1]s (
		ims_org_id, business_name,
		ttl_license_beds, ttl_census_beds, ttl_staffed_beds, bed_cluster_id,
		bed_id, license_beds, census_beds, staffed_beds,
		bed_code, bed_desc, care_unit
	)
	SELECT
		b.ims_org_id, b.business_name,
		b.ttl_license_beds, b.ttl_census_beds, b.ttl_staffed_beds, b.bed_cluster_id,
		f.bed_id, f.license_beds, f.census_beds, f.staffed_beds,
		t.bed_code, t.bed_desc,
		CASE
			WHEN f.bed_id = %[5]d THEN '%[6]s'
			WHEN f.bed_id = %[7]d THEN '%[8]s'
			WHEN upper(btrim(t.bed_desc)) = '%[6]s' THEN '%[6]s'
			WHEN upper(btrim(t.bed_desc)) = '%[8]s' THEN '%[8]s'
			ELSE '%[9]s'
		END
	FROM %[2]s b
	JOIN %[3]s f ON f.ims_org_id = b.ims_org_id
	JOIN %[4]s t ON t.bed_id = f.bed_id`,
	store.TableCombined, store.TableBusiness, store.TableBedFact, store.TableBedType,
	beds.BedIDICU, beds.CareUnitICU, beds.BedIDSICU, beds.CareUnitSICU, beds.CareUnitOther)

// fingerprintQueries read every source row in a deterministic order so
// the fingerprint depends only on content, not on load order.
var fingerprintQueries = []struct {
	label string
	sql   string
}{
	{store.TableBedType, "SELECT bed_id, bed_code, bed_desc FROM " + store.TableBedType +
		" ORDER BY bed_id, bed_code, bed_desc"},
	{store.TableBedFact, "SELECT ims_org_id, bed_id, license_beds, census_beds, staffed_beds FROM " + store.TableBedFact +
		" ORDER BY ims_org_id, bed_id, license_beds, census_beds, staffed_beds"},
	{store.TableBusiness, "SELECT ims_org_id, business_name, ttl_license_beds, ttl_census_beds, ttl_staffed_beds, bed_cluster_id FROM " + store.TableBusiness +
		" ORDER BY ims_org_id, bed_cluster_id, business_name, ttl_license_beds, ttl_census_beds, ttl_staffed_beds"},
}

// BuildCombined rebuilds the combined table when the source tables
// have changed since the last build, and leaves it untouched when they
// have not. The rebuild and its bookkeeping commit in one transaction,
// so a crash mid-build leaves the previous fingerprint in place and
// the next run rebuilds again.
func BuildCombined(ctx context.Context, st *store.Store, log *zap.Logger) (BuildResult, error) {
	start := time.Now()

	hash, err := sourceFingerprint(ctx, st)
	if err != nil {
		return BuildResult{}, fmt.Errorf("fingerprint sources: %w", err)
	}

	var prev string
	err = st.Pool().QueryRow(ctx,
		"SELECT source_hash FROM "+store.TableCombinedMeta+" WHERE id = 1").Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return BuildResult{}, fmt.Errorf("read combined meta: %w", err)
	}
	if err == nil && prev == hash {
		var n int64
		if err := st.Pool().QueryRow(ctx,
			"SELECT count(*) FROM "+store.TableCombined).Scan(&n); err != nil {
			return BuildResult{}, fmt.Errorf("count combined rows: %w", err)
		}
		log.Info("combined table up to date",
			zap.String("source_hash", shortHash(hash)),
			zap.Int64("rows", n))
		return BuildResult{SourceHash: hash, Rows: n}, nil
	}

	tx, err := st.Pool().Begin(ctx)
	if err != nil {
		return BuildResult{}, fmt.Errorf("begin combined rebuild: %w", err)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+store.TableCombined); err != nil {
		tx.Rollback(ctx)
		return BuildResult{}, fmt.Errorf("truncate %s: %w", store.TableCombined, err)
	}
	tag, err := tx.Exec(ctx, combinedInsert)
	if err != nil {
		tx.Rollback(ctx)
		return BuildResult{}, fmt.Errorf("populate %s: %w", store.TableCombined, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO "+store.TableCombinedMeta+" (id, source_hash, built_at) VALUES (1, $1, now()) "+
			"ON CONFLICT (id) DO UPDATE SET source_hash = EXCLUDED.source_hash, built_at = EXCLUDED.built_at",
		hash); err != nil {
		tx.Rollback(ctx)
		return BuildResult{}, fmt.Errorf("record combined meta: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return BuildResult{}, fmt.Errorf("commit combined rebuild: %w", err)
	}

	rows := tag.RowsAffected()
	log.Info("combined table rebuilt",
		zap.String("source_hash", shortHash(hash)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", time.Since(start)))
	return BuildResult{Rebuilt: true, SourceHash: hash, Rows: rows}, nil
}

// CombinedBuilt reports whether a combined build has ever been
// recorded in this store.
func CombinedBuilt(ctx context.Context, st *store.Store) (bool, error) {
	var built bool
	if err := st.Pool().QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+store.TableCombinedMeta+" WHERE id = 1)").Scan(&built); err != nil {
		return false, fmt.Errorf("read combined meta: %w", err)
	}
	return built, nil
}

// sourceFingerprint hashes the full content of the three source tables
// in key order. Two stores holding the same rows produce the same
// fingerprint regardless of how the rows arrived.
func sourceFingerprint(ctx context.Context, st *store.Store) (string, error) {
	h := sha256.New()
	for _, q := range fingerprintQueries {
		fmt.Fprintf(h, "%s\n", q.label)
		rows, err := st.Pool().Query(ctx, q.sql)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", q.label, err)
		}
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				rows.Close()
				return "", fmt.Errorf("read %s row: %w", q.label, err)
			}
			for _, v := range vals {
				fmt.Fprintf(h, "\t%v", v)
			}
			fmt.Fprintln(h)
		}
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("scan %s: %w", q.label, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
