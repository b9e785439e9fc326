package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bedcap/internal/beds"
)

// The Replace functions below implement the loader contract: the
// target table is truncated and refilled in one transaction per table.
// There is no transactionality across tables; a failed run leaves a
// mixed state and is rerun from scratch.

// ReplaceBedTypes overwrites the bed type dimension.
func (s *Store) ReplaceBedTypes(ctx context.Context, rows []beds.BedType) (int64, error) {
	src := make([][]interface{}, len(rows))
	for i, r := range rows {
		src[i] = []interface{}{r.BedID, r.BedCode, r.BedDesc}
	}
	return s.replace(ctx, TableBedType,
		[]string{"bed_id", "bed_code", "bed_desc"}, src)
}

// ReplaceBedFacts overwrites the per-hospital bed fact table.
func (s *Store) ReplaceBedFacts(ctx context.Context, rows []beds.BedFact) (int64, error) {
	src := make([][]interface{}, len(rows))
	for i, r := range rows {
		src[i] = []interface{}{r.IMSOrgID, r.BedID, r.LicenseBeds, r.CensusBeds, r.StaffedBeds}
	}
	return s.replace(ctx, TableBedFact,
		[]string{"ims_org_id", "bed_id", "license_beds", "census_beds", "staffed_beds"}, src)
}

// ReplaceBusinesses overwrites the business totals table.
func (s *Store) ReplaceBusinesses(ctx context.Context, rows []beds.Business) (int64, error) {
	src := make([][]interface{}, len(rows))
	for i, r := range rows {
		src[i] = []interface{}{r.IMSOrgID, r.BusinessName, r.TTLLicenseBeds, r.TTLCensusBeds, r.TTLStaffedBeds, r.BedClusterID}
	}
	return s.replace(ctx, TableBusiness,
		[]string{"ims_org_id", "business_name", "ttl_license_beds", "ttl_census_beds", "ttl_staffed_beds", "bed_cluster_id"}, src)
}

func (s *Store) replace(ctx context.Context, table string, cols []string, src [][]interface{}) (int64, error) {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.Exec(ctx, "TRUNCATE "+table); err != nil {
		tx.Rollback(ctx)
		return 0, fmt.Errorf("truncate %s: %w", table, err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{table},
		cols,
		pgx.CopyFromRows(src),
	)
	if err != nil {
		tx.Rollback(ctx)
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table, err)
	}

	s.log.Info("table replaced",
		zap.String("table", table),
		zap.Int64("rows", copied),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return copied, nil
}
