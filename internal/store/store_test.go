package store

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"bedcap/internal/beds"
)

// Embedded server port for this package's tests. Each DB test package
// uses its own port so their servers never collide when packages run
// concurrently.
const testPort = 15441

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()
	st, err := Open(context.Background(), Options{
		Embedded:   true,
		DataDir:    filepath.Join(dir, "pgdata"),
		RuntimeDir: filepath.Join(dir, "pgruntime"),
		Port:       testPort,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestEnsureSchema(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	// ── All five tables exist ──────────────────────────────────────
	for _, table := range []string{
		TableBedType, TableBedFact, TableBusiness, TableCombined, TableCombinedMeta,
	} {
		exists, err := st.TableExists(ctx, table)
		if err != nil {
			t.Fatalf("table exists %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s not created", table)
		}
	}

	exists, err := st.TableExists(ctx, "no_such_table")
	if err != nil {
		t.Fatalf("table exists: %v", err)
	}
	if exists {
		t.Errorf("no_such_table reported as existing")
	}

	// ── Re-running keeps existing rows ─────────────────────────────
	if _, err := st.ReplaceBedTypes(ctx, []beds.BedType{
		{BedID: 4, BedCode: "ICU", BedDesc: "ICU"},
	}); err != nil {
		t.Fatalf("replace bed types: %v", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema again: %v", err)
	}
	var n int
	if err := st.Pool().QueryRow(ctx, "SELECT count(*) FROM "+TableBedType).Scan(&n); err != nil {
		t.Fatalf("count bed types: %v", err)
	}
	if n != 1 {
		t.Errorf("bed types after re-ensure = %d, want 1", n)
	}
}

func TestReplaceTables(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	// ── Bed types round-trip ───────────────────────────────────────
	types := []beds.BedType{
		{BedID: 4, BedCode: "ICU", BedDesc: "ICU"},
		{BedID: 15, BedCode: "SICU", BedDesc: "SICU"},
	}
	n, err := st.ReplaceBedTypes(ctx, types)
	if err != nil {
		t.Fatalf("replace bed types: %v", err)
	}
	if n != 2 {
		t.Errorf("bed types loaded = %d, want 2", n)
	}

	var code, desc string
	err = st.Pool().QueryRow(ctx,
		"SELECT bed_code, bed_desc FROM "+TableBedType+" WHERE bed_id = 15").Scan(&code, &desc)
	if err != nil {
		t.Fatalf("query bed type: %v", err)
	}
	if code != "SICU" || desc != "SICU" {
		t.Errorf("bed type 15 = (%q, %q), want (SICU, SICU)", code, desc)
	}

	// ── Replace overwrites, never appends ──────────────────────────
	n, err = st.ReplaceBedTypes(ctx, []beds.BedType{
		{BedID: 1, BedCode: "GEN", BedDesc: "General"},
	})
	if err != nil {
		t.Fatalf("replace bed types again: %v", err)
	}
	if n != 1 {
		t.Errorf("bed types loaded = %d, want 1", n)
	}
	var count int
	if err := st.Pool().QueryRow(ctx, "SELECT count(*) FROM "+TableBedType).Scan(&count); err != nil {
		t.Fatalf("count bed types: %v", err)
	}
	if count != 1 {
		t.Errorf("bed types after second replace = %d, want 1", count)
	}

	// ── Duplicate source rows load as-is ───────────────────────────
	// The source tables carry no unique constraints; duplicated keys
	// must land so the integrity checks can find them.
	facts := []beds.BedFact{
		{IMSOrgID: "ORG1", BedID: 4, LicenseBeds: 10, CensusBeds: 8, StaffedBeds: 6},
		{IMSOrgID: "ORG1", BedID: 4, LicenseBeds: 10, CensusBeds: 8, StaffedBeds: 6},
	}
	n, err = st.ReplaceBedFacts(ctx, facts)
	if err != nil {
		t.Fatalf("replace bed facts: %v", err)
	}
	if n != 2 {
		t.Errorf("bed facts loaded = %d, want 2", n)
	}
	if err := st.Pool().QueryRow(ctx, "SELECT count(*) FROM "+TableBedFact).Scan(&count); err != nil {
		t.Fatalf("count bed facts: %v", err)
	}
	if count != 2 {
		t.Errorf("bed facts = %d, want 2", count)
	}

	// ── Businesses round-trip ──────────────────────────────────────
	businesses := []beds.Business{
		{IMSOrgID: "ORG1", BusinessName: "Test Hospital",
			TTLLicenseBeds: 15, TTLCensusBeds: 12, TTLStaffedBeds: 9, BedClusterID: 1},
	}
	if _, err := st.ReplaceBusinesses(ctx, businesses); err != nil {
		t.Fatalf("replace businesses: %v", err)
	}
	var name string
	var ttlLicense int64
	var cluster int32
	err = st.Pool().QueryRow(ctx,
		"SELECT business_name, ttl_license_beds, bed_cluster_id FROM "+TableBusiness+
			" WHERE ims_org_id = 'ORG1'").Scan(&name, &ttlLicense, &cluster)
	if err != nil {
		t.Fatalf("query business: %v", err)
	}
	if name != "Test Hospital" {
		t.Errorf("business_name = %q, want %q", name, "Test Hospital")
	}
	if ttlLicense != 15 {
		t.Errorf("ttl_license_beds = %d, want 15", ttlLicense)
	}
	if cluster != 1 {
		t.Errorf("bed_cluster_id = %d, want 1", cluster)
	}
}

func TestDataPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Embedded:   true,
		DataDir:    filepath.Join(dir, "pgdata"),
		RuntimeDir: filepath.Join(dir, "pgruntime"),
		Port:       testPort,
	}
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	st, err := Open(ctx, opts, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := st.ReplaceBedTypes(ctx, []beds.BedType{
		{BedID: 4, BedCode: "ICU", BedDesc: "ICU"},
	}); err != nil {
		st.Close()
		t.Fatalf("replace bed types: %v", err)
	}
	st.Close()

	st, err = Open(ctx, opts, log)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()

	var desc string
	if err := st.Pool().QueryRow(ctx,
		"SELECT bed_desc FROM "+TableBedType+" WHERE bed_id = 4").Scan(&desc); err != nil {
		t.Fatalf("query after reopen: %v", err)
	}
	if desc != "ICU" {
		t.Errorf("bed_desc after reopen = %q, want %q", desc, "ICU")
	}
}
