package export

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bedcap/internal/report"
)

func readParquet[T any](t *testing.T, path string) []T {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet: %v", err)
	}
	return rows[:n]
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteFigure(t *testing.T) {
	dir := t.TempDir()
	exp, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	wide := []report.AggregateRow{
		{HospitalName: "Charleston Area Medical Center", ICU: 10, SICU: 5, Total: 15},
		{HospitalName: "General Hospital", ICU: 8, SICU: 2, Total: 10},
	}
	long := report.Reshape(wide)

	fig := report.Figures[1] // census_beds_top10
	paths, err := exp.WriteFigure(fig, wide, long)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		_, err := os.Stat(p)
		require.NoError(t, err, p)
	}

	base := filepath.Join(dir, "fig2_census_beds_top10")
	require.Equal(t, base+".csv", paths[0])

	// The wide CSV mirrors the query result with unwrapped names.
	require.Equal(t,
		"hospital_name,icu_beds,sicu_beds,total_beds\n"+
			"Charleston Area Medical Center,10,5,15\n"+
			"General Hospital,8,2,10\n",
		readFile(t, paths[0]))

	// The long CSV carries the chart form; the wrapped name is quoted
	// and survives the newline.
	require.Equal(t,
		"hospital_name,bed_type,bed_count\n"+
			"\"Charleston Area\nMedical Center\",ICU,10\n"+
			"General Hospital,ICU,8\n"+
			"\"Charleston Area\nMedical Center\",SICU,5\n"+
			"General Hospital,SICU,2\n",
		readFile(t, paths[1]))

	require.Equal(t, []longRecord{
		{HospitalName: "Charleston Area\nMedical Center", BedType: "ICU", BedCount: 10},
		{HospitalName: "General Hospital", BedType: "ICU", BedCount: 8},
		{HospitalName: "Charleston Area\nMedical Center", BedType: "SICU", BedCount: 5},
		{HospitalName: "General Hospital", BedType: "SICU", BedCount: 2},
	}, readParquet[longRecord](t, paths[2]))
}

func TestWriteCompositeFigure(t *testing.T) {
	dir := t.TempDir()
	exp, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	wide := []report.CompositeRow{
		{
			HospitalName: "Alpha",
			LicenseICU:   1, LicenseSICU: 2, LicenseTotal: 3,
			CensusICU: 4, CensusSICU: 5, CensusTotal: 9,
			StaffedICU: 7, StaffedSICU: 8, StaffedTotal: 15,
		},
	}
	long := report.ReshapeComposite(wide, report.SplitByBedType)

	fig := report.Figures[6] // all_measures_by_bed_type
	paths, err := exp.WriteCompositeFigure(fig, wide, long)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	require.Equal(t,
		"hospital_name,license_icu_beds,license_sicu_beds,license_total_beds,"+
			"census_icu_beds,census_sicu_beds,census_total_beds,"+
			"staffed_icu_beds,staffed_sicu_beds,staffed_total_beds\n"+
			"Alpha,1,2,3,4,5,9,7,8,15\n",
		readFile(t, paths[0]))

	require.Equal(t,
		"hospital_name,bed_type,icu_sicu,bed_count\n"+
			"Alpha,License,ICU,1\n"+
			"Alpha,License,SICU,2\n"+
			"Alpha,Census,ICU,4\n"+
			"Alpha,Census,SICU,5\n"+
			"Alpha,Staffed,ICU,7\n"+
			"Alpha,Staffed,SICU,8\n",
		readFile(t, paths[1]))

	require.Equal(t, []compositeLongRecord{
		{HospitalName: "Alpha", BedType: "License", ICUSICU: "ICU", BedCount: 1},
		{HospitalName: "Alpha", BedType: "License", ICUSICU: "SICU", BedCount: 2},
		{HospitalName: "Alpha", BedType: "Census", ICUSICU: "ICU", BedCount: 4},
		{HospitalName: "Alpha", BedType: "Census", ICUSICU: "SICU", BedCount: 5},
		{HospitalName: "Alpha", BedType: "Staffed", ICUSICU: "ICU", BedCount: 7},
		{HospitalName: "Alpha", BedType: "Staffed", ICUSICU: "SICU", BedCount: 8},
	}, readParquet[compositeLongRecord](t, paths[2]))
}

func TestWriteFigureEmpty(t *testing.T) {
	dir := t.TempDir()
	exp, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	fig := report.Figures[0]
	paths, err := exp.WriteFigure(fig, nil, nil)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	require.Equal(t, "hospital_name,icu_beds,sicu_beds,total_beds\n", readFile(t, paths[0]))
	require.Equal(t, "hospital_name,bed_type,bed_count\n", readFile(t, paths[1]))
	require.Empty(t, readParquet[longRecord](t, paths[2]))
}

func TestNewCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	exp, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, dir, exp.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
