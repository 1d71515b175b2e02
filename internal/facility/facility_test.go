package facility

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/connectivity-demand/internal/categorical"
	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/platform/gcp"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

func loadFixture(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Load(context.Background(), config.ReferenceConfig{
		Source: "csv",
		Path:   filepath.Join("testdata", "facilities.csv"),
	}, gcp.Opener{}, logger.NewNop())
	require.NoError(t, err)
	return ds
}

func TestReadCSVParsesCoordinates(t *testing.T) {
	ds := loadFixture(t)
	require.Len(t, ds.Records, 8)
	assert.Len(t, ds.Located(), 6)

	ghost := ds.Records[3]
	assert.Equal(t, "Private", ghost.FacilityOwner)
	assert.Nil(t, ghost.Latitude)
	assert.Nil(t, ghost.Longitude)

	half := ds.Records[4]
	require.NotNil(t, half.Latitude)
	assert.Equal(t, 1.25, *half.Latitude)
	assert.False(t, half.Located())
}

func TestTablesOnlyUseLocatedRows(t *testing.T) {
	ds := loadFixture(t)

	owners := OwnerTable(ds.Records)
	assert.Equal(t, []string{"FBO", "Government", "NGO"}, owners.Values())

	types := TypeTable(ds.Records)
	assert.Equal(t, []string{"Health Centre III", "Health Centre IV", "Hospital", "Regional Referral Hospital"}, types.Values())

	_, err := owners.Encode("Private")
	assert.ErrorIs(t, err, categorical.ErrUnknownCategory)
	_, err = types.Encode("Health Centre II")
	assert.ErrorIs(t, err, categorical.ErrUnknownCategory)
}

func TestTablesStableAcrossLoads(t *testing.T) {
	a := loadFixture(t)
	b := loadFixture(t)
	for _, v := range OwnerTable(a.Records).Values() {
		ca, err := OwnerTable(a.Records).Encode(v)
		require.NoError(t, err)
		cb, err := OwnerTable(b.Records).Encode(v)
		require.NoError(t, err)
		assert.Equal(t, ca, cb)
	}
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("Facility_Owner,Latitude,Longitude\nGov,1,2\n"))
	assert.ErrorContains(t, err, ColumnType)
}

func TestReadCSVNaNIsAbsent(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("\ufeffLatitude,Longitude,Facility_Owner,Renamed_Facility_Type\nNaN,32.1,Gov,Hospital\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Latitude)
	assert.False(t, rows[0].Located())
}

func TestLoadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.db")
	db, err := OpenDB("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE facilities (
		facility_owner TEXT,
		renamed_facility_type TEXT,
		latitude REAL,
		longitude REAL
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO facilities VALUES
		('Government', 'Hospital', 0.34, 32.58),
		('NGO', 'Clinic', 2.78, 32.25),
		('Private', 'Pharmacy', NULL, 32.1),
		(NULL, 'Hospital', 1.0, 1.0)`).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	ds, err := Load(context.Background(), config.ReferenceConfig{
		Source: "sqlite",
		Path:   path,
		Table:  "facilities",
	}, gcp.Opener{}, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, ds.Records, 4)

	assert.Equal(t, []string{"Government", "NGO"}, OwnerTable(ds.Records).Values())
	assert.Equal(t, []string{"Clinic", "Hospital"}, TypeTable(ds.Records).Values())
}

func TestLoadPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := OpenDB("postgres", dsn)
	require.NoError(t, err)
	table := "facilities_test"
	require.NoError(t, db.Exec(`DROP TABLE IF EXISTS `+table).Error)
	require.NoError(t, db.Exec(`CREATE TABLE `+table+` (
		facility_owner TEXT,
		renamed_facility_type TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION
	)`).Error)
	t.Cleanup(func() { db.Exec(`DROP TABLE IF EXISTS ` + table) })
	require.NoError(t, db.Exec(`INSERT INTO `+table+` VALUES ('Government', 'Hospital', 0.34, 32.58)`).Error)

	ds, err := Load(context.Background(), config.ReferenceConfig{
		Source: "postgres",
		DSN:    dsn,
		Table:  table,
	}, gcp.Opener{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"Government"}, OwnerTable(ds.Records).Values())
}
