package facility

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB opens the reference database for source "postgres" or "sqlite".
func OpenDB(source, dsnOrPath string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch source {
	case "postgres":
		dialector = postgres.Open(dsnOrPath)
	case "sqlite":
		dialector = sqlite.Open(dsnOrPath)
	default:
		return nil, fmt.Errorf("unsupported reference database %q", source)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", source, err)
	}
	return db, nil
}

// QueryRecords reads every row of table. Rows are ordered by the category
// columns so repeated loads see the same sequence.
func QueryRecords(ctx context.Context, db *gorm.DB, table string) ([]Record, error) {
	var rows []Record
	err := db.WithContext(ctx).
		Table(table).
		Select("COALESCE(facility_owner, '') AS facility_owner, COALESCE(renamed_facility_type, '') AS renamed_facility_type, latitude, longitude").
		Order("facility_owner").
		Order("renamed_facility_type").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return rows, nil
}
