// Package facility loads the reference facility dataset the category tables are derived from.
package facility

import (
	"github.com/yungbote/connectivity-demand/internal/categorical"
)

// Record is one reference row. Nil coordinates mean the value was absent.
type Record struct {
	FacilityOwner string   `gorm:"column:facility_owner"`
	FacilityType  string   `gorm:"column:renamed_facility_type"`
	Latitude      *float64 `gorm:"column:latitude"`
	Longitude     *float64 `gorm:"column:longitude"`
}

// Located reports whether both coordinates are present.
func (r Record) Located() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Dataset is the immutable reference set loaded at startup.
type Dataset struct {
	Source  string
	Records []Record
}

// Located returns the rows with both coordinates present, in load order.
func (d *Dataset) Located() []Record {
	out := make([]Record, 0, len(d.Records))
	for _, r := range d.Records {
		if r.Located() {
			out = append(out, r)
		}
	}
	return out
}

// OwnerTable encodes facility owners seen on located rows only.
func OwnerTable(rows []Record) *categorical.Table {
	labels := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Located() {
			labels = append(labels, r.FacilityOwner)
		}
	}
	return categorical.Build("facilityOwnerType", labels)
}

// TypeTable encodes facility types seen on located rows only.
func TypeTable(rows []Record) *categorical.Table {
	labels := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Located() {
			labels = append(labels, r.FacilityType)
		}
	}
	return categorical.Build("facilityType", labels)
}
