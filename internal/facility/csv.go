package facility

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Reference dataset column names.
const (
	ColumnOwner     = "Facility_Owner"
	ColumnType      = "Renamed_Facility_Type"
	ColumnLatitude  = "Latitude"
	ColumnLongitude = "Longitude"
)

// ReadCSV parses the reference dataset. Columns are located by header name and
// extra columns are ignored. Blank, NaN or unparsable coordinates load as nil.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("reference csv is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, col := range []string{ColumnOwner, ColumnType, ColumnLatitude, ColumnLongitude} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("reference csv missing column %q", col)
		}
	}

	field := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, Record{
			FacilityOwner: field(row, ColumnOwner),
			FacilityType:  field(row, ColumnType),
			Latitude:      parseCoord(field(row, ColumnLatitude)),
			Longitude:     parseCoord(field(row, ColumnLongitude)),
		})
	}
	return out, nil
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}
