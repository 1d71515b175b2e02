package predict

import (
	"math"
	"strings"

	"github.com/yungbote/connectivity-demand/internal/platform/apierr"
)

// Field names as they appear in request bodies and error responses.
const (
	FieldLatitude      = "Latitude"
	FieldLongitude     = "Longitude"
	FieldFacilityType  = "facilityType"
	FieldFacilityOwner = "facilityOwnerType"
	FieldServiceType   = "service_type"
)

// Request carries the union of the healthcare and education inputs. Pointer
// fields are nil when the caller left them out.
type Request struct {
	Latitude      *float64
	Longitude     *float64
	FacilityType  *string
	FacilityOwner *string
}

func validateCoordinates(req Request) (lat, lon float64, err error) {
	if req.Latitude == nil {
		return 0, 0, apierr.Validation(FieldLatitude, "%s is required", FieldLatitude)
	}
	if req.Longitude == nil {
		return 0, 0, apierr.Validation(FieldLongitude, "%s is required", FieldLongitude)
	}
	lat, lon = *req.Latitude, *req.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return 0, 0, apierr.Validation(FieldLatitude, "%s must be between -90 and 90", FieldLatitude)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return 0, 0, apierr.Validation(FieldLongitude, "%s must be between -180 and 180", FieldLongitude)
	}
	return lat, lon, nil
}

func requiredString(field string, v *string) (string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", apierr.Validation(field, "%s is required", field)
	}
	return *v, nil
}
