// Package features assembles the ordered, named model inputs.
package features

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/connectivity-demand/internal/geo"
	"github.com/yungbote/connectivity-demand/internal/indicator"
)

const (
	LatitudeScaled       = "Latitude_Scaled"
	LongitudeScaled      = "Longitude_Scaled"
	FacilityTypeEncoded  = "Facility_Type_Encoded"
	FacilityOwnerEncoded = "Facility_Owner_Encoded"
	Cluster              = "Cluster"
	InteractionTerm      = "Interaction_Term"
)

var ErrNullFeature = errors.New("feature value is null")

// HealthcareSchema is the healthcare model's input layout.
func HealthcareSchema() []string {
	return []string{LatitudeScaled, LongitudeScaled, FacilityTypeEncoded, FacilityOwnerEncoded, Cluster, InteractionTerm}
}

// EducationSchema is the education model's input layout.
func EducationSchema() []string {
	return append([]string{LatitudeScaled, LongitudeScaled}, indicator.Names()...)
}

// Vector is an ordered set of named, nullable values.
type Vector struct {
	names  []string
	values []*float64
}

func (v Vector) Len() int { return len(v.names) }

func (v Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Values returns the values in schema order; nil marks an absent value.
func (v Vector) Values() []*float64 {
	out := make([]*float64, len(v.values))
	copy(out, v.values)
	return out
}

// Dense returns the values as plain floats, failing on the first null.
func (v Vector) Dense() ([]float64, error) {
	out := make([]float64, len(v.values))
	for i, p := range v.values {
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrNullFeature, v.names[i])
		}
		out[i] = *p
	}
	return out, nil
}

// Nulls lists the names of absent values.
func (v Vector) Nulls() []string {
	var out []string
	for i, p := range v.values {
		if p == nil {
			out = append(out, v.names[i])
		}
	}
	return out
}

// String renders the vector for debug logs.
func (v Vector) String() string {
	parts := make([]string, len(v.names))
	for i, n := range v.names {
		if v.values[i] == nil {
			parts[i] = n + "=null"
		} else {
			parts[i] = fmt.Sprintf("%s=%g", n, *v.values[i])
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func ptr(f float64) *float64 { return &f }

// Healthcare assembles the 6-field healthcare vector.
func Healthcare(g geo.Features, typeCode, ownerCode int) Vector {
	return Vector{
		names: HealthcareSchema(),
		values: []*float64{
			ptr(g.LatitudeScaled),
			ptr(g.LongitudeScaled),
			ptr(float64(typeCode)),
			ptr(float64(ownerCode)),
			ptr(float64(g.Cluster)),
			ptr(g.Interaction),
		},
	}
}

// Education assembles the 10-field education vector. indicators must be in
// catalog order; nil entries stay null.
func Education(latS, lonS float64, indicators []*float64) (Vector, error) {
	if len(indicators) != len(indicator.Catalog) {
		return Vector{}, fmt.Errorf("education vector needs %d indicators, got %d", len(indicator.Catalog), len(indicators))
	}
	values := make([]*float64, 0, 2+len(indicators))
	values = append(values, ptr(latS), ptr(lonS))
	for _, p := range indicators {
		if p == nil {
			values = append(values, nil)
			continue
		}
		values = append(values, ptr(*p))
	}
	return Vector{names: EducationSchema(), values: values}, nil
}

// New builds an arbitrary vector, mainly for engines and tests.
func New(names []string, values []*float64) (Vector, error) {
	if len(names) != len(values) {
		return Vector{}, fmt.Errorf("vector has %d names and %d values", len(names), len(values))
	}
	return Vector{names: append([]string(nil), names...), values: append([]*float64(nil), values...)}, nil
}

// SameSchema reports whether a and b name the same fields in the same order.
func SameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
