// Package geo turns raw coordinates into the scaled and clustered features the
// trained models consume. Every parameter is fitted offline and frozen.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type ScalerKind string

const (
	// ScalerStandard computes (x - mean) / scale.
	ScalerStandard ScalerKind = "standard"
	// ScalerMinMax computes x*scale + min.
	ScalerMinMax ScalerKind = "minmax"
)

// Scaler is a fitted two-column (latitude, longitude) linear transform.
type Scaler struct {
	Kind  ScalerKind `json:"kind"`
	Mean  []float64  `json:"mean,omitempty"`
	Scale []float64  `json:"scale"`
	Min   []float64  `json:"min,omitempty"`
}

func (s *Scaler) Validate() error {
	if s == nil {
		return errors.New("scaler is nil")
	}
	if s.Kind == "" {
		s.Kind = ScalerStandard
	}
	if len(s.Scale) != 2 {
		return fmt.Errorf("scaler.scale must have 2 values, got %d", len(s.Scale))
	}
	switch s.Kind {
	case ScalerStandard:
		if len(s.Mean) != 2 {
			return fmt.Errorf("standard scaler.mean must have 2 values, got %d", len(s.Mean))
		}
	case ScalerMinMax:
		if len(s.Min) != 2 {
			return fmt.Errorf("minmax scaler.min must have 2 values, got %d", len(s.Min))
		}
	default:
		return fmt.Errorf("unsupported scaler kind %q", s.Kind)
	}
	for _, v := range append(append(append([]float64{}, s.Mean...), s.Scale...), s.Min...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("scaler parameters must be finite")
		}
	}
	return nil
}

// Apply maps raw coordinates into the fitted space.
func (s *Scaler) Apply(lat, lon float64) (float64, float64) {
	return s.column(0, lat), s.column(1, lon)
}

func (s *Scaler) column(i int, x float64) float64 {
	switch s.Kind {
	case ScalerMinMax:
		return x*s.Scale[i] + s.Min[i]
	default:
		scale := s.Scale[i]
		// A constant training column is stored with scale 0 and left unscaled.
		if scale == 0 {
			scale = 1
		}
		return (x - s.Mean[i]) / scale
	}
}

// ParseScaler decodes and validates a scaler artifact.
func ParseScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
