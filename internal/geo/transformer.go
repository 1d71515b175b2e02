package geo

import (
	"encoding/json"
	"fmt"
)

// Features are the coordinate-derived inputs of the healthcare model.
type Features struct {
	LatitudeScaled  float64
	LongitudeScaled float64
	Cluster         int
	Interaction     float64
}

// Transformer bundles the scaler and cluster model that were fitted together.
type Transformer struct {
	Scaler   *Scaler       `json:"scaler"`
	Clusters *ClusterModel `json:"clusters"`
}

func (t *Transformer) Transform(lat, lon float64) Features {
	latS, lonS := t.Scaler.Apply(lat, lon)
	return Features{
		LatitudeScaled:  latS,
		LongitudeScaled: lonS,
		Cluster:         t.Clusters.Assign(latS, lonS),
		Interaction:     InteractionTerm(latS, lonS),
	}
}

// ParseTransformer decodes and validates the combined scaler + centroid artifact.
func ParseTransformer(data []byte) (*Transformer, error) {
	var t Transformer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode geo transformer: %w", err)
	}
	if err := t.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("geo transformer: %w", err)
	}
	if err := t.Clusters.Validate(); err != nil {
		return nil, fmt.Errorf("geo transformer: %w", err)
	}
	return &t, nil
}
