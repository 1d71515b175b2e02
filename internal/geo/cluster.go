package geo

import (
	"errors"
	"fmt"
	"math"
)

// ClusterModel assigns scaled coordinates to the nearest fitted centroid.
type ClusterModel struct {
	Centroids [][]float64 `json:"centroids"`
}

func (m *ClusterModel) Validate() error {
	if m == nil || len(m.Centroids) == 0 {
		return errors.New("cluster model has no centroids")
	}
	for i, c := range m.Centroids {
		if len(c) != 2 {
			return fmt.Errorf("centroid %d must have 2 values, got %d", i, len(c))
		}
		if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
			return fmt.Errorf("centroid %d is not finite", i)
		}
	}
	return nil
}

func (m *ClusterModel) Len() int { return len(m.Centroids) }

// Assign returns the index of the centroid with the smallest squared euclidean
// distance. Ties go to the lowest index. Points far from every centroid still
// get the nearest one.
func (m *ClusterModel) Assign(latS, lonS float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range m.Centroids {
		dLat := latS - c[0]
		dLon := lonS - c[1]
		d := dLat*dLat + dLon*dLon
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// InteractionTerm is the product of the scaled coordinates.
func InteractionTerm(latS, lonS float64) float64 {
	return latS * lonS
}
