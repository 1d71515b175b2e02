package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transformerJSON = `{
  "scaler": {"kind": "standard", "mean": [1.5, 32.5], "scale": [0.5, 2.0]},
  "clusters": {"centroids": [[0, 0], [2, 2], [-2, 2], [2, 2]]}
}`

func TestStandardScaler(t *testing.T) {
	s, err := ParseScaler([]byte(`{"mean": [10, 20], "scale": [2, 4]}`))
	require.NoError(t, err)
	assert.Equal(t, ScalerStandard, s.Kind)

	latS, lonS := s.Apply(14, 12)
	assert.InDelta(t, 2.0, latS, 1e-12)
	assert.InDelta(t, -2.0, lonS, 1e-12)
}

func TestStandardScalerZeroScale(t *testing.T) {
	s := &Scaler{Kind: ScalerStandard, Mean: []float64{1, 1}, Scale: []float64{0, 1}}
	require.NoError(t, s.Validate())
	latS, _ := s.Apply(3, 0)
	assert.Equal(t, 2.0, latS)
}

func TestMinMaxScaler(t *testing.T) {
	s, err := ParseScaler([]byte(`{"kind": "minmax", "scale": [0.01, 0.005], "min": [0.5, 0.5]}`))
	require.NoError(t, err)
	latS, lonS := s.Apply(-50, 100)
	assert.InDelta(t, 0.0, latS, 1e-12)
	assert.InDelta(t, 1.0, lonS, 1e-12)
}

func TestParseScalerRejectsBadShapes(t *testing.T) {
	for name, body := range map[string]string{
		"short scale": `{"mean": [1, 2], "scale": [1]}`,
		"no mean":     `{"kind": "standard", "scale": [1, 1]}`,
		"no min":      `{"kind": "minmax", "scale": [1, 1]}`,
		"bad kind":    `{"kind": "robust", "mean": [1, 2], "scale": [1, 1]}`,
		"not json":    `{`,
	} {
		_, err := ParseScaler([]byte(body))
		assert.Error(t, err, name)
	}
}

func TestAssignNearestCentroid(t *testing.T) {
	m := &ClusterModel{Centroids: [][]float64{{0, 0}, {10, 10}, {-10, 10}}}
	assert.Equal(t, 0, m.Assign(1, 1))
	assert.Equal(t, 1, m.Assign(9, 8))
	assert.Equal(t, 2, m.Assign(-7, 12))
}

func TestAssignTiesGoToLowestIndex(t *testing.T) {
	m := &ClusterModel{Centroids: [][]float64{{1, 0}, {-1, 0}}}
	assert.Equal(t, 0, m.Assign(0, 0))

	dup := &ClusterModel{Centroids: [][]float64{{5, 5}, {0, 0}, {0, 0}}}
	assert.Equal(t, 1, dup.Assign(0.1, 0.1))
}

func TestAssignFarOutOfDistribution(t *testing.T) {
	m := &ClusterModel{Centroids: [][]float64{{0, 0}, {1, 1}}}
	assert.Equal(t, 1, m.Assign(1e9, 1e9))
	assert.Equal(t, 0, m.Assign(-1e9, -1e9))
}

func TestInteractionTerm(t *testing.T) {
	assert.Equal(t, -6.0, InteractionTerm(2, -3))
	assert.Equal(t, 0.0, InteractionTerm(0, 123))
}

func TestTransformer(t *testing.T) {
	tr, err := ParseTransformer([]byte(transformerJSON))
	require.NoError(t, err)

	f := tr.Transform(2.5, 36.5)
	assert.InDelta(t, 2.0, f.LatitudeScaled, 1e-12)
	assert.InDelta(t, 2.0, f.LongitudeScaled, 1e-12)
	assert.Equal(t, 1, f.Cluster)
	assert.InDelta(t, 4.0, f.Interaction, 1e-12)

	again := tr.Transform(2.5, 36.5)
	assert.Equal(t, f, again)
}

func TestParseTransformerValidates(t *testing.T) {
	_, err := ParseTransformer([]byte(`{"scaler": {"mean": [0, 0], "scale": [1, 1]}}`))
	assert.Error(t, err)

	_, err = ParseTransformer([]byte(`{"clusters": {"centroids": [[0, 0]]}}`))
	assert.Error(t, err)

	m := &ClusterModel{Centroids: [][]float64{{math.NaN(), 0}}}
	assert.Error(t, m.Validate())
}
