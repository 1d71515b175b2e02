// Package engine defines the contract every regression model backend satisfies.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/connectivity-demand/internal/features"
)

var ErrSchemaMismatch = errors.New("feature schema mismatch")

// Engine scores one feature vector. Schema is the exact, ordered list of
// field names the engine was built for.
type Engine interface {
	Name() string
	Schema() []string
	Predict(ctx context.Context, v features.Vector) (float64, error)
}

// CheckSchema fails unless v carries exactly the engine's fields in order.
func CheckSchema(e Engine, v features.Vector) error {
	if !features.SameSchema(e.Schema(), v.Names()) {
		return fmt.Errorf("%w: %s expects %v, got %v", ErrSchemaMismatch, e.Name(), e.Schema(), v.Names())
	}
	return nil
}

// ValidateFeatureNames checks the names recorded in an artifact against the
// expected schema. An artifact without names is accepted as-is.
func ValidateFeatureNames(artifact, expected []string) error {
	if len(artifact) == 0 {
		return nil
	}
	if !features.SameSchema(artifact, expected) {
		return fmt.Errorf("%w: artifact was trained on %v, service sends %v", ErrSchemaMismatch, artifact, expected)
	}
	return nil
}
