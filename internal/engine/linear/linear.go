// Package linear evaluates a fitted linear regression: intercept + coef·x.
package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/yungbote/connectivity-demand/internal/engine"
	"github.com/yungbote/connectivity-demand/internal/features"
)

type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Coef         []float64 `json:"coef"`
	Intercept    float64   `json:"intercept"`
}

type Engine struct {
	name   string
	schema []string
	art    Artifact
}

func Parse(name string, schema []string, data []byte) (*Engine, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("linear %s: decode: %w", name, err)
	}
	if err := engine.ValidateFeatureNames(art.FeatureNames, schema); err != nil {
		return nil, fmt.Errorf("linear %s: %w", name, err)
	}
	if len(art.Coef) != len(schema) {
		return nil, fmt.Errorf("linear %s: %d coefficients for %d features", name, len(art.Coef), len(schema))
	}
	return &Engine{name: name, schema: append([]string(nil), schema...), art: art}, nil
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Schema() []string { return append([]string(nil), e.schema...) }

// Predict rejects vectors with null values; a linear model has no missing-value path.
func (e *Engine) Predict(ctx context.Context, v features.Vector) (float64, error) {
	if err := engine.CheckSchema(e, v); err != nil {
		return 0, err
	}
	x, err := v.Dense()
	if err != nil {
		return 0, fmt.Errorf("linear %s: %w", e.name, err)
	}
	out := e.art.Intercept
	for i, c := range e.art.Coef {
		out += c * x[i]
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("linear %s: non-finite prediction", e.name)
	}
	return out, nil
}
