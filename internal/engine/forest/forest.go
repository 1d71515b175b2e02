// Package forest evaluates exported decision-tree ensembles (random forests and
// gradient-boosted trees) without any runtime dependency on the training stack.
package forest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/yungbote/connectivity-demand/internal/engine"
	"github.com/yungbote/connectivity-demand/internal/features"
)

const (
	AggregateMean = "mean"
	AggregateSum  = "sum"
)

// Tree uses the parallel-array node layout of the exporter: node i splits on
// Feature[i] at Threshold[i]; a negative feature or child marks a leaf whose
// prediction is Value[i].
type Tree struct {
	ChildrenLeft    []int     `json:"children_left"`
	ChildrenRight   []int     `json:"children_right"`
	Feature         []int     `json:"feature"`
	Threshold       []float64 `json:"threshold"`
	Value           []float64 `json:"value"`
	MissingGoToLeft []int     `json:"missing_go_to_left,omitempty"`
}

// Artifact is the on-disk ensemble.
type Artifact struct {
	FeatureNames []string `json:"feature_names"`
	Aggregation  string   `json:"aggregation"`
	BaseScore    float64  `json:"base_score"`
	LearningRate float64  `json:"learning_rate"`
	Trees        []Tree   `json:"trees"`
}

type Engine struct {
	name   string
	schema []string
	art    Artifact
}

// Parse decodes and validates an ensemble artifact for the given schema.
func Parse(name string, schema []string, data []byte) (*Engine, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("forest %s: decode: %w", name, err)
	}
	if err := engine.ValidateFeatureNames(art.FeatureNames, schema); err != nil {
		return nil, fmt.Errorf("forest %s: %w", name, err)
	}
	if art.Aggregation == "" {
		art.Aggregation = AggregateMean
	}
	if art.Aggregation != AggregateMean && art.Aggregation != AggregateSum {
		return nil, fmt.Errorf("forest %s: unsupported aggregation %q", name, art.Aggregation)
	}
	if art.Aggregation == AggregateSum && art.LearningRate == 0 {
		art.LearningRate = 1
	}
	if len(art.Trees) == 0 {
		return nil, fmt.Errorf("forest %s: no trees", name)
	}
	for i := range art.Trees {
		if err := art.Trees[i].validate(len(schema)); err != nil {
			return nil, fmt.Errorf("forest %s: tree %d: %w", name, i, err)
		}
	}
	return &Engine{name: name, schema: append([]string(nil), schema...), art: art}, nil
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	if len(t.MissingGoToLeft) != 0 && len(t.MissingGoToLeft) != n {
		return errors.New("missing_go_to_left length differs from node count")
	}
	for i := 0; i < n; i++ {
		if t.isLeaf(i) {
			continue
		}
		if t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, t.Feature[i], nFeatures)
		}
		// Children always follow their parent, which rules out cycles.
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
	}
	return nil
}

func (t *Tree) isLeaf(i int) bool {
	return t.Feature[i] < 0 || t.ChildrenLeft[i] < 0 || t.ChildrenRight[i] < 0
}

func (t *Tree) predict(x []*float64) (float64, error) {
	i := 0
	for !t.isLeaf(i) {
		f := t.Feature[i]
		v := x[f]
		if v == nil {
			if len(t.MissingGoToLeft) == 0 {
				return 0, fmt.Errorf("%w: split on feature %d has no missing-value branch", features.ErrNullFeature, f)
			}
			if t.MissingGoToLeft[i] != 0 {
				i = t.ChildrenLeft[i]
			} else {
				i = t.ChildrenRight[i]
			}
			continue
		}
		// Inputs are compared in single precision, as the trees were grown.
		if float64(float32(*v)) <= t.Threshold[i] {
			i = t.ChildrenLeft[i]
		} else {
			i = t.ChildrenRight[i]
		}
	}
	return t.Value[i], nil
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Schema() []string { return append([]string(nil), e.schema...) }

func (e *Engine) Trees() int { return len(e.art.Trees) }

func (e *Engine) Predict(ctx context.Context, v features.Vector) (float64, error) {
	if err := engine.CheckSchema(e, v); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x := v.Values()
	var sum float64
	for i := range e.art.Trees {
		p, err := e.art.Trees[i].predict(x)
		if err != nil {
			return 0, fmt.Errorf("forest %s: %w", e.name, err)
		}
		sum += p
	}

	var out float64
	switch e.art.Aggregation {
	case AggregateSum:
		out = e.art.BaseScore + e.art.LearningRate*sum
	default:
		out = sum / float64(len(e.art.Trees))
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("forest %s: non-finite prediction", e.name)
	}
	return out, nil
}
