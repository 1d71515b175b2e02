// Package mock is a deterministic stand-in engine for local runs and tests.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/yungbote/connectivity-demand/internal/engine"
	"github.com/yungbote/connectivity-demand/internal/features"
)

type Engine struct {
	name   string
	schema []string
}

func New(name string, schema []string) *Engine {
	return &Engine{name: name, schema: append([]string(nil), schema...)}
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Schema() []string { return append([]string(nil), e.schema...) }

// Predict hashes the vector into a score in [0, 100).
func (e *Engine) Predict(ctx context.Context, v features.Vector) (float64, error) {
	if err := engine.CheckSchema(e, v); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h := sha256.New()
	h.Write([]byte(e.name))
	var buf [9]byte
	for _, p := range v.Values() {
		if p == nil {
			buf[0] = 0
			binary.LittleEndian.PutUint64(buf[1:], 0)
		} else {
			buf[0] = 1
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(*p))
		}
		h.Write(buf[:])
	}
	sum := h.Sum(nil)
	u := binary.LittleEndian.Uint64(sum[:8])
	return float64(u%10_000) / 100.0, nil
}
