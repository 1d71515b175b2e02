package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/features"
	"github.com/yungbote/connectivity-demand/internal/platform/retry"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

var fast = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func f(x float64) *float64 { return &x }

func newEngine(t *testing.T, rt roundTripperFunc) *Engine {
	t.Helper()
	e, err := NewWithHTTPClient("education", []string{"a", "b"}, config.EngineConfig{
		Type:    "remote",
		BaseURL: "http://models",
		APIKey:  "secret",
		Timeout: config.Duration{Duration: 2 * time.Second},
	}, fast, &http.Client{Transport: rt})
	require.NoError(t, err)
	return e
}

func TestPredictSendsInstances(t *testing.T) {
	e := newEngine(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/models/education:predict", req.URL.Path)
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))

		var in map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		assert.Equal(t, []any{[]any{1.5, nil}}, in["instances"])
		return jsonResponse(http.StatusOK, `{"predictions": [42.5]}`), nil
	})

	v, err := features.New([]string{"a", "b"}, []*float64{f(1.5), nil})
	require.NoError(t, err)
	got, err := e.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 42.5, got)
}

func TestPredictNestedShape(t *testing.T) {
	e := newEngine(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"predictions": [[7]]}`), nil
	})
	v, _ := features.New([]string{"a", "b"}, []*float64{f(1), f(2)})
	got, err := e.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
}

func TestPredictRetriesTransient(t *testing.T) {
	var calls int32
	e := newEngine(t, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return jsonResponse(http.StatusServiceUnavailable, `overloaded`), nil
		}
		return jsonResponse(http.StatusOK, `{"predictions": [3]}`), nil
	})
	v, _ := features.New([]string{"a", "b"}, []*float64{f(1), f(2)})
	got, err := e.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPredictDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	e := newEngine(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusBadRequest, `{"error": "bad instances"}`), nil
	})
	v, _ := features.New([]string{"a", "b"}, []*float64{f(1), f(2)})
	_, err := e.Predict(context.Background(), v)

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredictEmptyPredictions(t *testing.T) {
	e := newEngine(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"predictions": []}`), nil
	})
	v, _ := features.New([]string{"a", "b"}, []*float64{f(1), f(2)})
	_, err := e.Predict(context.Background(), v)
	assert.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("education", nil, config.EngineConfig{Type: "remote"}, fast)
	assert.Error(t, err)
}
