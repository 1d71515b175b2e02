// Package remote scores vectors on an external model server speaking the
// {"instances": [...]} / {"predictions": [...]} JSON protocol.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/engine"
	"github.com/yungbote/connectivity-demand/internal/features"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/retry"
)

type Engine struct {
	name    string
	schema  []string
	baseURL string
	path    string
	apiKey  string
	timeout time.Duration
	retry   retry.Policy

	httpClient *http.Client
}

func New(name string, schema []string, cfg config.EngineConfig, policy retry.Policy) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote: base_url required")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/v1/models/" + name + ":predict"
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Engine{
		name:       name,
		schema:     append([]string(nil), schema...),
		baseURL:    baseURL,
		path:       path,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		retry:      policy,
		httpClient: &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(name string, schema []string, cfg config.EngineConfig, policy retry.Policy, httpClient *http.Client) (*Engine, error) {
	e, err := New(name, schema, cfg, policy)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Schema() []string { return append([]string(nil), e.schema...) }

type predictRequest struct {
	Instances [][]*float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

func (e *Engine) Predict(ctx context.Context, v features.Vector) (float64, error) {
	if err := engine.CheckSchema(e, v); err != nil {
		return 0, err
	}

	ctx, span := otel.Tracer("connectivity/engine/remote").Start(ctx, "remote.predict")
	defer span.End()
	span.SetAttributes(attribute.String("model.name", e.name), attribute.Int("model.features", v.Len()))

	body := predictRequest{Instances: [][]*float64{v.Values()}}
	var resp predictResponse
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		err := e.doJSON(ctx, body, &resp)
		var he *HTTPError
		if errors.As(err, &he) && !retry.TransientStatus(he.StatusCode) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "predict failed")
		return 0, fmt.Errorf("remote %s: %w", e.name, err)
	}

	score, err := firstScalar(resp.Predictions)
	if err != nil {
		return 0, fmt.Errorf("remote %s: %w", e.name, err)
	}
	return score, nil
}

// firstScalar accepts both [x] and [[x]] prediction shapes.
func firstScalar(preds []json.RawMessage) (float64, error) {
	if len(preds) == 0 {
		return 0, errors.New("response has no predictions")
	}
	var x float64
	if err := json.Unmarshal(preds[0], &x); err != nil {
		var nested []float64
		if err2 := json.Unmarshal(preds[0], &nested); err2 != nil || len(nested) == 0 {
			return 0, fmt.Errorf("prediction is not a number: %s", string(preds[0]))
		}
		x = nested[0]
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, errors.New("non-finite prediction")
	}
	return x, nil
}

func (e *Engine) doJSON(ctx context.Context, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return retry.Permanent(err)
	}

	ctx2, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, e.baseURL+e.path, &buf)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	callStart := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveProvider("model_server", 0, time.Since(callStart))
		return err
	}
	defer resp.Body.Close()
	observability.Current().ObserveProvider("model_server", resp.StatusCode, time.Since(callStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
