// Package worldbank reads indicator time series from the World Bank v2 API.
package worldbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/platform/retry"
)

var ErrStatus = errors.New("world bank provider error")

// Observation is one dated value. Value is nil when the provider reports null.
type Observation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type Client struct {
	baseURL    string
	perPage    int
	timeout    time.Duration
	retry      retry.Policy
	log        *logger.Logger
	httpClient *http.Client
}

func NewClient(cfg config.WorldBankConfig, policy retry.Policy, log *logger.Logger) *Client {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		perPage:    perPage,
		timeout:    timeout,
		retry:      policy,
		log:        log.With("client", "WorldBank"),
		httpClient: &http.Client{},
	}
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.WorldBankConfig, policy retry.Policy, log *logger.Logger, httpClient *http.Client) *Client {
	c := NewClient(cfg, policy, log)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// Series returns the observations for one indicator and country. A provider
// error message (a single-element payload) or an empty page yields no
// observations rather than an error.
func (c *Client) Series(ctx context.Context, country, indicatorCode string) ([]Observation, error) {
	ctx, span := otel.Tracer("connectivity/worldbank").Start(ctx, "worldbank.series")
	defer span.End()
	span.SetAttributes(attribute.String("wb.country", country), attribute.String("wb.indicator", indicatorCode))

	start := time.Now()
	var obs []Observation
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		obs, err = c.fetch(ctx, country, indicatorCode)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "series fetch failed")
		c.log.Warn("Indicator fetch failed", "country", country, "indicator", indicatorCode, "error", err)
		return nil, err
	}
	c.log.Debug("Indicator fetched",
		"country", country,
		"indicator", indicatorCode,
		"observations", len(obs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return obs, nil
}

func (c *Client) fetch(ctx context.Context, country, indicatorCode string) ([]Observation, error) {
	u := fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		c.baseURL,
		url.PathEscape(country),
		url.PathEscape(indicatorCode),
		url.Values{"format": {"json"}, "per_page": {strconv.Itoa(c.perPage)}}.Encode(),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	callStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveProvider("worldbank", 0, time.Since(callStart))
		return nil, fmt.Errorf("world bank request: %w", err)
	}
	defer resp.Body.Close()
	observability.Current().ObserveProvider("worldbank", resp.StatusCode, time.Since(callStart))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: HTTP %d: %s", ErrStatus, resp.StatusCode, truncate(body, 256))
		if retry.TransientStatus(resp.StatusCode) {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}
	obs, err := decodeSeries(body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return obs, nil
}

// decodeSeries handles the [meta, [observations...]] envelope.
func decodeSeries(body []byte) ([]Observation, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrStatus, err)
	}
	if len(envelope) < 2 {
		return nil, nil
	}
	data := bytes.TrimSpace(envelope[1])
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var obs []Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("%w: decoding observations: %v", ErrStatus, err)
	}
	return obs, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
