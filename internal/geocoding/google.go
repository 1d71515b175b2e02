// Package geocoding resolves coordinates to a country with the Google Maps Geocoding API.
package geocoding

import (
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
	"golang.org/x/time/rate"

	"github.com/yungbote/connectivity-demand/internal/config"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/platform/retry"
)

var (
	// ErrNoCountry means the provider answered but no result carries a country component.
	ErrNoCountry = errors.New("no country found for coordinates")
	ErrStatus    = errors.New("geocoding provider error")
)

// Country is the country a coordinate falls in.
type Country struct {
	Code string // ISO 3166-1 alpha-2, upper case
	Name string
}

// Client wraps the Google Maps reverse geocoding endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	limiter    *rate.Limiter
	retry      retry.Policy
	log        *logger.Logger
	httpClient *http.Client
}

func NewClient(cfg config.GeocodingConfig, policy retry.Policy, log *logger.Logger) *Client {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, burst),
		retry:      policy,
		log:        log.With("client", "GoogleGeocoding"),
		httpClient: &http.Client{},
	}
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.GeocodingConfig, policy retry.Policy, log *logger.Logger, httpClient *http.Client) *Client {
	c := NewClient(cfg, policy, log)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// ReverseCountry looks up the country of (lat, lon) from the first result's
// component typed "country".
func (c *Client) ReverseCountry(ctx context.Context, lat, lon float64) (Country, error) {
	ctx, span := otel.Tracer("connectivity/geocoding").Start(ctx, "geocoding.reverse_country")
	defer span.End()
	span.SetAttributes(attribute.Float64("geo.lat", lat), attribute.Float64("geo.lon", lon))

	start := time.Now()
	var resp geocodeResponse
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return c.fetch(ctx, lat, lon, &resp)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverse geocode failed")
		c.log.Warn("Reverse geocode failed", "lat", lat, "lon", lon, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return Country{}, err
	}

	country, err := countryFromResponse(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no country")
		c.log.Warn("Reverse geocode found no country", "lat", lat, "lon", lon, "status", resp.Status)
		return Country{}, err
	}
	span.SetAttributes(attribute.String("geo.country", country.Code))
	c.log.Debug("Reverse geocode resolved", "lat", lat, "lon", lon, "country", country.Code, "duration_ms", time.Since(start).Milliseconds())
	return country, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, out *geocodeResponse) error {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lon, 'f', -1, 64))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	callStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveProvider("geocoding", 0, time.Since(callStart))
		return fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()
	observability.Current().ObserveProvider("geocoding", resp.StatusCode, time.Since(callStart))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("%w: HTTP %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
		if retry.TransientStatus(resp.StatusCode) {
			return err
		}
		return retry.Permanent(err)
	}

	*out = geocodeResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("%w: decoding response: %v", ErrStatus, err))
	}

	switch out.Status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return fmt.Errorf("%w: status=%s", ErrStatus, out.Status)
	default:
		msg := out.Status
		if out.ErrorMessage != "" {
			msg += " (" + out.ErrorMessage + ")"
		}
		return retry.Permanent(fmt.Errorf("%w: status=%s", ErrStatus, msg))
	}
}

func countryFromResponse(resp geocodeResponse) (Country, error) {
	if len(resp.Results) == 0 {
		return Country{}, fmt.Errorf("%w: provider returned no results", ErrNoCountry)
	}
	for _, comp := range resp.Results[0].AddressComponents {
		for _, t := range comp.Types {
			if t == "country" {
				code := strings.ToUpper(strings.TrimSpace(comp.ShortName))
				if code == "" {
					continue
				}
				return Country{Code: code, Name: comp.LongName}, nil
			}
		}
	}
	return Country{}, fmt.Errorf("%w: first result has no country component", ErrNoCountry)
}
