// Package indicator resolves the socioeconomic indicators of the country a
// coordinate falls in.
package indicator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/connectivity-demand/internal/geocoding"
	"github.com/yungbote/connectivity-demand/internal/observability"
	"github.com/yungbote/connectivity-demand/internal/platform/logger"
	"github.com/yungbote/connectivity-demand/internal/worldbank"
)

var (
	ErrGeocode    = errors.New("geocode failure")
	ErrResolution = errors.New("indicator resolution failure")
	// ErrMissing is returned under the reject policy when any indicator has no value.
	ErrMissing = errors.New("indicator has no observations")
)

type Policy string

const (
	// PolicyPass forwards absent values as nulls.
	PolicyPass Policy = "pass"
	// PolicyReject fails the request when any value is absent.
	PolicyReject Policy = "reject"
	// PolicyImpute replaces absent values with configured defaults.
	PolicyImpute Policy = "impute"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyPass, nil
	case PolicyPass, PolicyReject, PolicyImpute:
		return p, nil
	default:
		return "", fmt.Errorf("invalid missing-indicator policy %q", s)
	}
}

type Geocoder interface {
	ReverseCountry(ctx context.Context, lat, lon float64) (geocoding.Country, error)
}

type SeriesSource interface {
	Series(ctx context.Context, country, indicatorCode string) ([]worldbank.Observation, error)
}

// Set is the resolved indicator row for one country, in catalog order.
type Set struct {
	Country geocoding.Country
	Values  []*float64
	// Imputed names the indicators whose value came from the impute table.
	Imputed []string
}

// Missing lists indicators without a value.
func (s *Set) Missing() []string {
	var out []string
	for i, v := range s.Values {
		if v == nil {
			out = append(out, Catalog[i].Name)
		}
	}
	return out
}

type Options struct {
	Policy Policy
	Impute map[string]float64
	// Cache is optional.
	Cache Cache
	// FetchTimeout bounds one shared fetch of all indicators for a country.
	FetchTimeout time.Duration
}

const defaultFetchTimeout = 30 * time.Second

type Resolver struct {
	geo    Geocoder
	series SeriesSource
	opts   Options
	log    *logger.Logger
	group  singleflight.Group
}

func NewResolver(geo Geocoder, series SeriesSource, opts Options, log *logger.Logger) *Resolver {
	if opts.Policy == "" {
		opts.Policy = PolicyPass
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &Resolver{
		geo:    geo,
		series: series,
		opts:   opts,
		log:    log.With("service", "IndicatorResolver"),
	}
}

// Resolve finds the country of (lat, lon) and then every catalog indicator for it.
// Any provider failure fails the whole resolution; an indicator with no usable
// observation is nil unless the policy says otherwise.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (*Set, error) {
	country, err := r.geo.ReverseCountry(ctx, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeocode, err)
	}

	values, err := r.lookup(ctx, country.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, country.Code, err)
	}

	set := &Set{Country: country, Values: values}
	return r.applyPolicy(set)
}

// lookup consults the cache, then fetches with one in-flight request per country.
func (r *Resolver) lookup(ctx context.Context, country string) ([]*float64, error) {
	if r.opts.Cache != nil {
		vals, ok, err := r.opts.Cache.Get(ctx, country)
		switch {
		case err != nil:
			observability.Current().IncIndicatorCache("error")
			r.log.Warn("Indicator cache read failed", "country", country, "error", err)
		case ok:
			observability.Current().IncIndicatorCache("hit")
			r.log.Debug("Indicator cache hit", "country", country)
			return vals, nil
		default:
			observability.Current().IncIndicatorCache("miss")
		}
	}

	// The shared fetch is detached from every caller; each caller waits on its own ctx.
	ch := r.group.DoChan(country, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FetchTimeout)
		defer cancel()
		vals, err := r.fetchAll(fctx, country)
		if err != nil {
			return nil, err
		}
		if r.opts.Cache != nil {
			if err := r.opts.Cache.Set(fctx, country, vals); err != nil {
				r.log.Warn("Indicator cache write failed", "country", country, "error", err)
			}
		}
		return vals, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		r.log.Debug("Indicator lookup shared with concurrent request", "country", country)
	}
	// Callers get their own slice header; the pointed-to values are never mutated.
	return append([]*float64(nil), res.Val.([]*float64)...), nil
}

func (r *Resolver) fetchAll(ctx context.Context, country string) ([]*float64, error) {
	start := time.Now()
	out := make([]*float64, len(Catalog))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range Catalog {
		g.Go(func() error {
			obs, err := r.series.Series(gctx, country, d.Code)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", d.Name, d.Code, err)
			}
			out[i] = worldbank.Latest(obs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Debug("Indicators resolved", "country", country, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (r *Resolver) applyPolicy(set *Set) (*Set, error) {
	missing := set.Missing()
	if len(missing) == 0 {
		return set, nil
	}
	switch r.opts.Policy {
	case PolicyReject:
		return nil, fmt.Errorf("%w: %w for %s: %s", ErrResolution, ErrMissing, set.Country.Code, strings.Join(missing, ", "))
	case PolicyImpute:
		values := append([]*float64(nil), set.Values...)
		for i, v := range values {
			if v != nil {
				continue
			}
			name := Catalog[i].Name
			def, ok := r.opts.Impute[name]
			if !ok {
				continue
			}
			d := def
			values[i] = &d
			set.Imputed = append(set.Imputed, name)
		}
		set.Values = values
		if still := set.Missing(); len(still) > 0 {
			r.log.Warn("Indicators missing with no impute default", "country", set.Country.Code, "indicators", still)
		}
		return set, nil
	default:
		r.log.Debug("Passing missing indicators through as null", "country", set.Country.Code, "indicators", missing)
		return set, nil
	}
}
