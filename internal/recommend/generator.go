package recommend

import (
	"strconv"
	"strings"
)

// Context is the request information rules may refer to.
type Context struct {
	Service           string
	FacilityType      string
	FacilityOwner     string
	Country           string
	CountryCode       string
	MissingIndicators []string
}

func (c Context) field(name string) string {
	switch name {
	case "service":
		return c.Service
	case "facility_type":
		return c.FacilityType
	case "facility_owner":
		return c.FacilityOwner
	case "country":
		return c.Country
	case "country_code":
		return c.CountryCode
	case "missing_indicators":
		return strings.Join(c.MissingIndicators, ",")
	default:
		return ""
	}
}

type Generator struct {
	rules Rules
}

func NewGenerator(r *Rules) *Generator {
	if r == nil {
		r = DefaultRules()
	}
	return &Generator{rules: *r}
}

// Recommend returns the first matching band's messages followed by every
// matching context rule, with placeholders filled in. Duplicates are dropped.
func (g *Generator) Recommend(ctx Context, score float64) []string {
	country := ctx.Country
	if country == "" {
		country = ctx.CountryCode
	}
	if country == "" {
		country = "this country"
	}
	rep := strings.NewReplacer(
		"{facility_type}", fallback(ctx.FacilityType, "facility"),
		"{facility_owner}", fallback(ctx.FacilityOwner, "facility"),
		"{country}", country,
		"{score}", strconv.FormatFloat(score, 'f', 1, 64),
	)

	var out []string
	seen := map[string]bool{}
	add := func(msg string) {
		msg = rep.Replace(msg)
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}

	for _, b := range g.rules.Bands {
		if b.Contains(score) {
			for _, m := range b.Messages {
				add(m)
			}
			break
		}
	}
	for _, r := range g.rules.Context {
		if r.matches(ctx) {
			add(r.Message)
		}
	}
	return out
}

// Band returns the name of the band score falls in, or "".
func (g *Generator) Band(score float64) string {
	for _, b := range g.rules.Bands {
		if b.Contains(score) {
			return b.Name
		}
	}
	return ""
}

func (r Rule) matches(ctx Context) bool {
	v := ctx.field(r.Field)
	switch r.Op {
	case "eq":
		return v == r.Value
	case "ne":
		return v != r.Value
	case "in":
		for _, x := range r.Values {
			if v == x {
				return true
			}
		}
		return false
	case "contains":
		return r.Value != "" && strings.Contains(v, r.Value)
	case "present":
		return v != ""
	case "absent":
		return v == ""
	default:
		return false
	}
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
