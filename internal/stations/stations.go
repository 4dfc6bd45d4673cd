package stations

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/yegors/flightbrief/internal/gazetteer"
	"github.com/yegors/flightbrief/internal/geo"
	"github.com/yegors/flightbrief/pkg/logger"
)

const (
	DefaultRadiusNM = 50.0
	DefaultLimit    = 10
)

// Candidate is a nearby station that may report weather
type Candidate struct {
	ICAO       string  `json:"icao"`
	DistanceNM float64 `json:"distance_nm"`
	Primary    bool    `json:"primary"`
}

// Target is the point a search is centered on. Codes in Exclude are never returned.
type Target struct {
	Lat     float64
	Lon     float64
	Exclude []string
}

// Source iterates over candidate airports
type Source interface {
	All(fn func(*gazetteer.Airport) bool)
}

// Rank returns airports strictly within radiusNM of the target. Large and medium
// airports and plain 4-letter codes rank first, each group ordered by distance.
func Rank(target Target, src Source, radiusNM float64, limit int) []Candidate {
	if limit <= 0 {
		return nil
	}

	excluded := make(map[string]struct{}, len(target.Exclude))
	for _, code := range target.Exclude {
		excluded[strings.ToUpper(code)] = struct{}{}
	}

	var primary, secondary []Candidate
	src.All(func(a *gazetteer.Airport) bool {
		if _, skip := excluded[a.ICAO]; skip {
			return true
		}
		d := geo.DistanceNM(target.Lat, target.Lon, a.Lat, a.Lon)
		if d >= radiusNM {
			return true
		}
		if a.Type.IsMajor() || isStandardICAO(a.ICAO) {
			primary = append(primary, Candidate{ICAO: a.ICAO, DistanceNM: d, Primary: true})
		} else {
			secondary = append(secondary, Candidate{ICAO: a.ICAO, DistanceNM: d})
		}
		return true
	})

	byDistance := func(a, b Candidate) int { return cmp.Compare(a.DistanceNM, b.DistanceNM) }
	slices.SortStableFunc(primary, byDistance)
	slices.SortStableFunc(secondary, byDistance)

	ranked := append(primary, secondary...)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func isStandardICAO(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Locator resolves coordinates for codes the gazetteer does not know
type Locator interface {
	LookupStation(ctx context.Context, code string) (lat, lon float64, err error)
}

// Finder searches for the nearest reporting stations around an airport
type Finder struct {
	gaz      *gazetteer.Gazetteer
	locator  Locator
	radiusNM float64
	logger   *logger.Logger
}

// NewFinder creates a finder. locator may be nil.
func NewFinder(gaz *gazetteer.Gazetteer, locator Locator, radiusNM float64, logger *logger.Logger) *Finder {
	if radiusNM <= 0 {
		radiusNM = DefaultRadiusNM
	}
	return &Finder{
		gaz:      gaz,
		locator:  locator,
		radiusNM: radiusNM,
		logger:   logger.Named("stations"),
	}
}

// Nearest returns ranked candidates around code. The target coordinates come from
// the gazetteer, or from the locator when the gazetteer has no record. An unknown
// target yields an empty list.
func (f *Finder) Nearest(ctx context.Context, code string, limit int) ([]Candidate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	target := Target{Exclude: []string{code}}

	if a, ok := f.gaz.Lookup(code); ok {
		target.Lat, target.Lon = a.Lat, a.Lon
		if a.ICAO != "" {
			target.Exclude = append(target.Exclude, a.ICAO)
		}
	} else if f.locator != nil {
		lat, lon, err := f.locator.LookupStation(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("station lookup for %s: %w", code, ctx.Err())
			}
			f.logger.Debug("No coordinates for fallback target",
				logger.String("airport", code),
				logger.Error(err))
			return nil, nil
		}
		target.Lat, target.Lon = lat, lon
	} else {
		return nil, nil
	}

	candidates := Rank(target, f.gaz, f.radiusNM, limit)
	f.logger.Debug("Ranked fallback stations",
		logger.String("airport", code),
		logger.Int("candidates", len(candidates)))
	return candidates, nil
}
