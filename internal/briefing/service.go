package briefing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/flightbrief/internal/analysis"
	"github.com/yegors/flightbrief/internal/briefcache"
	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/internal/gazetteer"
	"github.com/yegors/flightbrief/internal/geo"
	"github.com/yegors/flightbrief/internal/stations"
	"github.com/yegors/flightbrief/internal/weather"
	"github.com/yegors/flightbrief/pkg/logger"
)

// Deps are the collaborators of a Service. Pause and Recorder may be nil.
type Deps struct {
	Gazetteer     *gazetteer.Gazetteer
	Cache         *briefcache.Cache[Result]
	Guard         Admitter
	Weather       WeatherSource
	Stations      StationFinder
	Analyzer      Analyzer
	Pause         PauseSource
	Recorder      AttemptRecorder
	Clock         clock.Clock
	FallbackLimit int
}

// Service orchestrates a briefing: resolve, cache, rate guard, fetch, fallback,
// analysis and the cache decision.
type Service struct {
	deps   Deps
	clock  clock.Clock
	logger *logger.Logger
}

// NewService creates a briefing service
func NewService(deps Deps, logger *logger.Logger) (*Service, error) {
	switch {
	case deps.Gazetteer == nil:
		return nil, fmt.Errorf("gazetteer is required")
	case deps.Cache == nil:
		return nil, fmt.Errorf("cache is required")
	case deps.Guard == nil:
		return nil, fmt.Errorf("rate guard is required")
	case deps.Weather == nil:
		return nil, fmt.Errorf("weather source is required")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("analyzer is required")
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	if deps.FallbackLimit <= 0 {
		deps.FallbackLimit = stations.DefaultLimit
	}

	return &Service{
		deps:   deps,
		clock:  clk,
		logger: logger.Named("briefing"),
	}, nil
}

// Brief produces a briefing for req. Every call records exactly one Attempt.
func (s *Service) Brief(ctx context.Context, req Request) (*Result, error) {
	start := s.clock.Now()
	a := &Attempt{
		Timestamp: start.UTC(),
		ClientID:  req.ClientID,
		IP:        req.IP,
		InputCode: strings.ToUpper(strings.TrimSpace(req.Code)),
		Aircraft:  req.Aircraft,
	}

	res, err := s.brief(ctx, req, a)
	if err != nil && a.Outcome == "" {
		a.Outcome = OutcomeError
	}
	if err != nil && a.ErrorMessage == "" {
		a.ErrorMessage = err.Error()
	}
	a.DurationSeconds = s.clock.Now().Sub(start).Seconds()

	logOutcome(s.logger, a)
	if s.deps.Recorder != nil {
		if rerr := s.deps.Recorder.Record(context.WithoutCancel(ctx), a); rerr != nil {
			s.logger.Error("Failed to record attempt", logger.Error(rerr))
		}
	}
	return res, err
}

func (s *Service) brief(ctx context.Context, req Request, a *Attempt) (*Result, error) {
	if s.deps.Pause != nil {
		if paused, msg := s.deps.Pause.Paused(ctx); paused {
			a.Outcome = OutcomePaused
			return nil, &PausedError{Message: msg}
		}
	}

	if a.InputCode == "" {
		return nil, ErrInvalidInput
	}

	resolution := s.deps.Gazetteer.Resolve(a.InputCode)
	if resolution.Ambiguous {
		s.logger.Warn("Ambiguous airport code, using local identifier",
			logger.String("input", resolution.Input),
			logger.String("resolved", resolution.Code))
	}
	code := resolution.Code
	a.ResolvedCode = code

	if cached, ok := s.deps.Cache.Get(ctx, code, req.Aircraft); ok {
		cached.IsCached = true
		a.Outcome = OutcomeCacheHit
		return &cached, nil
	}

	if d := s.deps.Guard.Admit(ctx, req.IP); !d.Allowed {
		a.Outcome = OutcomeRateLimited
		return nil, ErrRateLimited
	}

	airport := resolution.Airport
	var warnings []string
	if airport != nil {
		warnings = geo.CheckZones(code, airport.Lat, airport.Lon)
	}

	report, notams := s.fetch(ctx, code)

	distance := 0.0
	if !report.HasWeather() {
		var err error
		report, distance, err = s.fallback(ctx, code)
		if err != nil {
			return nil, err
		}
		if !report.HasWeather() {
			a.Outcome = OutcomeNoData
			return nil, ErrNoWeather
		}
	}

	areq := analysis.Request{
		Code:             code,
		Weather:          *report,
		NOTAMs:           notams,
		AircraftCategory: string(briefcache.CategoryOf(req.Aircraft)),
		ReportingStation: report.Station,
		DistanceNM:       distance,
		AirspaceWarnings: warnings,
		Timezone:         "UTC",
	}
	if airport != nil {
		areq.Name = airport.Name
		areq.Timezone = airport.Timezone
		areq.Runways = analysis.RunwayHeadings(airport.Runways, airport.Lat, airport.Lon, s.clock.Now())
	}

	result, err := s.deps.Analyzer.Analyze(ctx, areq)
	if err != nil {
		s.logger.Warn("Analysis failed, serving degraded briefing",
			logger.String("icao", code),
			logger.Error(err))
		result = analysis.Degraded(err)
		a.ErrorMessage = err.Error()
	}
	a.Model = result.Usage.Model
	a.Tokens = result.Usage.Tokens

	out := &Result{
		ICAO:        code,
		AirportName: code,
		AirportTZ:   areq.Timezone,
		Degraded:    result.Degraded,
		Analysis:    result.Summary,
		RawData: RawData{
			METAR:         report.METAR,
			TAF:           report.TAF,
			NOTAMs:        notams,
			WeatherSource: report.Station,
		},
	}
	if airport != nil && airport.Name != "" {
		out.AirportName = airport.Name
	}

	if !out.Degraded {
		s.store(ctx, code, req.Aircraft, out)
	}

	a.Outcome = OutcomeSuccess
	return out, nil
}

// fetch gets the report and notices concurrently. A failure of one never
// cancels the other; errors are treated as absent data.
func (s *Service) fetch(ctx context.Context, code string) (*weather.Report, []string) {
	var (
		g      errgroup.Group
		report *weather.Report
		notams []string
	)

	g.Go(func() error {
		r, err := s.deps.Weather.FetchReport(ctx, code)
		if err != nil {
			s.logFetchError("report", code, err)
			return nil
		}
		report = r
		return nil
	})
	g.Go(func() error {
		n, err := s.deps.Weather.FetchNOTAMs(ctx, code)
		if err != nil {
			s.logFetchError("notams", code, err)
			return nil
		}
		notams = n
		return nil
	})
	_ = g.Wait()

	if notams == nil {
		notams = []string{}
	}
	return report, notams
}

// fallback probes the ranked nearby stations in order and returns the first
// report with weather along with the station's distance from the target.
func (s *Service) fallback(ctx context.Context, code string) (*weather.Report, float64, error) {
	if s.deps.Stations == nil {
		return nil, 0, nil
	}

	candidates, err := s.deps.Stations.Nearest(ctx, code, s.deps.FallbackLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("fallback station search for %s: %w", code, err)
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		r, err := s.deps.Weather.FetchReport(ctx, c.ICAO)
		if err != nil {
			s.logFetchError("fallback report", c.ICAO, err)
			continue
		}
		if r.HasWeather() {
			if r.Station == "" {
				r.Station = c.ICAO
			}
			s.logger.Info("Using fallback reporting station",
				logger.String("icao", code),
				logger.String("station", c.ICAO),
				logger.Float64("distance_nm", c.DistanceNM))
			return r, c.DistanceNM, nil
		}
	}
	return nil, 0, nil
}

func (s *Service) store(ctx context.Context, code, aircraft string, out *Result) {
	ttl, ok := briefcache.DecideTTL(s.clock.Now(), out.RawData.METAR)
	if !ok {
		s.logger.Debug("Report not fresh enough to cache", logger.String("icao", code))
		return
	}
	// Put logs its own failures
	_ = s.deps.Cache.Put(ctx, code, aircraft, *out, ttl)
}

func (s *Service) logFetchError(what, code string, err error) {
	if errors.Is(err, weather.ErrNoData) {
		s.logger.Debug("Upstream has no data",
			logger.String("type", what),
			logger.String("icao", code))
		return
	}
	s.logger.Warn("Upstream fetch failed",
		logger.String("type", what),
		logger.String("icao", code),
		logger.Error(err))
}
