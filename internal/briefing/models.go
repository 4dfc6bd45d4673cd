package briefing

import (
	"context"
	"errors"

	"github.com/yegors/flightbrief/internal/analysis"
	"github.com/yegors/flightbrief/internal/ratelimit"
	"github.com/yegors/flightbrief/internal/stations"
	"github.com/yegors/flightbrief/internal/weather"
)

var (
	ErrInvalidInput = errors.New("airport code is required")
	ErrPaused       = errors.New("briefings are paused")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrNoWeather    = errors.New("no airport or weather data found")
)

// PausedError carries the operator notice shown while briefings are paused
type PausedError struct {
	Message string
}

func (e *PausedError) Error() string {
	return ErrPaused.Error() + ": " + e.Message
}

func (e *PausedError) Is(target error) bool {
	return target == ErrPaused
}

// Request is one briefing request
type Request struct {
	Code     string // airport code as typed
	Aircraft string // free-text aircraft description
	ClientID string
	IP       string // rate identity
}

// RawData is the unprocessed input the analysis was based on
type RawData struct {
	METAR         string   `json:"metar"`
	TAF           string   `json:"taf"`
	NOTAMs        []string `json:"notams"`
	WeatherSource string   `json:"weather_source"`
}

// Result is the briefing returned to clients and stored in the cache
type Result struct {
	ICAO        string           `json:"icao"`
	AirportName string           `json:"airport_name"`
	AirportTZ   string           `json:"airport_tz"`
	IsCached    bool             `json:"is_cached"`
	Degraded    bool             `json:"degraded,omitempty"`
	Analysis    analysis.Summary `json:"analysis"`
	RawData     RawData          `json:"raw_data"`
}

// WeatherSource fetches reports and notices from upstream
type WeatherSource interface {
	FetchReport(ctx context.Context, code string) (*weather.Report, error)
	FetchNOTAMs(ctx context.Context, code string) ([]string, error)
}

// StationFinder lists fallback reporting stations around an airport
type StationFinder interface {
	Nearest(ctx context.Context, code string, limit int) ([]stations.Candidate, error)
}

// Analyzer turns an assembled briefing into a summary
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// Admitter decides whether an identity may run an uncached briefing
type Admitter interface {
	Admit(ctx context.Context, identity string) ratelimit.Decision
}

// PauseSource reports the global pause switch
type PauseSource interface {
	Paused(ctx context.Context) (bool, string)
}
