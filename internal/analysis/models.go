package analysis

import (
	"context"

	"github.com/yegors/flightbrief/internal/weather"
)

// Flight categories
const (
	CategoryVFR     = "VFR"
	CategoryMVFR    = "MVFR"
	CategoryIFR     = "IFR"
	CategoryLIFR    = "LIFR"
	CategoryUnknown = "UNK"
)

// Crosswind statuses
const (
	CrosswindWithin  = "WITHIN LIMITS"
	CrosswindNear    = "NEAR LIMITS"
	CrosswindExceeds = "EXCEEDS PROFILE"
	CrosswindUnknown = "UNK"
)

// Request is everything the analysis needs about one briefing
type Request struct {
	Code             string // canonical code of the requested airport
	Name             string
	Timezone         string
	Weather          weather.Report
	NOTAMs           []string
	AircraftCategory string // SMALL, MEDIUM or LARGE
	ReportingStation string
	DistanceNM       float64 // reporting station to target
	AirspaceWarnings []string
	Runways          []RunwayHeading
}

// RunwayHeading is one runway end with its true and magnetic headings
type RunwayHeading struct {
	Ident    string  `json:"ident"`
	True     float64 `json:"true"`
	Magnetic float64 `json:"magnetic"`
}

// TimelineEntry is one forecast period
type TimelineEntry struct {
	TimeLabel string `json:"time_label" msgpack:"time_label"`
	Summary   string `json:"summary" msgpack:"summary"`
}

// Bubbles are the short values shown as badges
type Bubbles struct {
	Wind       string `json:"wind" msgpack:"wind"`
	XWind      string `json:"x_wind,omitempty" msgpack:"x_wind"`
	Runway     string `json:"rwy,omitempty" msgpack:"rwy"`
	Visibility string `json:"visibility" msgpack:"visibility"`
	Ceiling    string `json:"ceiling" msgpack:"ceiling"`
	Temp       string `json:"temp" msgpack:"temp"`
}

// Summary is the structured analysis returned to clients
type Summary struct {
	FlightCategory   string                   `json:"flight_category" msgpack:"flight_category"`
	CrosswindStatus  string                   `json:"crosswind_status" msgpack:"crosswind_status"`
	SummaryWeather   string                   `json:"summary_weather" msgpack:"summary_weather"`
	SummaryCrosswind string                   `json:"summary_crosswind" msgpack:"summary_crosswind"`
	SummaryAirspace  string                   `json:"summary_airspace" msgpack:"summary_airspace"`
	SummaryNOTAMs    string                   `json:"summary_notams" msgpack:"summary_notams"`
	Timeline         map[string]TimelineEntry `json:"timeline" msgpack:"timeline"`
	Bubbles          Bubbles                  `json:"bubbles" msgpack:"bubbles"`
	AirspaceWarnings []string                 `json:"airspace_warnings" msgpack:"airspace_warnings"`
	CriticalNOTAMs   []string                 `json:"critical_notams" msgpack:"critical_notams"`
}

// Usage describes what the provider spent on a completion
type Usage struct {
	Model  string
	Tokens int
}

// Result is the outcome of one analysis
type Result struct {
	Summary  Summary
	Usage    Usage
	Degraded bool
}

// Prompt is a rendered system/user message pair
type Prompt struct {
	System string
	User   string
}

// Completion is the raw text a provider returned
type Completion struct {
	Text   string
	Model  string
	Tokens int
}

// Provider sends a prompt to a language model and asks for a JSON object back
type Provider interface {
	Complete(ctx context.Context, prompt Prompt, model string) (*Completion, error)
}

// ModelSource supplies a runtime model override; "" keeps the provider default
type ModelSource interface {
	AnalysisModel(ctx context.Context) string
}
