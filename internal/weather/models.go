package weather

import (
	"errors"
	"fmt"
	"time"
)

// NoTAF is the TAF value reported when the upstream returned none
const NoTAF = "No TAF available"

// ErrNoData is returned when the upstream has nothing for a station
var ErrNoData = errors.New("no weather data")

// Report is the raw weather bundle for one reporting station
type Report struct {
	METAR   string `json:"metar" msgpack:"metar"`
	TAF     string `json:"taf" msgpack:"taf"`
	Station string `json:"station" msgpack:"station"`
}

// HasWeather reports whether the bundle carries an observation
func (r *Report) HasWeather() bool {
	return r != nil && r.METAR != ""
}

// StationInfo is a single entry of the station-info endpoint
type StationInfo struct {
	ICAOID string  `json:"icaoId"`
	Site   string  `json:"site"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// RequestType labels upstream requests in logs
type RequestType string

const (
	RequestTypeReport      RequestType = "metar_taf"
	RequestTypeNOTAMs      RequestType = "notams"
	RequestTypeStationInfo RequestType = "station_info"
)

// Config represents the weather client configuration
type Config struct {
	APIBaseURL            string  `toml:"api_base_url"`
	NOTAMsBaseURL         string  `toml:"notams_base_url"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	MaxAttempts           int     `toml:"max_attempts"`
	BackoffInitialMS      int     `toml:"backoff_initial_ms"`
	FallbackRadiusNM      float64 `toml:"fallback_radius_nm"`
	FallbackLimit         int     `toml:"fallback_limit"`
}

// DefaultConfig returns the default weather configuration
func DefaultConfig() Config {
	return Config{
		APIBaseURL:            "https://aviationweather.gov/api/data",
		NOTAMsBaseURL:         "https://node.windy.com/airports/notams",
		RequestTimeoutSeconds: 10,
		MaxAttempts:           3,
		BackoffInitialMS:      1000,
		FallbackRadiusNM:      50,
		FallbackLimit:         10,
	}
}

// ValidateConfig validates the weather client configuration
func ValidateConfig(config Config) error {
	if config.APIBaseURL == "" {
		return fmt.Errorf("api_base_url cannot be empty")
	}

	if config.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be greater than 0")
	}

	if config.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}

	if config.BackoffInitialMS < 0 {
		return fmt.Errorf("backoff_initial_ms must be 0 or greater")
	}

	if config.FallbackRadiusNM <= 0 {
		return fmt.Errorf("fallback_radius_nm must be greater than 0")
	}

	if config.FallbackLimit <= 0 {
		return fmt.Errorf("fallback_limit must be greater than 0")
	}

	return nil
}

func (c Config) backoff(attempt int) time.Duration {
	return time.Duration(c.BackoffInitialMS*(1<<uint(attempt-1))) * time.Millisecond
}
