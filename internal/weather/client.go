package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/flightbrief/pkg/logger"
)

// Client handles HTTP requests to the weather and NOTAM APIs
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new weather API client
func NewClient(config Config, logger *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: logger.Named("weather-client"),
	}
}

// FetchReport fetches the raw METAR and TAF for a station. An empty upstream
// body yields ErrNoData.
func (c *Client) FetchReport(ctx context.Context, code string) (*Report, error) {
	if code == "" {
		return nil, ErrNoData
	}

	u := fmt.Sprintf("%s/metar?ids=%s&format=raw&taf=true", c.config.APIBaseURL, url.QueryEscape(code))
	body, err := c.fetchWithRetry(ctx, u, RequestTypeReport, code)
	if err != nil {
		return nil, err
	}

	report := ParseRawReport(string(body), code)
	if !report.HasWeather() {
		return nil, ErrNoData
	}
	return report, nil
}

// ParseRawReport splits a raw METAR+TAF response. The METAR is the first line
// containing "METAR" or the station code without "TAF"; the TAF is the last line
// containing "TAF".
func ParseRawReport(raw, code string) *Report {
	report := &Report{Station: code, TAF: NoTAF}

	text := strings.TrimSpace(raw)
	if text == "" {
		report.TAF = ""
		return report
	}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		isTAF := strings.Contains(line, "TAF")
		if report.METAR == "" && (strings.Contains(line, "METAR") || (strings.Contains(line, code) && !isTAF)) {
			report.METAR = line
		}
		if isTAF {
			report.TAF = line
		}
	}

	if report.METAR == "" {
		report.METAR = strings.TrimSpace(lines[0])
	}
	return report
}

// FetchNOTAMs fetches NOTAMs for the station, flattened to one string per notice
func (c *Client) FetchNOTAMs(ctx context.Context, code string) ([]string, error) {
	if c.config.NOTAMsBaseURL == "" || code == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/%s", c.config.NOTAMsBaseURL, url.PathEscape(code))
	body, err := c.fetchWithRetry(ctx, u, RequestTypeNOTAMs, code)
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("error decoding NOTAM data: %w", err)
	}
	return FlattenNOTAMs(data), nil
}

// FlattenNOTAMs turns an arbitrary decoded NOTAM payload into a list of strings.
// Objects contribute their text-like fields; other values are formatted as JSON.
func FlattenNOTAMs(data any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			for _, key := range []string{"raw", "text", "notam", "message", "body"} {
				if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
					return
				}
			}
			for _, key := range []string{"notams", "items", "data", "results"} {
				if nested, ok := t[key]; ok {
					walk(nested)
					return
				}
			}
			if b, err := json.Marshal(t); err == nil {
				out = append(out, string(b))
			}
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	walk(data)
	return out
}

// LookupStation resolves station coordinates through the station-info endpoint
func (c *Client) LookupStation(ctx context.Context, code string) (lat, lon float64, err error) {
	u := fmt.Sprintf("%s/stationinfo?ids=%s&format=json", c.config.APIBaseURL, url.QueryEscape(code))
	body, err := c.fetchWithRetry(ctx, u, RequestTypeStationInfo, code)
	if err != nil {
		return 0, 0, err
	}

	var result []StationInfo
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, 0, fmt.Errorf("error decoding station info: %w", err)
	}
	if len(result) == 0 {
		return 0, 0, ErrNoData
	}
	return result[0].Lat, result[0].Lon, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// fetchWithRetry performs an HTTP GET with retry logic and exponential backoff.
// Client errors other than 429 are not retried.
func (c *Client) fetchWithRetry(ctx context.Context, u string, reqType RequestType, code string) ([]byte, error) {
	var lastErr error
	maxAttempts := c.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoffDuration := c.config.backoff(attempt)
			c.logger.Info("Retrying weather data fetch",
				logger.String("type", string(reqType)),
				logger.String("airport", code),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoffDuration.String()))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		body, err := c.get(ctx, u)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched weather data after retries",
					logger.String("type", string(reqType)),
					logger.String("airport", code),
					logger.Int("attempts_needed", attempt+1))
			}
			return body, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			c.logger.Debug("Weather API returned non-retryable status",
				logger.String("type", string(reqType)),
				logger.String("airport", code),
				logger.Int("status_code", se.code))
			return nil, err
		}

		c.logger.Warn("Weather API request failed, may retry",
			logger.String("type", string(reqType)),
			logger.String("airport", code),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", maxAttempts))
	}

	c.logger.Error("All attempts to fetch weather data failed",
		logger.String("type", string(reqType)),
		logger.String("airport", code),
		logger.Error(lastErr),
		logger.Int("max_attempts", maxAttempts))
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading weather data: %w", err)
	}
	return body, nil
}
