package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yegors/flightbrief/internal/geo"
	"github.com/yegors/flightbrief/pkg/logger"
)

// ErrNoProvider is returned when no analysis provider is configured
var ErrNoProvider = errors.New("no analysis provider configured")

// Analyzer renders prompts, calls the provider and post-processes the answer
type Analyzer struct {
	provider     Provider
	models       ModelSource
	defaultModel string
	logger       *logger.Logger
}

// New creates an Analyzer. models may be nil.
func New(provider Provider, models ModelSource, defaultModel string, logger *logger.Logger) *Analyzer {
	return &Analyzer{
		provider:     provider,
		models:       models,
		defaultModel: defaultModel,
		logger:       logger.Named("analysis"),
	}
}

// Analyze produces a structured summary. It is not retried; callers fall back to Degraded.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if a.provider == nil {
		return nil, ErrNoProvider
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	model := a.model(ctx)
	start := time.Now()
	completion, err := a.provider.Complete(ctx, prompt, model)
	if err != nil {
		a.logger.Warn("Analysis request failed",
			logger.String("icao", req.Code),
			logger.String("model", model),
			logger.Error(err))
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	summary, err := ParseSummary(completion.Text)
	if err != nil {
		a.logger.Warn("Analysis response was not valid JSON",
			logger.String("icao", req.Code),
			logger.Int("length", len(completion.Text)),
			logger.Error(err))
		return nil, err
	}

	usedModel := completion.Model
	if usedModel == "" {
		usedModel = model
	}

	a.logger.Debug("Analysis complete",
		logger.String("icao", req.Code),
		logger.String("model", usedModel),
		logger.Int("tokens", completion.Tokens),
		logger.Duration("elapsed", time.Since(start)))

	return &Result{
		Summary: summary,
		Usage:   Usage{Model: usedModel, Tokens: completion.Tokens},
	}, nil
}

func (a *Analyzer) model(ctx context.Context) string {
	if a.models != nil {
		if m := a.models.AnalysisModel(ctx); m != "" {
			return m
		}
	}
	return a.defaultModel
}

// RunwayHeadings converts runway-end true headings to a sorted list carrying
// the magnetic heading at the airport for the given date.
func RunwayHeadings(runways map[string]float64, lat, lon float64, at time.Time) []RunwayHeading {
	if len(runways) == 0 {
		return nil
	}

	variation := geo.MagneticVariation(lat, lon, at)
	out := make([]RunwayHeading, 0, len(runways))
	for ident, trueHdg := range runways {
		out = append(out, RunwayHeading{
			Ident:    ident,
			True:     trueHdg,
			Magnetic: math.Round(geo.MagneticHeading(trueHdg, variation)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ident < out[j].Ident })
	return out
}
