package briefing

import (
	"context"
	"time"

	"github.com/yegors/flightbrief/pkg/logger"
)

// Outcome is the closed set of request results recorded in the attempt log
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeCacheHit    Outcome = "CACHE_HIT"
	OutcomeRateLimited Outcome = "RATE_LIMIT"
	OutcomeNoData      Outcome = "NO_DATA"
	OutcomePaused      Outcome = "PAUSED"
	OutcomeError       Outcome = "ERROR"
)

// Outcomes lists every outcome in display order
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeCacheHit,
	OutcomeRateLimited,
	OutcomeNoData,
	OutcomePaused,
	OutcomeError,
}

// Attempt is one row of the request log
type Attempt struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	ClientID        string    `json:"client_id"`
	IP              string    `json:"ip_address"`
	InputCode       string    `json:"input_icao"`
	ResolvedCode    string    `json:"resolved_icao"`
	Aircraft        string    `json:"plane_profile"`
	DurationSeconds float64   `json:"duration_seconds"`
	Outcome         Outcome   `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Model           string    `json:"model_used,omitempty"`
	Tokens          int       `json:"tokens_used"`
}

// AttemptRecorder receives every finished attempt
type AttemptRecorder interface {
	Record(ctx context.Context, a *Attempt) error
}

// Recorders fans an attempt out to several recorders. Failures are logged and
// do not stop the remaining recorders.
type Recorders struct {
	recorders []AttemptRecorder
	logger    *logger.Logger
}

// NewRecorders creates a fan-out recorder. Nil entries are skipped.
func NewRecorders(logger *logger.Logger, recorders ...AttemptRecorder) *Recorders {
	r := &Recorders{logger: logger.Named("attempts")}
	for _, rec := range recorders {
		if rec != nil {
			r.recorders = append(r.recorders, rec)
		}
	}
	return r
}

func (r *Recorders) Record(ctx context.Context, a *Attempt) error {
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, a); err != nil {
			r.logger.Error("Failed to record attempt",
				logger.String("input", a.InputCode),
				logger.String("outcome", string(a.Outcome)),
				logger.Error(err))
		}
	}
	return nil
}

func logOutcome(log *logger.Logger, a *Attempt) {
	fields := []logger.Field{
		logger.String("input", a.InputCode),
		logger.String("resolved", a.ResolvedCode),
		logger.String("ip", a.IP),
		logger.Float64("duration_seconds", a.DurationSeconds),
	}

	switch a.Outcome {
	case OutcomeSuccess:
		log.Info("Briefing generated", append(fields,
			logger.String("model", a.Model),
			logger.Int("tokens", a.Tokens))...)
	case OutcomeCacheHit:
		log.Info("Briefing served from cache", fields...)
	case OutcomeRateLimited:
		log.Warn("Briefing rate limited", fields...)
	case OutcomeNoData:
		log.Warn("No weather available for briefing", fields...)
	case OutcomePaused:
		log.Info("Briefing rejected while paused", fields...)
	case OutcomeError:
		log.Error("Briefing failed", append(fields, logger.String("error", a.ErrorMessage))...)
	default:
		log.Error("Briefing finished with unknown outcome", append(fields, logger.String("outcome", string(a.Outcome)))...)
	}
}
