package questionsource

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/SAP-F-2025/leave-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

const DefaultTimeout = 60 * time.Second

// Fallback reasons, also used as metric labels.
const (
	ReasonNoGenerator  = "generator_unavailable"
	ReasonRateLimited  = "rate_limited"
	ReasonTimeout      = "timeout"
	ReasonGenerator    = "generator_error"
	ReasonUnparseable  = "unparseable_response"
	ReasonNoValidItems = "no_valid_questions"
)

// Generator produces raw model text for a question request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Topic      string
	Type       models.QuestionType
	Difficulty models.DifficultyLevel
	Count      int
}

// Batch is the outcome of a fetch. Reason is set only for fallback batches.
type Batch struct {
	Questions    []models.Question
	FromFallback bool
	Reason       string
}

type Config struct {
	Timeout        time.Duration
	RequestsPerSec float64
}

// Adapter fronts the question generator with a deadline, a process-wide
// rate limit and the static fallback set. Fetch never fails.
type Adapter struct {
	generator Generator
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
}

func NewAdapter(generator Generator, cfg Config, logger *slog.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	limit, burst := rate.Inf, 1
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
		burst = max(1, int(cfg.RequestsPerSec))
	}

	return &Adapter{
		generator: generator,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

func (a *Adapter) Fetch(ctx context.Context, req Request) Batch {
	if req.Count <= 0 {
		return Batch{Questions: []models.Question{}}
	}
	if a.generator == nil {
		return a.fallback(ctx, req, ReasonNoGenerator, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Wait fails fast when the reservation would outlive the deadline
	if err := a.limiter.Wait(ctx); err != nil {
		return a.fallback(ctx, req, ReasonRateLimited, err)
	}

	start := time.Now()
	raw, err := a.generator.Generate(ctx, req)
	metrics.QuestionSourceDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		reason := ReasonGenerator
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return a.fallback(ctx, req, reason, err)
	}

	questions, dropped, err := parseQuestions(raw, req)
	if err != nil {
		return a.fallback(ctx, req, ReasonUnparseable, err)
	}
	if len(questions) == 0 {
		return a.fallback(ctx, req, ReasonNoValidItems, nil)
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}

	a.logger.InfoContext(ctx, "Questions generated successfully",
		"type", req.Type,
		"topic", req.Topic,
		"requested", req.Count,
		"returned", len(questions),
		"dropped", dropped)

	return Batch{Questions: questions}
}

func (a *Adapter) fallback(ctx context.Context, req Request, reason string, cause error) Batch {
	metrics.QuestionSourceFallbacks.WithLabelValues(string(req.Type), reason).Inc()

	args := []any{"type", req.Type, "topic", req.Topic, "count", req.Count, "reason", reason}
	if cause != nil {
		args = append(args, "error", cause)
	}
	a.logger.WarnContext(ctx, "Using fallback questions", args...)

	return Batch{
		Questions:    Fallback(req.Type, req.Count),
		FromFallback: true,
		Reason:       reason,
	}
}
