package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

const DefaultQuestionTimeout = 10 * time.Second

var (
	ErrTimeout        = errors.New("execution timed out")
	ErrOutputTooLarge = errors.New("output limit exceeded")
	ErrRuntime        = errors.New("runtime error")
)

// Runner executes a submission against a single input outside the service
// process and returns what the submission printed.
type Runner interface {
	Run(ctx context.Context, code, input string) (string, error)
	Name() string
}

type Result struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func (r Result) Total() int {
	return r.Passed + r.Failed
}

// Score scales points by the pass ratio, rounding half away from zero.
func Score(points int, r Result) int {
	if r.Total() == 0 {
		return 0
	}
	return int(math.Round(float64(points) * float64(r.Passed) / float64(r.Total())))
}

type Evaluator struct {
	runner          Runner
	questionTimeout time.Duration
	logger          *slog.Logger
}

func NewEvaluator(runner Runner, questionTimeout time.Duration, logger *slog.Logger) *Evaluator {
	if questionTimeout <= 0 {
		questionTimeout = DefaultQuestionTimeout
	}
	return &Evaluator{
		runner:          runner,
		questionTimeout: questionTimeout,
		logger:          logger,
	}
}

// Evaluate runs every case in order. A failing or erroring case never stops
// the remaining ones; cases left when the deadline passes count as failed.
func (e *Evaluator) Evaluate(ctx context.Context, code string, cases []models.TestCase) Result {
	var result Result
	if len(cases) == 0 {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, e.questionTimeout)
	defer cancel()

	for i, tc := range cases {
		if ctx.Err() != nil {
			result.Failed += len(cases) - i
			e.logger.WarnContext(ctx, "Evaluation deadline reached",
				"runner", e.runner.Name(),
				"skipped_cases", len(cases)-i)
			break
		}

		start := time.Now()
		output, err := e.runner.Run(ctx, code, tc.Input)
		metrics.EvaluationCaseDuration.WithLabelValues(e.runner.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			result.Failed++
			e.logger.DebugContext(ctx, "Test case errored", "case", i, "error", err)
			continue
		}

		if strings.TrimSpace(output) == strings.TrimSpace(tc.ExpectedOutput) {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	metrics.CodingEvaluations.WithLabelValues(e.runner.Name(), outcome(result)).Inc()
	return result
}

func outcome(r Result) string {
	switch {
	case r.Failed == 0:
		return "passed"
	case r.Passed == 0:
		return "failed"
	default:
		return "partial"
	}
}
