package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	delay   time.Duration
	calls   int
}

func (f *fakeRunner) Name() string { return "fake" }

func (f *fakeRunner) Run(ctx context.Context, code, input string) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ErrTimeout
		}
	}
	if err, ok := f.errs[input]; ok {
		return "", err
	}
	return f.outputs[input], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func factorialCases() []models.TestCase {
	return []models.TestCase{
		{Input: "5", ExpectedOutput: "120"},
		{Input: "3", ExpectedOutput: "6"},
		{Input: "0", ExpectedOutput: "1", Hidden: true},
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
		want   Result
	}{
		{
			name:   "all pass with whitespace trimmed",
			runner: &fakeRunner{outputs: map[string]string{"5": "120\n", "3": " 6", "0": "1"}},
			want:   Result{Passed: 3},
		},
		{
			name:   "one wrong",
			runner: &fakeRunner{outputs: map[string]string{"5": "120", "3": "7", "0": "1"}},
			want:   Result{Passed: 2, Failed: 1},
		},
		{
			name: "runtime error counts as failed and evaluation continues",
			runner: &fakeRunner{
				outputs: map[string]string{"3": "6", "0": "1"},
				errs:    map[string]error{"5": ErrRuntime},
			},
			want: Result{Passed: 2, Failed: 1},
		},
		{
			name:   "timeouts fail every case",
			runner: &fakeRunner{errs: map[string]error{"5": ErrTimeout, "3": ErrTimeout, "0": ErrTimeout}},
			want:   Result{Failed: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(tt.runner, time.Second, testLogger())
			got := e.Evaluate(context.Background(), "function solution(input) {}", factorialCases())
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluator_QuestionDeadlineFailsRemainingCases(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{"5": "120", "3": "6", "0": "1"},
		delay:   40 * time.Millisecond,
	}
	e := NewEvaluator(runner, 60*time.Millisecond, testLogger())

	got := e.Evaluate(context.Background(), "", factorialCases())

	if got.Total() != 3 {
		t.Fatalf("every case must be accounted for, got %+v", got)
	}
	if got.Passed != 1 || got.Failed != 2 {
		t.Errorf("expected only the first case to pass, got %+v", got)
	}
}

func TestEvaluator_NoCases(t *testing.T) {
	runner := &fakeRunner{}
	e := NewEvaluator(runner, time.Second, testLogger())

	got := e.Evaluate(context.Background(), "x", nil)
	if got.Total() != 0 || runner.calls != 0 {
		t.Errorf("expected no runs, got %+v after %d calls", got, runner.calls)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		points int
		result Result
		want   int
	}{
		{points: 10, result: Result{Passed: 3}, want: 10},
		{points: 10, result: Result{Passed: 2, Failed: 1}, want: 7},
		{points: 10, result: Result{Passed: 1, Failed: 2}, want: 3},
		{points: 10, result: Result{Failed: 3}, want: 0},
		{points: 10, result: Result{}, want: 0},
		{points: 5, result: Result{Passed: 1, Failed: 1}, want: 3},
	}

	for _, tt := range tests {
		if got := Score(tt.points, tt.result); got != tt.want {
			t.Errorf("Score(%d, %+v) = %d, want %d", tt.points, tt.result, got, tt.want)
		}
	}
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if !b.overflow || b.String() != "abcd" {
		t.Errorf("overflow=%v content=%q", b.overflow, b.String())
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrTimeout, ErrRuntime) || errors.Is(ErrOutputTooLarge, ErrRuntime) {
		t.Error("evaluator errors must be distinguishable")
	}
}
