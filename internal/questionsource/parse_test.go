package questionsource

import (
	"errors"
	"testing"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

func TestExtractArray(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{name: "plain array", text: `[{"a":1},{"a":2}]`, want: 2},
		{name: "fenced", text: "```json\n[{\"a\":1}]\n```", want: 1},
		{name: "prose around", text: "Here you go:\n[{\"a\":1},{\"a\":2},{\"a\":3}]\nEnjoy!", want: 3},
		{name: "no array", text: "sorry", wantErr: true},
		{name: "broken json", text: "[{\"a\":1}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := extractArray(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractArray() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(items) != tt.want {
				t.Errorf("got %d items, want %d", len(items), tt.want)
			}
		})
	}
}

func TestParseQuestions_MCQValidation(t *testing.T) {
	text := `[
	  {"question": "ok", "options": ["a", "b"], "correctAnswer": "a", "points": 1},
	  {"question": "one option", "options": ["a"], "correctAnswer": "a", "points": 1},
	  {"question": "no answer", "options": ["a", "b"], "points": 1},
	  {"question": "answer not an option", "options": ["a", "b"], "correctAnswer": "c", "points": 1},
	  {"question": "string points", "options": ["a", "b"], "correctAnswer": "a", "points": "1"},
	  {"question": "missing points", "options": ["a", "b"], "correctAnswer": "b"},
	  {"question": "numeric options", "options": [1, 2, 3], "correctAnswer": 2, "points": 1}
	]`

	questions, dropped, err := parseQuestions(text, Request{Type: models.QuestionMCQ, Difficulty: models.DifficultyEasy})
	if err != nil {
		t.Fatalf("parseQuestions() error = %v", err)
	}
	if len(questions) != 3 || dropped != 4 {
		t.Fatalf("got %d questions and %d dropped, want 3 and 4", len(questions), dropped)
	}
	if questions[1].Points != models.DefaultMCQPoints {
		t.Errorf("missing points should default to %d, got %d", models.DefaultMCQPoints, questions[1].Points)
	}
	if questions[2].MCQ.CorrectAnswer != "2" {
		t.Errorf("numeric answer should be kept as text, got %q", questions[2].MCQ.CorrectAnswer)
	}
	if questions[0].Difficulty != models.DifficultyEasy {
		t.Errorf("difficulty = %q, want easy", questions[0].Difficulty)
	}
}

func TestParseQuestions_CodingValidation(t *testing.T) {
	text := `[
	  {"question": "sum", "codeTemplate": "function solution(input) {}",
	   "testCases": [{"input": 1, "expectedOutput": 2}, {"input": "3", "expectedOutput": "4", "isHidden": true}],
	   "constraints": "Time: 2s"},
	  {"question": "one case", "testCases": [{"input": "1", "expectedOutput": "1"}], "points": 10},
	  {"question": "negative points", "testCases": [{"input": "1", "expectedOutput": "1"}, {"input": "2", "expectedOutput": "2"}], "points": -5}
	]`

	questions, dropped, err := parseQuestions(text, Request{Type: models.QuestionCoding})
	if err != nil {
		t.Fatalf("parseQuestions() error = %v", err)
	}
	if len(questions) != 1 || dropped != 2 {
		t.Fatalf("got %d questions and %d dropped, want 1 and 2", len(questions), dropped)
	}

	q := questions[0]
	if q.Points != models.DefaultCodingPoints {
		t.Errorf("points = %d, want %d", q.Points, models.DefaultCodingPoints)
	}
	if q.Coding.TestCases[0].Input != "1" || q.Coding.TestCases[0].ExpectedOutput != "2" {
		t.Errorf("numeric test case not stringified: %+v", q.Coding.TestCases[0])
	}
	if !q.Coding.TestCases[1].Hidden {
		t.Error("hidden flag lost")
	}
	if q.Coding.Constraints != "Time: 2s" {
		t.Errorf("constraints = %q", q.Coding.Constraints)
	}
	if q.MCQ != nil {
		t.Error("coding question must not carry MCQ content")
	}
}

func TestParseQuestions_EmptyArray(t *testing.T) {
	_, _, err := parseQuestions("[]", Request{Type: models.QuestionMCQ})
	if !errors.Is(err, errEmptyBatch) {
		t.Errorf("expected errEmptyBatch, got %v", err)
	}
}
