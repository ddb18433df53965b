package questionsource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

var (
	errNoJSONArray = errors.New("no JSON array found in response")
	errEmptyBatch  = errors.New("response contained no questions")
)

// flexString accepts a JSON string or any scalar and keeps its text form.
// Models regularly emit numeric test inputs without quotes.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("expected scalar, got %s", data)
	}
	*f = flexString(data)
	return nil
}

type rawTestCase struct {
	Input          flexString `json:"input"`
	ExpectedOutput flexString `json:"expectedOutput"`
	IsHidden       bool       `json:"isHidden"`
}

type rawItem struct {
	Question      string          `json:"question"`
	Options       []flexString    `json:"options"`
	CorrectAnswer flexString      `json:"correctAnswer"`
	Points        json.RawMessage `json:"points"`
	Explanation   string          `json:"explanation"`
	CodeTemplate  string          `json:"codeTemplate"`
	TestCases     []rawTestCase   `json:"testCases"`
	Constraints   string          `json:"constraints"`
}

// extractArray decodes the response as a JSON array, first directly and then
// after stripping markdown fences and surrounding prose.
func extractArray(text string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, nil
	}

	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, errNoJSONArray
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("failed to decode question array: %w", err)
	}
	return items, nil
}

// parseQuestions converts raw model output into validated questions. Items
// that fail validation are dropped, never repaired; dropped reports how many.
func parseQuestions(text string, req Request) (questions []models.Question, dropped int, err error) {
	items, err := extractArray(text)
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, errEmptyBatch
	}

	questions = make([]models.Question, 0, len(items))
	for _, item := range items {
		q, err := toQuestion(item, req)
		if err != nil {
			dropped++
			continue
		}
		questions = append(questions, q)
	}
	return questions, dropped, nil
}

func toQuestion(data json.RawMessage, req Request) (models.Question, error) {
	var item rawItem
	if err := json.Unmarshal(data, &item); err != nil {
		return models.Question{}, fmt.Errorf("%w: %v", models.ErrInvalidQuestion, err)
	}

	points, err := parsePoints(item.Points, req.Type)
	if err != nil {
		return models.Question{}, err
	}

	var q models.Question
	switch req.Type {
	case models.QuestionMCQ:
		options := make([]string, len(item.Options))
		for i, o := range item.Options {
			options[i] = string(o)
		}
		q, err = models.NewMCQQuestion(item.Question, options, string(item.CorrectAnswer), points)
		q.Explanation = item.Explanation
	case models.QuestionCoding:
		cases := make([]models.TestCase, len(item.TestCases))
		for i, tc := range item.TestCases {
			cases[i] = models.TestCase{
				Input:          string(tc.Input),
				ExpectedOutput: string(tc.ExpectedOutput),
				Hidden:         tc.IsHidden,
			}
		}
		q, err = models.NewCodingQuestion(item.Question, item.CodeTemplate, cases, points)
		if q.Coding != nil {
			q.Coding.Constraints = item.Constraints
		}
	default:
		return models.Question{}, fmt.Errorf("%w: unknown type %q", models.ErrInvalidQuestion, req.Type)
	}
	if err != nil {
		return models.Question{}, err
	}

	if req.Difficulty != "" && req.Difficulty != models.DifficultyMixed {
		q.Difficulty = req.Difficulty
	}
	return q, nil
}

// parsePoints applies the type default only when the field is absent.
func parsePoints(raw json.RawMessage, t models.QuestionType) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if t == models.QuestionCoding {
			return models.DefaultCodingPoints, nil
		}
		return models.DefaultMCQPoints, nil
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("%w: points must be numeric", models.ErrInvalidQuestion)
	}
	points := int(math.Round(value))
	if points <= 0 {
		return 0, fmt.Errorf("%w: points must be positive", models.ErrInvalidQuestion)
	}
	return points, nil
}
