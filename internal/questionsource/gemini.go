package questionsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiGenerator asks a Gemini model for a JSON array of questions.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiGenerator returns nil when apiKey is empty so that callers fall
// back to the static question set.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, nil
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.8)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(8192)
	model.ResponseMIMEType = "application/json"

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty text response")
	}
	return sb.String(), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func buildPrompt(req Request) string {
	topic := req.Topic
	if topic == "" {
		topic = "programming"
	}
	difficulty := string(req.Difficulty)
	if difficulty == "" {
		difficulty = string(models.DifficultyMixed)
	}

	if req.Type == models.QuestionMCQ {
		return fmt.Sprintf(`You are a test generator. Create %d multiple-choice questions about %s at %s difficulty.

Return ONLY a valid JSON array with no surrounding text or markdown:

[
  {
    "question": "Clear question text here",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correctAnswer": "Option A",
    "points": 1,
    "explanation": "Why this answer is correct"
  }
]

Requirements:
- Questions are practical and educational
- All 4 options are plausible
- correctAnswer exactly matches one option
- Each question tests a different concept`, req.Count, topic, difficulty)
	}

	return fmt.Sprintf(`You are a coding problem generator. Create %d coding problems about %s at %s difficulty.

Every solution is a JavaScript function named solution that receives the test
input as a string and returns the answer; the returned value is compared as
text with expectedOutput.

Return ONLY a valid JSON array with no surrounding text or markdown:

[
  {
    "question": "Problem statement with example",
    "codeTemplate": "function solution(input) {\n  // Your code here\n  return result;\n}",
    "testCases": [
      {"input": "test1", "expectedOutput": "output1", "isHidden": false},
      {"input": "test2", "expectedOutput": "output2", "isHidden": false},
      {"input": "test3", "expectedOutput": "output3", "isHidden": true}
    ],
    "points": 10,
    "constraints": "Time: 2s, Memory: 256MB"
  }
]

Requirements:
- Clear problem descriptions
- 3 diverse test cases, at least one hidden
- Solvable in 5-10 minutes`, req.Count, topic, difficulty)
}
