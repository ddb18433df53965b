package questionsource

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
)

//go:embed fallback/questions.json
var fallbackJSON []byte

type fallbackSet struct {
	Version int               `json:"version"`
	MCQ     []models.Question `json:"mcq"`
	Coding  []models.Question `json:"coding"`
}

// loadFallback parses the embedded dataset once. A broken asset is a build
// defect, so it panics instead of degrading.
var loadFallback = sync.OnceValue(func() fallbackSet {
	var set fallbackSet
	if err := json.Unmarshal(fallbackJSON, &set); err != nil {
		panic(fmt.Sprintf("questionsource: corrupt fallback dataset: %v", err))
	}
	for _, q := range append(slices.Clone(set.MCQ), set.Coding...) {
		if err := q.Validate(); err != nil {
			panic(fmt.Sprintf("questionsource: invalid fallback question %q: %v", q.Prompt, err))
		}
	}
	return set
})

// Fallback returns exactly count questions of type t from the static set,
// cycling through it in order when count exceeds its size.
func Fallback(t models.QuestionType, count int) []models.Question {
	set := loadFallback()
	pool := set.MCQ
	if t == models.QuestionCoding {
		pool = set.Coding
	}
	if count <= 0 || len(pool) == 0 {
		return []models.Question{}
	}

	out := make([]models.Question, count)
	for i := range out {
		out[i] = cloneQuestion(pool[i%len(pool)])
	}
	return out
}

// FallbackVersion identifies the embedded dataset revision.
func FallbackVersion() int {
	return loadFallback().Version
}

func cloneQuestion(q models.Question) models.Question {
	if q.MCQ != nil {
		mcq := *q.MCQ
		mcq.Options = slices.Clone(mcq.Options)
		q.MCQ = &mcq
	}
	if q.Coding != nil {
		coding := *q.Coding
		coding.TestCases = slices.Clone(coding.TestCases)
		q.Coding = &coding
	}
	return q
}
