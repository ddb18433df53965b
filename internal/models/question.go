package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMCQ    QuestionType = "mcq"
	QuestionCoding QuestionType = "coding"
)

func (t QuestionType) Valid() bool {
	return t == QuestionMCQ || t == QuestionCoding
}

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
	// DifficultyMixed is only meaningful on generation requests.
	DifficultyMixed DifficultyLevel = "mixed"
)

type Subject string

const (
	SubjectMathematics      Subject = "mathematics"
	SubjectProgramming      Subject = "programming"
	SubjectDataStructures   Subject = "data-structures"
	SubjectAlgorithms       Subject = "algorithms"
	SubjectDatabase         Subject = "database"
	SubjectWebDevelopment   Subject = "web-development"
	SubjectGeneral          Subject = "general"
	SubjectGeneralKnowledge Subject = "general-knowledge"
	SubjectScience          Subject = "science"
	SubjectEnglish          Subject = "english"
	SubjectComputerScience  Subject = "computer-science"
)

var Subjects = []Subject{
	SubjectMathematics, SubjectProgramming, SubjectDataStructures, SubjectAlgorithms,
	SubjectDatabase, SubjectWebDevelopment, SubjectGeneral, SubjectGeneralKnowledge,
	SubjectScience, SubjectEnglish, SubjectComputerScience,
}

const (
	DefaultMCQPoints    = 1
	DefaultCodingPoints = 10
)

var ErrInvalidQuestion = errors.New("invalid question")

// Question is a single assessment item. Exactly one of MCQ or Coding is set,
// matching Type.
type Question struct {
	Type        QuestionType    `json:"type"`
	Subject     string          `json:"subject,omitempty"`
	Difficulty  DifficultyLevel `json:"difficulty,omitempty"`
	Prompt      string          `json:"question"`
	Points      int             `json:"points"`
	Explanation string          `json:"explanation,omitempty"`

	MCQ    *MCQContent    `json:"mcq,omitempty"`
	Coding *CodingContent `json:"coding,omitempty"`
}

// ===== QUESTION CONTENT SCHEMAS =====

type MCQContent struct {
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

type CodingContent struct {
	CodeTemplate string     `json:"code_template"`
	TestCases    []TestCase `json:"test_cases"`
	Constraints  string     `json:"constraints,omitempty"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"is_hidden"`
}

func NewMCQQuestion(prompt string, options []string, correct string, points int) (Question, error) {
	q := Question{
		Type:   QuestionMCQ,
		Prompt: prompt,
		Points: points,
		MCQ:    &MCQContent{Options: options, CorrectAnswer: correct},
	}
	return q, q.Validate()
}

func NewCodingQuestion(prompt, template string, cases []TestCase, points int) (Question, error) {
	q := Question{
		Type:   QuestionCoding,
		Prompt: prompt,
		Points: points,
		Coding: &CodingContent{CodeTemplate: template, TestCases: cases},
	}
	return q, q.Validate()
}

// Validate enforces the type-specific required fields.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidQuestion)
	}
	if q.Points <= 0 {
		return fmt.Errorf("%w: points must be positive", ErrInvalidQuestion)
	}
	if !q.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.Type)
	}

	switch q.Type {
	case QuestionMCQ:
		if q.MCQ == nil || q.Coding != nil {
			return fmt.Errorf("%w: mcq question must carry mcq content only", ErrInvalidQuestion)
		}
		if len(q.MCQ.Options) < 2 {
			return fmt.Errorf("%w: at least 2 options required", ErrInvalidQuestion)
		}
		if q.MCQ.CorrectAnswer == "" || !slices.Contains(q.MCQ.Options, q.MCQ.CorrectAnswer) {
			return fmt.Errorf("%w: correct answer must match an option", ErrInvalidQuestion)
		}
	case QuestionCoding:
		if q.Coding == nil || q.MCQ != nil {
			return fmt.Errorf("%w: coding question must carry coding content only", ErrInvalidQuestion)
		}
		if len(q.Coding.TestCases) < 2 {
			return fmt.Errorf("%w: at least 2 test cases required", ErrInvalidQuestion)
		}
	}

	return nil
}

// BankQuestion is a reusable, admin-curated question.
type BankQuestion struct {
	ID         uint                         `json:"id" gorm:"primaryKey"`
	Type       QuestionType                 `json:"type" gorm:"not null;index;size:20"`
	Subject    Subject                      `json:"subject" gorm:"not null;index;size:50"`
	Difficulty DifficultyLevel              `json:"difficulty" gorm:"default:medium;index;size:20"`
	Content    datatypes.JSONType[Question] `json:"content" gorm:"type:jsonb"`
	Tags       datatypes.JSONSlice[string]  `json:"tags" gorm:"type:jsonb"`
	IsActive   bool                         `json:"is_active" gorm:"default:true;index"`
	UsageCount int                          `json:"usage_count" gorm:"default:0"`
	CreatedBy  string                       `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt  time.Time                    `json:"created_at"`
	UpdatedAt  time.Time                    `json:"updated_at"`
}

func (BankQuestion) TableName() string {
	return "bank_questions"
}

// Question returns the stored variant with bank-level tags applied.
func (b *BankQuestion) Question() Question {
	q := b.Content.Data()
	q.Type = b.Type
	q.Subject = string(b.Subject)
	q.Difficulty = b.Difficulty
	return q
}
