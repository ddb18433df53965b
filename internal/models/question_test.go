package models

import (
	"errors"
	"testing"
)

func TestQuestion_Validate(t *testing.T) {
	cases := []TestCase{{Input: "1", ExpectedOutput: "1"}, {Input: "2", ExpectedOutput: "2"}}

	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{
			name: "valid mcq",
			q:    Question{Type: QuestionMCQ, Prompt: "2+2?", Points: 1, MCQ: &MCQContent{Options: []string{"3", "4"}, CorrectAnswer: "4"}},
		},
		{
			name: "valid coding",
			q:    Question{Type: QuestionCoding, Prompt: "echo", Points: 10, Coding: &CodingContent{TestCases: cases}},
		},
		{
			name:    "unknown type",
			q:       Question{Type: "essay", Prompt: "Discuss", Points: 5},
			wantErr: true,
		},
		{
			name:    "correct answer outside options",
			q:       Question{Type: QuestionMCQ, Prompt: "2+2?", Points: 1, MCQ: &MCQContent{Options: []string{"3", "5"}, CorrectAnswer: "4"}},
			wantErr: true,
		},
		{
			name:    "mixed content",
			q:       Question{Type: QuestionCoding, Prompt: "echo", Points: 10, Coding: &CodingContent{TestCases: cases}, MCQ: &MCQContent{}},
			wantErr: true,
		},
		{
			name:    "single test case",
			q:       Question{Type: QuestionCoding, Prompt: "echo", Points: 10, Coding: &CodingContent{TestCases: cases[:1]}},
			wantErr: true,
		},
		{
			name:    "zero points",
			q:       Question{Type: QuestionMCQ, Prompt: "2+2?", MCQ: &MCQContent{Options: []string{"3", "4"}, CorrectAnswer: "4"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuestion) {
				t.Errorf("expected ErrInvalidQuestion, got %v", err)
			}
		})
	}
}

func TestQuestionType_Valid(t *testing.T) {
	for _, qt := range []QuestionType{QuestionMCQ, QuestionCoding} {
		if !qt.Valid() {
			t.Errorf("%q should be valid", qt)
		}
	}
	if QuestionType("essay").Valid() || QuestionType("").Valid() {
		t.Error("unexpected type accepted")
	}
}
