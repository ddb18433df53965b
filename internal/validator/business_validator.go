package validator

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateLeaveCreate validates leave application rules
func (bv *BusinessValidator) ValidateLeaveCreate(req *LeaveCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	if req.EndDate.Before(req.StartDate.Time) {
		errors = append(errors, ValidationError{
			Field:   "end_date",
			Message: "must not be before start date",
			Value:   req.EndDate.Format(models.DateLayout),
			Rule:    "date_range",
		})
	}

	return errors
}

// ValidateBankQuestion validates that the content matches the declared type
func (bv *BusinessValidator) ValidateBankQuestion(req *BankQuestionCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	if len(errors) > 0 {
		return errors
	}

	switch req.Type {
	case models.QuestionMCQ:
		if len(req.Options) < 2 {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "at least 2 options are required",
				Value:   len(req.Options),
				Rule:    "question_content",
			})
		}
		if !slices.Contains(req.Options, req.CorrectAnswer) {
			errors = append(errors, ValidationError{
				Field:   "correct_answer",
				Message: "must match one of the options",
				Value:   req.CorrectAnswer,
				Rule:    "question_content",
			})
		}
		if len(req.TestCases) > 0 {
			errors = append(errors, ValidationError{
				Field:   "test_cases",
				Message: "not allowed on mcq questions",
				Rule:    "question_content",
			})
		}
	case models.QuestionCoding:
		if len(req.TestCases) < 2 {
			errors = append(errors, ValidationError{
				Field:   "test_cases",
				Message: "at least 2 test cases are required",
				Value:   len(req.TestCases),
				Rule:    "question_content",
			})
		}
		if len(req.Options) > 0 {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "not allowed on coding questions",
				Rule:    "question_content",
			})
		}
	}

	for i, tag := range req.Tags {
		if strings.TrimSpace(tag) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tags[%d]", i),
				Message: "tag cannot be empty",
				Value:   tag,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("leave_type", func(fl validator.FieldLevel) bool {
		validTypes := []models.LeaveType{
			models.LeaveSick, models.LeaveCasual, models.LeaveEmergency, models.LeaveFestive,
			models.LeaveExam, models.LeavePersonal, models.LeaveOther,
		}
		return slices.Contains(validTypes, models.LeaveType(fl.Field().String()))
	})

	// Reason is counted in characters after trimming (10-500)
	bv.validate.RegisterValidation("leave_reason", func(fl validator.FieldLevel) bool {
		n := utf8.RuneCountInString(strings.TrimSpace(fl.Field().String()))
		return n >= 10 && n <= 500
	})

	bv.validate.RegisterValidation("question_difficulty", func(fl validator.FieldLevel) bool {
		validLevels := []models.DifficultyLevel{
			models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard, models.DifficultyMixed,
		}
		return slices.Contains(validLevels, models.DifficultyLevel(fl.Field().String()))
	})

	bv.validate.RegisterValidation("anti_cheat_type", func(fl validator.FieldLevel) bool {
		t := models.AntiCheatType(fl.Field().String())
		return t == models.AntiCheatTabSwitch || t == models.AntiCheatCopyAttempt
	})

	bv.validate.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		return slices.Contains(models.Subjects, models.Subject(fl.Field().String()))
	})
}
