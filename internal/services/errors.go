package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrValidationFailed  = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrConflict          = errors.New("conflict")
	ErrSequenceViolation = errors.New("complete previous round first")

	ErrSessionNotFound   = errors.New("test session not found")
	ErrSessionExpired    = errors.New("test time expired")
	ErrSessionCompleted  = errors.New("test already completed")
	ErrSessionEnded      = errors.New("test has expired")
	ErrSessionNotStarted = errors.New("test not started")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrAnswerTypeInvalid = fmt.Errorf("%w: answer type does not match test type", ErrInvalidInput)

	ErrLeaveNotFound = errors.New("leave request not found")
	ErrLeaveOverlap  = fmt.Errorf("%w: leave dates overlap an existing request", ErrConflict)

	ErrBankQuestionNotFound = errors.New("bank question not found")
)

type ValidationErrors = validator.ValidationErrors

func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message, Value: value, Rule: "business_logic"}}
}

// PermissionError describes a denied action on a resource
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: cannot %s %s %d: %s", e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// BusinessRuleError reports a rule violation the client can act on
type BusinessRuleError struct {
	Message string
	Rule    string
	Context map[string]interface{}
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Message: message, Rule: rule, Context: context}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

// StateError carries the current state alongside ErrInvalidState
type StateError struct {
	Current string
	Action  string
	Err     error
}

func newStateError(current, action string, err error) *StateError {
	return &StateError{Current: current, Action: action, Err: err}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s: %v", e.Action, e.Current, e.Err)
}

func (e *StateError) Unwrap() []error {
	return []error{ErrInvalidState, e.Err}
}
