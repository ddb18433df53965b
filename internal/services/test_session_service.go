package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/questionsource"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

const DefaultSubmissionTimeout = 30 * time.Second

// TestSessionDeps are the collaborators of the test session service
type TestSessionDeps struct {
	Source    QuestionSource
	Bank      QuestionBankService
	Evaluator CodeEvaluator
	Rounds    RoundCompletionChecker
	Publisher events.EventPublisher

	// SubmissionTimeout bounds the coding evaluation of one submit
	SubmissionTimeout time.Duration
}

type testSessionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator

	source            QuestionSource
	bank              QuestionBankService
	evaluator         CodeEvaluator
	rounds            RoundCompletionChecker
	publisher         events.EventPublisher
	submissionTimeout time.Duration
}

func NewTestSessionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps TestSessionDeps) TestSessionService {
	if deps.SubmissionTimeout <= 0 {
		deps.SubmissionTimeout = DefaultSubmissionTimeout
	}
	return &testSessionService{
		repo:              repo,
		logger:            logger,
		validator:         validator,
		source:            deps.Source,
		bank:              deps.Bank,
		evaluator:         deps.Evaluator,
		rounds:            deps.Rounds,
		publisher:         deps.Publisher,
		submissionTimeout: deps.SubmissionTimeout,
	}
}

// ===== STATE MACHINE =====

func (s *testSessionService) Start(ctx context.Context, sessionID uint, userID string) (*TestSessionResponse, error) {
	s.logger.InfoContext(ctx, "Starting test session",
		"session_id", sessionID,
		"user_id", userID)

	var session *models.TestSession
	expired, resumed := false, false
	now := time.Now()

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		session, err = s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := checkOwner(session, userID, "start"); err != nil {
			return err
		}

		switch session.Status {
		case models.SessionCompleted:
			return newStateError(string(session.Status), "start", ErrSessionCompleted)
		case models.SessionExpired:
			return newStateError(string(session.Status), "start", ErrSessionEnded)
		}

		if err := s.checkSequence(ctx, tx, session); err != nil {
			return err
		}

		if session.Status == models.SessionInProgress {
			if session.IsOverdue(now) {
				expired = true
				return s.expire(ctx, tx, session, now)
			}
			resumed = true
			return nil
		}

		session.Status = models.SessionInProgress
		session.StartTime = timePtr(now)
		if err := s.repo.TestSession().Update(ctx, tx, session); err != nil {
			return fmt.Errorf("failed to start test session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSessionWrite(ctx, session)
	if expired {
		return nil, ErrSessionExpired
	}

	s.logger.InfoContext(ctx, "Test session started successfully",
		"session_id", sessionID,
		"resumed", resumed)

	return newSessionResponse(session, false, now), nil
}

func (s *testSessionService) RecordAnswer(ctx context.Context, sessionID uint, questionID string, userID string, payload AnswerPayload) error {
	s.logger.InfoContext(ctx, "Recording answer",
		"session_id", sessionID,
		"question_id", questionID,
		"kind", payload.Kind)

	var session *models.TestSession
	expired := false
	now := time.Now()

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		session, err = s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := checkOwner(session, userID, "answer"); err != nil {
			return err
		}

		switch session.Status {
		case models.SessionCompleted:
			return newStateError(string(session.Status), "record answer", ErrSessionCompleted)
		case models.SessionExpired:
			return newStateError(string(session.Status), "record answer", ErrSessionEnded)
		case models.SessionNotStarted:
			return newStateError(string(session.Status), "record answer", ErrSessionNotStarted)
		}
		if session.IsOverdue(now) {
			expired = true
			return s.expire(ctx, tx, session, now)
		}

		if payload.Kind != session.TestType {
			return ErrAnswerTypeInvalid
		}

		idx := session.FindQuestion(questionID)
		if idx < 0 {
			return ErrQuestionNotFound
		}
		q := &session.Questions[idx]
		if q.Type != payload.Kind {
			return ErrAnswerTypeInvalid
		}

		switch payload.Kind {
		case models.QuestionMCQ:
			if payload.Answer == "" {
				return fmt.Errorf("%w: answer is required", ErrInvalidInput)
			}
			q.SelectedAnswer = stringPtr(payload.Answer)
		case models.QuestionCoding:
			if payload.Code == "" {
				return fmt.Errorf("%w: code is required", ErrInvalidInput)
			}
			q.SubmittedCode = stringPtr(payload.Code)
		}

		if err := s.repo.TestSession().Update(ctx, tx, session); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterSessionWrite(ctx, session)
	if expired {
		return ErrSessionExpired
	}

	s.logger.InfoContext(ctx, "Answer recorded successfully",
		"session_id", sessionID,
		"question_id", questionID)
	return nil
}

func (s *testSessionService) Submit(ctx context.Context, sessionID uint, userID string, req *SubmitTestRequest) (*SubmitResult, error) {
	s.logger.InfoContext(ctx, "Submitting test session",
		"session_id", sessionID,
		"user_id", userID)

	if req == nil {
		req = &SubmitTestRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, alreadyDone, err := s.finish(ctx, sessionID, userID, "submit", req.Answers, req.AntiCheatData)
	if err != nil {
		return nil, err
	}

	if !alreadyDone {
		s.publishSubmitted(ctx, session, false)
	}
	s.checkRounds(ctx, session)

	s.logger.InfoContext(ctx, "Test session submitted successfully",
		"session_id", sessionID,
		"score", session.Score,
		"total_points", session.TotalPoints,
		"already_submitted", alreadyDone)

	return newSubmitResult(session), nil
}

// Abandon force-completes an in-progress session from the answers recorded so
// far. It is idempotent for completed sessions.
func (s *testSessionService) Abandon(ctx context.Context, sessionID uint, userID string) (*TestSessionResponse, error) {
	s.logger.InfoContext(ctx, "Abandoning test session",
		"session_id", sessionID,
		"user_id", userID)

	session, alreadyDone, err := s.finish(ctx, sessionID, userID, "abandon", nil, nil)
	if err != nil {
		return nil, err
	}

	if !alreadyDone {
		s.publishSubmitted(ctx, session, true)
	}
	s.checkRounds(ctx, session)

	s.logger.InfoContext(ctx, "Test session abandoned successfully",
		"session_id", sessionID,
		"score", session.Score)

	resp := newSessionResponse(session, false, time.Now())
	resp.Terminated = true
	resp.Message = terminatedMessage
	return resp, nil
}

// finish moves an in-progress session to completed and scores it under the
// row lock, so concurrent callers see the first result. Answers supplied after
// the time budget are ignored and the recorded ones are scored instead.
func (s *testSessionService) finish(ctx context.Context, sessionID uint, userID, action string, answers []string, snapshot *validator.AntiCheatSnapshot) (*models.TestSession, bool, error) {
	var session *models.TestSession
	alreadyDone := false
	now := time.Now()

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		session, err = s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := checkOwner(session, userID, action); err != nil {
			return err
		}

		switch session.Status {
		case models.SessionCompleted:
			alreadyDone = true
			return nil
		case models.SessionExpired:
			return newStateError(string(session.Status), action, ErrSessionEnded)
		case models.SessionNotStarted:
			return newStateError(string(session.Status), action, ErrSessionNotStarted)
		}

		if session.IsOverdue(now) {
			s.logger.WarnContext(ctx, "Late submission, scoring recorded answers only",
				"session_id", session.ID,
				"elapsed", session.Elapsed(now).String())
			answers = nil
		}

		session.Status = models.SessionCompleted
		session.EndTime = timePtr(now)
		session.SubmittedAt = timePtr(now)
		mergeAntiCheat(session, snapshot)
		s.scoreSession(ctx, session, answers)

		if err := s.repo.TestSession().Update(ctx, tx, session); err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !alreadyDone {
		s.afterSessionWrite(ctx, session)
	}
	return session, alreadyDone, nil
}

func (s *testSessionService) ReportAntiCheat(ctx context.Context, sessionID uint, userID string, kind models.AntiCheatType, details string) error {
	session, err := s.repo.TestSession().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to get test session: %w", err)
	}
	if err := checkOwner(session, userID, "report"); err != nil {
		return err
	}

	entry := ""
	if details != "" {
		entry = fmt.Sprintf("%s: %s at %s", kind, details, time.Now().UTC().Format(time.RFC3339))
	}

	if err := s.repo.TestSession().RecordAntiCheat(ctx, nil, sessionID, kind, entry); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to record anti-cheat event: %w", err)
	}

	s.logger.InfoContext(ctx, "Anti-cheat event recorded",
		"session_id", sessionID,
		"type", kind)
	return nil
}

// ===== READ AND AD HOC CREATION =====

func (s *testSessionService) Get(ctx context.Context, sessionID uint, userID string, role models.UserRole) (*TestSessionResponse, error) {
	session, err := s.repo.TestSession().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get test session: %w", err)
	}

	isAdmin := role == models.RoleAdmin
	if !isAdmin {
		if err := checkOwner(session, userID, "view"); err != nil {
			return nil, err
		}
	}

	return newSessionResponse(session, isAdmin, time.Now()), nil
}

func (s *testSessionService) CreateAdHoc(ctx context.Context, userID string, req *AdHocSessionRequest) (*TestSessionResponse, error) {
	s.logger.InfoContext(ctx, "Starting ad hoc test session creation",
		"user_id", userID,
		"topic", req.Topic,
		"type", req.Type,
		"source", req.Source)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	difficulty := models.DifficultyLevel(req.Difficulty)
	if difficulty == "" {
		difficulty = models.DifficultyMixed
	}

	var questions []models.Question
	fromFallback := false

	if req.Source == "bank" && s.bank != nil {
		var subject *models.Subject
		if candidate := models.Subject(req.Topic); isKnownSubject(candidate) {
			subject = &candidate
		}
		var err error
		questions, fromFallback, err = s.bank.Draw(ctx, subject, req.Type, difficulty, req.NumQuestions)
		if err != nil {
			return nil, fmt.Errorf("failed to draw bank questions: %w", err)
		}
	} else {
		batch := s.source.Fetch(ctx, questionsource.Request{
			Topic:      req.Topic,
			Type:       req.Type,
			Difficulty: difficulty,
			Count:      req.NumQuestions,
		})
		questions, fromFallback = batch.Questions, batch.FromFallback
	}

	if len(questions) == 0 {
		return nil, NewBusinessRuleError("questions_available", "no questions available for this request", map[string]interface{}{
			"topic": req.Topic,
			"type":  req.Type,
		})
	}

	session := newRoundSession(userID, nil, req.Type, 1, req.Duration, req.Topic, string(difficulty), questions)
	if err := s.repo.TestSession().Create(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	s.logger.InfoContext(ctx, "Ad hoc test session created successfully",
		"session_id", session.ID,
		"questions", len(questions),
		"from_fallback", fromFallback)

	resp := newSessionResponse(session, false, time.Now())
	if fromFallback {
		resp.Warning = stringPtr(fallbackWarning)
	}
	return resp, nil
}

func isKnownSubject(subject models.Subject) bool {
	for _, known := range models.Subjects {
		if known == subject {
			return true
		}
	}
	return false
}
