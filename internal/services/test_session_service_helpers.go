package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/evaluator"
	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

const (
	terminatedMessage = "Test terminated because you navigated away or refreshed the page."
	fallbackWarning   = "AI question generation failed, using fallback questions."
)

// ===== LOADING AND GUARDS =====

func (s *testSessionService) lockSession(ctx context.Context, tx *gorm.DB, sessionID uint) (*models.TestSession, error) {
	session, err := s.repo.TestSession().GetByIDForUpdate(ctx, tx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get test session: %w", err)
	}
	return session, nil
}

func checkOwner(session *models.TestSession, userID, action string) error {
	if !session.IsOwnedBy(userID) {
		return NewPermissionError(userID, session.ID, "test session", action, "not owned by user")
	}
	return nil
}

// expire flips an overdue session to expired inside tx
func (s *testSessionService) expire(ctx context.Context, tx *gorm.DB, session *models.TestSession, now time.Time) error {
	session.Status = models.SessionExpired
	session.EndTime = timePtr(now)
	if err := s.repo.TestSession().Update(ctx, tx, session); err != nil {
		return fmt.Errorf("failed to expire test session: %w", err)
	}
	s.logger.InfoContext(ctx, "Test session expired",
		"session_id", session.ID,
		"duration", session.Duration)
	return nil
}

// checkSequence requires the previous round of the same leave request to be
// completed before round N can start
func (s *testSessionService) checkSequence(ctx context.Context, tx *gorm.DB, session *models.TestSession) error {
	if session.RoundNumber <= 1 || session.LeaveRequestID == nil {
		return nil
	}
	prev, err := s.repo.TestSession().GetByLeaveAndRound(ctx, tx, *session.LeaveRequestID, session.RoundNumber-1)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSequenceViolation
		}
		return fmt.Errorf("failed to get previous round: %w", err)
	}
	if prev.Status != models.SessionCompleted {
		return ErrSequenceViolation
	}
	return nil
}

// ===== SCORING =====

// scoreSession grades every embedded question. answers are positional; an
// empty or missing entry falls back to the answer recorded earlier.
func (s *testSessionService) scoreSession(ctx context.Context, session *models.TestSession, answers []string) {
	evalCtx, cancel := context.WithTimeout(ctx, s.submissionTimeout)
	defer cancel()

	score := 0
	questions := session.Questions
	for i := range questions {
		q := &questions[i]
		supplied := ""
		if i < len(answers) {
			supplied = answers[i]
		}

		switch q.Type {
		case models.QuestionMCQ:
			if supplied != "" {
				q.SelectedAnswer = stringPtr(supplied)
			}
			correct := q.MCQ != nil && q.SelectedAnswer != nil && *q.SelectedAnswer == q.MCQ.CorrectAnswer
			q.IsCorrect = boolPtr(correct)
			q.Score = 0
			if correct {
				q.Score = q.Points
			}
		case models.QuestionCoding:
			if supplied != "" {
				q.SubmittedCode = stringPtr(supplied)
			}
			q.Score, q.Passed, q.Failed = 0, 0, 0
			if q.Answered() && q.Coding != nil {
				result := s.evaluator.Evaluate(evalCtx, *q.SubmittedCode, q.Coding.TestCases)
				q.Passed, q.Failed = result.Passed, result.Failed
				q.Score = evaluator.Score(q.Points, result)
			}
			q.IsCorrect = boolPtr(q.Passed > 0 && q.Failed == 0)
		}
		score += q.Score
	}

	session.Questions = questions
	session.TotalPoints = session.SumPoints()
	session.Score = score
	session.Percentage = models.Percentage(score, session.TotalPoints)
}

// mergeAntiCheat folds a client snapshot into the server-side counters.
// Counters keep the larger value and unseen log entries are appended.
func mergeAntiCheat(session *models.TestSession, snapshot *validator.AntiCheatSnapshot) {
	if snapshot == nil {
		return
	}
	session.TabSwitches = max(session.TabSwitches, snapshot.TabSwitches)
	session.CopyAttempts = max(session.CopyAttempts, snapshot.CopyAttempts)

	seen := make(map[string]bool, len(session.SuspiciousLogs))
	for _, entry := range session.SuspiciousLogs {
		seen[entry] = true
	}
	for _, entry := range snapshot.SuspiciousActivities {
		if entry != "" && !seen[entry] {
			session.SuspiciousLogs = append(session.SuspiciousLogs, entry)
			seen[entry] = true
		}
	}
}

func newSubmitResult(session *models.TestSession) *SubmitResult {
	return &SubmitResult{
		SessionID:   session.ID,
		Status:      session.Status,
		Score:       session.Score,
		TotalPoints: session.TotalPoints,
		Percentage:  session.Percentage,
	}
}

// ===== SESSION CONSTRUCTION =====

// newSessionQuestions embeds questions with ids that stay fixed for the life
// of the session
func newSessionQuestions(questions []models.Question) []models.SessionQuestion {
	embedded := make([]models.SessionQuestion, 0, len(questions))
	for _, q := range questions {
		embedded = append(embedded, models.SessionQuestion{
			ID:       uuid.NewString(),
			Question: q,
		})
	}
	return embedded
}

func newRoundSession(userID string, leaveID *uint, testType models.QuestionType, round, duration int, topic, difficulty string, questions []models.Question) *models.TestSession {
	session := &models.TestSession{
		UserID:         stringPtr(userID),
		LeaveRequestID: leaveID,
		TestType:       testType,
		RoundNumber:    round,
		Topic:          topic,
		Difficulty:     difficulty,
		Questions:      newSessionQuestions(questions),
		Duration:       duration,
		Status:         models.SessionNotStarted,
	}
	session.TotalPoints = session.SumPoints()
	return session
}

// ===== RESPONSE BUILDING =====

// newSessionResponse renders a session for a client. Correct answers, hidden
// test cases and the anti-cheat log are included only when reveal is set;
// per-question results appear once the session is terminal.
func newSessionResponse(session *models.TestSession, reveal bool, now time.Time) *TestSessionResponse {
	terminal := session.Status.IsTerminal()

	resp := &TestSessionResponse{
		ID:             session.ID,
		UserID:         session.UserID,
		LeaveRequestID: session.LeaveRequestID,
		TestType:       session.TestType,
		RoundNumber:    session.RoundNumber,
		Topic:          session.Topic,
		Difficulty:     session.Difficulty,
		Status:         session.Status,
		Duration:       session.Duration,
		StartTime:      session.StartTime,
		EndTime:        session.EndTime,
		SubmittedAt:    session.SubmittedAt,
		TotalPoints:    session.TotalPoints,
		TabSwitches:    session.TabSwitches,
		CopyAttempts:   session.CopyAttempts,
		Questions:      make([]SessionQuestionView, 0, len(session.Questions)),
	}

	if session.Status == models.SessionInProgress {
		remaining := time.Duration(session.Duration)*time.Minute - session.Elapsed(now)
		resp.TimeRemaining = max(0, int(remaining.Seconds()))
	}
	if terminal {
		resp.Score = intPtr(session.Score)
		resp.Percentage = float64Ptr(session.Percentage)
	}
	if reveal {
		resp.SuspiciousLogs = session.SuspiciousLogs
	}

	for i := range session.Questions {
		resp.Questions = append(resp.Questions, newQuestionView(&session.Questions[i], reveal, terminal))
	}
	return resp
}

func newQuestionView(q *models.SessionQuestion, reveal, terminal bool) SessionQuestionView {
	view := SessionQuestionView{
		ID:             q.ID,
		Type:           q.Type,
		Question:       q.Prompt,
		Points:         q.Points,
		SelectedAnswer: q.SelectedAnswer,
		SubmittedCode:  q.SubmittedCode,
	}

	switch {
	case q.MCQ != nil:
		view.Options = append([]string(nil), q.MCQ.Options...)
		if reveal {
			view.CorrectAnswer = stringPtr(q.MCQ.CorrectAnswer)
		}
	case q.Coding != nil:
		view.CodeTemplate = q.Coding.CodeTemplate
		view.Constraints = q.Coding.Constraints
		for _, tc := range q.Coding.TestCases {
			if tc.Hidden && !reveal {
				continue
			}
			view.TestCases = append(view.TestCases, tc)
		}
	}

	if reveal {
		view.Explanation = q.Explanation
	}
	if terminal || reveal {
		view.IsCorrect = q.IsCorrect
		view.Score = intPtr(q.Score)
		if q.Type == models.QuestionCoding {
			view.Passed = intPtr(q.Passed)
			view.Failed = intPtr(q.Failed)
		}
	}
	return view
}

// ===== SIDE EFFECTS AFTER COMMIT =====

func (s *testSessionService) afterSessionWrite(ctx context.Context, session *models.TestSession) {
	cache.InvalidateSessionCache(ctx, s.repo.Cache(), session.ID, session.LeaveRequestID)
}

func (s *testSessionService) publishSubmitted(ctx context.Context, session *models.TestSession, terminated bool) {
	publishEvent(ctx, s.publisher, s.logger, events.EventTestSessionSubmitted, events.TestSessionSubmittedEvent{
		SessionID:      session.ID,
		UserID:         session.UserID,
		LeaveRequestID: session.LeaveRequestID,
		RoundNumber:    session.RoundNumber,
		Score:          session.Score,
		TotalPoints:    session.TotalPoints,
		Percentage:     session.Percentage,
		Terminated:     terminated,
	})
}

// checkRounds asks the leave workflow to resolve the parent request. Failures
// are logged; the next submit or an admin review resolves the request again.
func (s *testSessionService) checkRounds(ctx context.Context, session *models.TestSession) {
	if session.LeaveRequestID == nil || s.rounds == nil {
		return
	}
	if _, err := s.rounds.CheckRoundCompletion(ctx, *session.LeaveRequestID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to check round completion",
			"session_id", session.ID,
			"leave_request_id", *session.LeaveRequestID,
			"error", err)
	}
}
