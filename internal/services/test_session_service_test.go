package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/leave-assessment-service/internal/evaluator"
	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

const testStudent = "student-1"

type sessionFixture struct {
	repo      *MockRepository
	eval      *MockEvaluator
	source    *MockQuestionSource
	publisher *events.MockEventPublisher
	svc       TestSessionService
}

func newSessionFixture() *sessionFixture {
	repo := NewMockRepository()
	logger := newTestLogger()
	publisher := events.NewMockEventPublisher(nil)
	eval := &MockEvaluator{results: map[string]evaluator.Result{}}
	source := &MockQuestionSource{mcq: mcqQuestions(10, 1), coding: codingQuestions(2, 10)}

	svc := NewTestSessionService(repo, logger, validator.New(), TestSessionDeps{
		Source:    source,
		Bank:      NewQuestionBankService(repo, logger, validator.New(), source),
		Evaluator: eval,
		Rounds:    NewRoundCompletionChecker(repo, publisher, logger),
		Publisher: publisher,
	})

	return &sessionFixture{repo: repo, eval: eval, source: source, publisher: publisher, svc: svc}
}

func (f *sessionFixture) seed(testType models.QuestionType, questions []models.Question) *models.TestSession {
	session := newRoundSession(testStudent, nil, testType, 1, 20, "General", "easy", questions)
	f.repo.putSession(session)
	return session
}

func TestTestSessionService_MCQScoring(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionMCQ, mcqQuestions(2, 5))

	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := f.svc.Submit(ctx, session.ID, testStudent, &SubmitTestRequest{Answers: []string{"A", "B"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Score != 5 || result.TotalPoints != 10 || result.Percentage != 50 {
		t.Errorf("expected 5/10 (50%%), got %d/%d (%.1f%%)", result.Score, result.TotalPoints, result.Percentage)
	}

	stored := f.repo.session(session.ID)
	if stored.Status != models.SessionCompleted || stored.SubmittedAt == nil {
		t.Errorf("expected completed with submit time, got %s", stored.Status)
	}
	if q := stored.Questions[1]; q.IsCorrect == nil || *q.IsCorrect {
		t.Error("second answer should be marked incorrect")
	}
}

func TestTestSessionService_SubmitFallsBackToRecordedAnswers(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionMCQ, mcqQuestions(2, 5))

	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, q := range session.Questions {
		if err := f.svc.RecordAnswer(ctx, session.ID, q.ID, testStudent, AnswerPayload{Kind: models.QuestionMCQ, Answer: "A"}); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	result, err := f.svc.Submit(ctx, session.ID, testStudent, &SubmitTestRequest{Answers: []string{"", "C"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 5 {
		t.Errorf("expected recorded answer for position 0 and supplied for 1, got score %d", result.Score)
	}
}

func TestTestSessionService_CodingScoring(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	f.eval.results["solution"] = evaluator.Result{Passed: 2, Failed: 1}
	session := f.seed(models.QuestionCoding, codingQuestions(2, 10))

	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := f.svc.RecordAnswer(ctx, session.ID, session.Questions[0].ID, testStudent, AnswerPayload{Kind: models.QuestionCoding, Code: "solution"})
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}

	result, err := f.svc.Submit(ctx, session.ID, testStudent, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// round(10 * 2/3) for the answered question, nothing for the other
	if result.Score != 7 || result.TotalPoints != 20 || result.Percentage != 35 {
		t.Errorf("expected 7/20 (35%%), got %d/%d (%.1f%%)", result.Score, result.TotalPoints, result.Percentage)
	}
	if f.eval.Calls() != 1 {
		t.Errorf("unanswered question must not be evaluated, got %d calls", f.eval.Calls())
	}

	stored := f.repo.session(session.ID)
	if q := stored.Questions[0]; q.Passed != 2 || q.Failed != 1 || q.IsCorrect == nil || *q.IsCorrect {
		t.Errorf("unexpected per-question result: %+v", q)
	}
}

func TestTestSessionService_SubmitIsIdempotent(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	f.eval.results["solution"] = evaluator.Result{Passed: 1, Failed: 0}
	session := f.seed(models.QuestionCoding, codingQuestions(1, 10))

	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := f.svc.Submit(ctx, session.ID, testStudent, &SubmitTestRequest{Answers: []string{"solution"}})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.svc.Submit(ctx, session.ID, testStudent, &SubmitTestRequest{Answers: []string{"other"}})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if *first != *second {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
	if f.eval.Calls() != 1 {
		t.Errorf("expected a single evaluation, got %d", f.eval.Calls())
	}
	if n := len(f.publisher.EventsOfType(events.EventTestSessionSubmitted)); n != 1 {
		t.Errorf("expected one submitted event, got %d", n)
	}
}

func TestTestSessionService_StartResumeKeepsStartTime(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionMCQ, mcqQuestions(1, 1))

	first, err := f.svc.Start(ctx, session.ID, testStudent)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := f.svc.Start(ctx, session.ID, testStudent)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	if first.StartTime == nil || second.StartTime == nil || !first.StartTime.Equal(*second.StartTime) {
		t.Errorf("resume must keep the start time, got %v and %v", first.StartTime, second.StartTime)
	}
	if second.TimeRemaining <= 0 {
		t.Errorf("expected time remaining, got %d", second.TimeRemaining)
	}
	for _, q := range second.Questions {
		if q.CorrectAnswer != nil {
			t.Error("student view must not expose correct answers")
		}
	}
}

func TestTestSessionService_LazyExpiry(t *testing.T) {
	tests := []struct {
		name string
		act  func(f *sessionFixture, s *models.TestSession) error
	}{
		{
			name: "answer",
			act: func(f *sessionFixture, s *models.TestSession) error {
				return f.svc.RecordAnswer(context.Background(), s.ID, s.Questions[0].ID, testStudent, AnswerPayload{Kind: models.QuestionMCQ, Answer: "A"})
			},
		},
		{
			name: "resume",
			act: func(f *sessionFixture, s *models.TestSession) error {
				_, err := f.svc.Start(context.Background(), s.ID, testStudent)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			session := newRoundSession(testStudent, nil, models.QuestionMCQ, 1, 20, "", "", mcqQuestions(1, 1))
			session.Status = models.SessionInProgress
			session.StartTime = timePtr(time.Now().Add(-25 * time.Minute))
			f.repo.putSession(session)

			err := tt.act(f, session)
			if !errors.Is(err, ErrSessionExpired) {
				t.Fatalf("expected ErrSessionExpired, got %v", err)
			}

			stored := f.repo.session(session.ID)
			if stored.Status != models.SessionExpired {
				t.Errorf("expected expired status, got %s", stored.Status)
			}
			if stored.Questions[0].SelectedAnswer != nil {
				t.Error("late answer must be discarded")
			}
		})
	}
}

func TestTestSessionService_StartGuards(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	leaveID := f.repo.putLeave(&models.LeaveRequest{StudentID: testStudent, Status: models.LeaveTesting})
	round1 := newRoundSession(testStudent, &leaveID, models.QuestionMCQ, 1, 20, "", "", mcqQuestions(1, 1))
	round2 := newRoundSession(testStudent, &leaveID, models.QuestionCoding, 2, 45, "", "", codingQuestions(1, 10))
	f.repo.putSession(round1)
	f.repo.putSession(round2)

	completed := newRoundSession(testStudent, nil, models.QuestionMCQ, 1, 20, "", "", mcqQuestions(1, 1))
	completed.Status = models.SessionCompleted
	f.repo.putSession(completed)

	tests := []struct {
		name      string
		sessionID uint
		userID    string
		wantErr   error
	}{
		{"not found", 9999, testStudent, ErrSessionNotFound},
		{"other student", round1.ID, "intruder", ErrForbidden},
		{"previous round pending", round2.ID, testStudent, ErrSequenceViolation},
		{"already completed", completed.ID, testStudent, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Start(ctx, tt.sessionID, tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTestSessionService_RecordAnswerValidation(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionMCQ, mcqQuestions(1, 1))

	err := f.svc.RecordAnswer(ctx, session.ID, session.Questions[0].ID, testStudent, AnswerPayload{Kind: models.QuestionMCQ, Answer: "A"})
	if !errors.Is(err, ErrInvalidState) || !errors.Is(err, ErrSessionNotStarted) {
		t.Errorf("answer before start: expected not-started state error, got %v", err)
	}

	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}

	err = f.svc.RecordAnswer(ctx, session.ID, session.Questions[0].ID, testStudent, AnswerPayload{Kind: models.QuestionCoding, Code: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("wrong kind: expected ErrInvalidInput, got %v", err)
	}

	err = f.svc.RecordAnswer(ctx, session.ID, "missing", testStudent, AnswerPayload{Kind: models.QuestionMCQ, Answer: "A"})
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("unknown question: expected ErrQuestionNotFound, got %v", err)
	}
}

func TestTestSessionService_RecordAnswerAfterEnd(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status models.SessionStatus
		want   error
	}{
		{"completed", models.SessionCompleted, ErrSessionCompleted},
		{"expired", models.SessionExpired, ErrSessionEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			session := newRoundSession(testStudent, nil, models.QuestionMCQ, 1, 20, "General", "easy", mcqQuestions(1, 1))
			session.Status = tt.status
			f.repo.putSession(session)

			err := f.svc.RecordAnswer(ctx, session.ID, session.Questions[0].ID, testStudent, AnswerPayload{Kind: models.QuestionMCQ, Answer: "A"})
			if !errors.Is(err, ErrInvalidState) || !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if errors.Is(err, ErrSessionNotStarted) {
				t.Errorf("terminal session reported as not started: %v", err)
			}
		})
	}
}

func TestTestSessionService_AntiCheat(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionMCQ, mcqQuestions(1, 1))

	if err := f.svc.ReportAntiCheat(ctx, session.ID, testStudent, models.AntiCheatTabSwitch, "left the page"); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := f.svc.ReportAntiCheat(ctx, session.ID, testStudent, models.AntiCheatTabSwitch, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := f.svc.ReportAntiCheat(ctx, session.ID, testStudent, models.AntiCheatCopyAttempt, "ctrl+c"); err != nil {
		t.Fatalf("report: %v", err)
	}

	stored := f.repo.session(session.ID)
	if stored.TabSwitches != 2 || stored.CopyAttempts != 1 {
		t.Errorf("expected 2 tab switches and 1 copy attempt, got %d and %d", stored.TabSwitches, stored.CopyAttempts)
	}
	if len(stored.SuspiciousLogs) != 2 || !strings.HasPrefix(stored.SuspiciousLogs[0], "tab-switch: left the page at ") {
		t.Errorf("unexpected log: %v", stored.SuspiciousLogs)
	}

	// client snapshot never lowers the server counters
	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := f.svc.Submit(ctx, session.ID, testStudent, &SubmitTestRequest{
		AntiCheatData: &validator.AntiCheatSnapshot{TabSwitches: 1, CopyAttempts: 4, SuspiciousActivities: []string{"devtools opened"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	stored = f.repo.session(session.ID)
	if stored.TabSwitches != 2 || stored.CopyAttempts != 4 || len(stored.SuspiciousLogs) != 3 {
		t.Errorf("unexpected merged counters: tab=%d copy=%d logs=%v", stored.TabSwitches, stored.CopyAttempts, stored.SuspiciousLogs)
	}
}

func TestTestSessionService_AbandonScoresRecordedAnswers(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionMCQ, mcqQuestions(2, 5))

	if _, err := f.svc.Start(ctx, session.ID, testStudent); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, session.ID, session.Questions[0].ID, testStudent, AnswerPayload{Kind: models.QuestionMCQ, Answer: "A"}); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	resp, err := f.svc.Abandon(ctx, session.ID, testStudent)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if !resp.Terminated || resp.Message != terminatedMessage {
		t.Errorf("expected terminated response, got %+v", resp)
	}
	if resp.Score == nil || *resp.Score != 5 || resp.Status != models.SessionCompleted {
		t.Errorf("expected completed with score 5, got %v %s", resp.Score, resp.Status)
	}

	submitted := f.publisher.EventsOfType(events.EventTestSessionSubmitted)
	if len(submitted) != 1 || !submitted[0].Data.(events.TestSessionSubmittedEvent).Terminated {
		t.Errorf("expected one terminated submission event, got %v", submitted)
	}
}

func TestTestSessionService_GetRevealsOnlyToAdmin(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.seed(models.QuestionCoding, codingQuestions(1, 10))

	student, err := f.svc.Get(ctx, session.ID, testStudent, models.RoleStudent)
	if err != nil {
		t.Fatalf("student get: %v", err)
	}
	if n := len(student.Questions[0].TestCases); n != 1 {
		t.Errorf("student should see 1 visible test case, got %d", n)
	}

	admin, err := f.svc.Get(ctx, session.ID, "admin-1", models.RoleAdmin)
	if err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if n := len(admin.Questions[0].TestCases); n != 2 {
		t.Errorf("admin should see all test cases, got %d", n)
	}

	if _, err := f.svc.Get(ctx, session.ID, "intruder", models.RoleStudent); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestTestSessionService_CreateAdHoc(t *testing.T) {
	tests := []struct {
		name        string
		fallback    bool
		wantWarning bool
	}{
		{"generated", false, false},
		{"fallback", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			f.source.fallbackFor = map[models.QuestionType]bool{models.QuestionMCQ: tt.fallback}

			resp, err := f.svc.CreateAdHoc(context.Background(), testStudent, &AdHocSessionRequest{
				Topic:        "Go",
				Type:         models.QuestionMCQ,
				NumQuestions: 3,
				Duration:     15,
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			if resp.Status != models.SessionNotStarted || resp.RoundNumber != 1 || resp.LeaveRequestID != nil {
				t.Errorf("unexpected session: %+v", resp)
			}
			if len(resp.Questions) != 3 || resp.TotalPoints != 3 {
				t.Errorf("expected 3 questions worth 3 points, got %d / %d", len(resp.Questions), resp.TotalPoints)
			}
			if (resp.Warning != nil) != tt.wantWarning {
				t.Errorf("warning = %v, want present=%v", resp.Warning, tt.wantWarning)
			}
		})
	}
}

func TestTestSessionService_CreateAdHocRejectsInvalidRequest(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.CreateAdHoc(context.Background(), testStudent, &AdHocSessionRequest{
		Topic:        "Go",
		Type:         models.QuestionMCQ,
		NumQuestions: 50,
		Duration:     15,
	})

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
}
