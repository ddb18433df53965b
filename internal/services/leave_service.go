package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/events"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/questionsource"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

const (
	DefaultMCQCount          = 10
	DefaultCodingCount       = 2
	DefaultLeaveTopic        = "General"
	DefaultLeaveDifficulty   = models.DifficultyMixed
	unexpectedSessionMessage = "no pending test for this leave request"
)

// LeaveOptions tunes the rounds attached to every new leave request
type LeaveOptions struct {
	PassingThreshold  float64
	MCQCount          int
	CodingCount       int
	DefaultTopic      string
	DefaultDifficulty models.DifficultyLevel
}

func (o LeaveOptions) withDefaults() LeaveOptions {
	if o.PassingThreshold <= 0 {
		o.PassingThreshold = models.DefaultPassingThreshold
	}
	if o.MCQCount <= 0 {
		o.MCQCount = DefaultMCQCount
	}
	if o.CodingCount <= 0 {
		o.CodingCount = DefaultCodingCount
	}
	if o.DefaultTopic == "" {
		o.DefaultTopic = DefaultLeaveTopic
	}
	if o.DefaultDifficulty == "" {
		o.DefaultDifficulty = DefaultLeaveDifficulty
	}
	return o
}

// LeaveDeps are the collaborators of the leave service
type LeaveDeps struct {
	Source    QuestionSource
	Sessions  TestSessionService
	Rounds    RoundCompletionChecker
	Publisher events.EventPublisher
	Options   LeaveOptions
}

type leaveService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator

	source    QuestionSource
	sessions  TestSessionService
	rounds    RoundCompletionChecker
	publisher events.EventPublisher
	options   LeaveOptions
}

func NewLeaveService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps LeaveDeps) LeaveService {
	return &leaveService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		source:    deps.Source,
		sessions:  deps.Sessions,
		rounds:    deps.Rounds,
		publisher: deps.Publisher,
		options:   deps.Options.withDefaults(),
	}
}

// ===== WORKFLOW =====

func (s *leaveService) Create(ctx context.Context, studentID string, req *CreateLeaveRequest) (*LeaveResponse, error) {
	s.logger.InfoContext(ctx, "Starting leave request creation",
		"student_id", studentID,
		"leave_type", req.LeaveType)

	if errs := s.validator.Business().ValidateLeaveCreate(req); len(errs) > 0 {
		return nil, errs
	}

	start, end := models.TruncateDay(req.StartDate.Time), models.TruncateDay(req.EndDate.Time)

	overlap, err := s.repo.LeaveRequest().HasOverlap(ctx, nil, studentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check leave overlap: %w", err)
	}
	if overlap {
		return nil, ErrLeaveOverlap
	}

	topic := req.Topic
	if topic == "" {
		topic = s.options.DefaultTopic
	}
	difficulty := models.DifficultyLevel(req.Difficulty)
	if difficulty == "" {
		difficulty = s.options.DefaultDifficulty
	}

	mcq, coding := s.fetchRounds(ctx, topic, difficulty)
	if len(mcq.Questions) == 0 || len(coding.Questions) == 0 {
		return nil, NewBusinessRuleError("questions_available", "no questions available for the leave test", map[string]interface{}{
			"topic":  topic,
			"mcq":    len(mcq.Questions),
			"coding": len(coding.Questions),
		})
	}

	leave := &models.LeaveRequest{
		StudentID:        studentID,
		LeaveType:        req.LeaveType,
		StartDate:        start,
		EndDate:          end,
		Reason:           req.Reason,
		Status:           models.LeaveTesting,
		PassingThreshold: s.options.PassingThreshold,
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		overlap, err := s.repo.LeaveRequest().HasOverlap(ctx, tx, studentID, start, end)
		if err != nil {
			return fmt.Errorf("failed to check leave overlap: %w", err)
		}
		if overlap {
			return ErrLeaveOverlap
		}

		if err := s.repo.LeaveRequest().Create(ctx, tx, leave); err != nil {
			return fmt.Errorf("failed to create leave request: %w", err)
		}

		rounds := []*models.TestSession{
			newRoundSession(studentID, &leave.ID, models.QuestionMCQ, 1, models.MCQRoundDuration, topic, string(difficulty), mcq.Questions),
			newRoundSession(studentID, &leave.ID, models.QuestionCoding, 2, models.CodingRoundDuration, topic, string(difficulty), coding.Questions),
		}
		for _, round := range rounds {
			if err := s.repo.TestSession().Create(ctx, tx, round); err != nil {
				return fmt.Errorf("failed to create test round %d: %w", round.RoundNumber, err)
			}
			leave.Rounds = append(leave.Rounds, *round)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateLeaveCache(ctx, s.repo.Cache(), leave.ID, studentID)

	var warning *string
	if mcq.FromFallback || coding.FromFallback {
		warning = stringPtr(fallbackWarning)
	}

	publishEvent(ctx, s.publisher, s.logger, events.EventLeaveCreated, events.LeaveEvent{
		LeaveRequestID: leave.ID,
		StudentID:      studentID,
		Status:         string(leave.Status),
		Warning:        warning,
	})

	s.logger.InfoContext(ctx, "Leave request created successfully",
		"leave_request_id", leave.ID,
		"mcq_fallback", mcq.FromFallback,
		"coding_fallback", coding.FromFallback)

	resp := newLeaveResponse(leave)
	resp.Warning = warning
	return resp, nil
}

// fetchRounds requests both question batches at once. The source never
// fails, so the group only bounds the two calls by the request context.
func (s *leaveService) fetchRounds(ctx context.Context, topic string, difficulty models.DifficultyLevel) (mcq, coding questionsource.Batch) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mcq = s.source.Fetch(gctx, questionsource.Request{
			Topic:      topic,
			Type:       models.QuestionMCQ,
			Difficulty: difficulty,
			Count:      s.options.MCQCount,
		})
		return nil
	})
	g.Go(func() error {
		coding = s.source.Fetch(gctx, questionsource.Request{
			Topic:      topic,
			Type:       models.QuestionCoding,
			Difficulty: difficulty,
			Count:      s.options.CodingCount,
		})
		return nil
	})
	_ = g.Wait()
	return mcq, coding
}

func (s *leaveService) CheckRoundCompletion(ctx context.Context, leaveID uint) (*LeaveResponse, error) {
	leave, err := s.rounds.CheckRoundCompletion(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	return newLeaveResponse(leave), nil
}

// Review records an admin decision. An explicit status wins over a manual
// override, which wins over the passing threshold. The score is recomputed
// from completed rounds every time.
func (s *leaveService) Review(ctx context.Context, leaveID uint, reviewerID string, req *ReviewLeaveRequest) (*LeaveResponse, error) {
	s.logger.InfoContext(ctx, "Reviewing leave request",
		"leave_request_id", leaveID,
		"reviewer_id", reviewerID,
		"status", req.Status,
		"manual_override", req.ManualOverride)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var leave *models.LeaveRequest
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		leave, err = s.repo.LeaveRequest().GetByIDForUpdate(ctx, tx, leaveID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrLeaveNotFound
			}
			return fmt.Errorf("failed to get leave request: %w", err)
		}

		overall := leave.AggregateScore()
		leave.OverallScore = overall

		now := time.Now()
		leave.AdminReview = models.AdminReview{
			ReviewedBy:     stringPtr(reviewerID),
			ReviewedAt:     &now,
			ManualOverride: req.ManualOverride,
		}
		if req.Comments != "" {
			leave.AdminReview.Comments = stringPtr(req.Comments)
		}

		switch {
		case req.Status == models.LeaveApproved || req.Status == models.LeaveRejected:
			leave.Status = req.Status
			leave.AutoApproved = false
		case req.ManualOverride:
			leave.Status = models.LeaveApproved
			leave.AutoApproved = false
		default:
			leave.Resolve(overall)
		}

		if err := s.repo.LeaveRequest().Update(ctx, tx, leave); err != nil {
			return fmt.Errorf("failed to save leave review: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateLeaveCache(ctx, s.repo.Cache(), leave.ID, leave.StudentID)
	publishEvent(ctx, s.publisher, s.logger, events.EventLeaveReviewed, events.LeaveEvent{
		LeaveRequestID: leave.ID,
		StudentID:      leave.StudentID,
		Status:         string(leave.Status),
		OverallScore:   leave.OverallScore,
		AutoApproved:   leave.AutoApproved,
		ReviewedBy:     leave.AdminReview.ReviewedBy,
		Comments:       leave.AdminReview.Comments,
	})

	s.logger.InfoContext(ctx, "Leave request reviewed successfully",
		"leave_request_id", leave.ID,
		"status", leave.Status,
		"overall_score", leave.OverallScore)

	return newLeaveResponse(leave), nil
}

// GetCurrentSession returns the round the student should take next. Reading
// a round that is already in progress means the page was left or reloaded,
// which ends that round.
func (s *leaveService) GetCurrentSession(ctx context.Context, leaveID uint, studentID string) (*TestSessionResponse, error) {
	leave, err := s.repo.LeaveRequest().GetByID(ctx, nil, leaveID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLeaveNotFound
		}
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	if leave.StudentID != studentID {
		return nil, NewPermissionError(studentID, leaveID, "leave request", "view", "not owned by user")
	}

	session, err := s.repo.TestSession().FindActiveForLeave(ctx, nil, leaveID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, unexpectedSessionMessage)
		}
		return nil, fmt.Errorf("failed to find current test session: %w", err)
	}

	if session.Status == models.SessionInProgress {
		s.logger.WarnContext(ctx, "Test session reopened while in progress, terminating",
			"leave_request_id", leaveID,
			"session_id", session.ID)
		return s.sessions.Abandon(ctx, session.ID, studentID)
	}

	return newSessionResponse(session, false, time.Now()), nil
}

// ===== READ OPERATIONS =====

func (s *leaveService) GetByID(ctx context.Context, leaveID uint, userID string, role models.UserRole) (*LeaveResponse, error) {
	leave, err := s.repo.LeaveRequest().GetByID(ctx, nil, leaveID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLeaveNotFound
		}
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}

	if role != models.RoleAdmin && leave.StudentID != userID {
		return nil, NewPermissionError(userID, leaveID, "leave request", "view", "not owned by user")
	}

	resp := newLeaveResponse(leave)
	if role == models.RoleAdmin {
		s.attachStudents(ctx, []*LeaveResponse{resp})
	}
	return resp, nil
}

func (s *leaveService) ListMine(ctx context.Context, studentID string, filters repositories.LeaveFilters) (*LeaveListResponse, error) {
	leaves, total, err := s.repo.LeaveRequest().ListByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	return newLeaveListResponse(leaves, total, filters), nil
}

func (s *leaveService) List(ctx context.Context, filters repositories.LeaveFilters) (*LeaveListResponse, error) {
	leaves, total, err := s.repo.LeaveRequest().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}

	resp := newLeaveListResponse(leaves, total, filters)
	s.attachStudents(ctx, resp.Leaves)
	return resp, nil
}

// attachStudents decorates responses with identity provider profiles. A
// lookup failure leaves the profiles empty.
func (s *leaveService) attachStudents(ctx context.Context, leaves []*LeaveResponse) {
	if len(leaves) == 0 {
		return
	}

	seen := make(map[string]bool, len(leaves))
	ids := make([]string, 0, len(leaves))
	for _, l := range leaves {
		if !seen[l.StudentID] {
			seen[l.StudentID] = true
			ids = append(ids, l.StudentID)
		}
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load student profiles",
			"count", len(ids),
			"error", err)
		return
	}

	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, l := range leaves {
		l.Student = byID[l.StudentID]
	}
}

// ===== RESPONSE BUILDING =====

func newLeaveResponse(leave *models.LeaveRequest) *LeaveResponse {
	resp := &LeaveResponse{
		ID:               leave.ID,
		StudentID:        leave.StudentID,
		LeaveType:        leave.LeaveType,
		StartDate:        models.NewDate(leave.StartDate),
		EndDate:          models.NewDate(leave.EndDate),
		Reason:           leave.Reason,
		Status:           leave.Status,
		OverallScore:     leave.OverallScore,
		PassingThreshold: leave.PassingThreshold,
		AutoApproved:     leave.AutoApproved,
		AdminReview:      leave.AdminReview,
		CreatedAt:        leave.CreatedAt,
		UpdatedAt:        leave.UpdatedAt,
		Rounds:           make([]RoundSummary, 0, len(leave.Rounds)),
		Student:          leave.Student,
	}
	for i := range leave.Rounds {
		resp.Rounds = append(resp.Rounds, newRoundSummary(&leave.Rounds[i]))
	}
	return resp
}

func newRoundSummary(session *models.TestSession) RoundSummary {
	return RoundSummary{
		ID:           session.ID,
		RoundNumber:  session.RoundNumber,
		TestType:     session.TestType,
		Status:       session.Status,
		Duration:     session.Duration,
		TotalPoints:  session.TotalPoints,
		Score:        session.Score,
		Percentage:   session.Percentage,
		StartTime:    session.StartTime,
		SubmittedAt:  session.SubmittedAt,
		TabSwitches:  session.TabSwitches,
		CopyAttempts: session.CopyAttempts,
	}
}

func newLeaveListResponse(leaves []*models.LeaveRequest, total int64, filters repositories.LeaveFilters) *LeaveListResponse {
	page, size, pages := pageInfo(filters.Limit, filters.Offset, total)
	resp := &LeaveListResponse{
		Leaves: make([]*LeaveResponse, 0, len(leaves)),
		Total:  total,
		Page:   page,
		Size:   size,
		Pages:  pages,
	}
	for _, l := range leaves {
		resp.Leaves = append(resp.Leaves, newLeaveResponse(l))
	}
	return resp
}
