package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/questionsource"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

type questionBankService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	source    QuestionSource
}

func NewQuestionBankService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, source QuestionSource) QuestionBankService {
	return &questionBankService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		source:    source,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionBankService) Create(ctx context.Context, req *CreateBankQuestionRequest, creatorID string) (*models.BankQuestion, error) {
	s.logger.InfoContext(ctx, "Creating bank question",
		"creator_id", creatorID,
		"type", req.Type,
		"subject", req.Subject)

	if errs := s.validator.Business().ValidateBankQuestion(req); len(errs) > 0 {
		return nil, errs
	}

	content := buildQuestionContent(req.Type, req.Prompt, req.Points, req.Explanation,
		req.Options, req.CorrectAnswer, req.CodeTemplate, req.TestCases, req.Constraints)
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	question := &models.BankQuestion{
		Type:       req.Type,
		Subject:    req.Subject,
		Difficulty: req.Difficulty,
		Content:    datatypes.NewJSONType(content),
		Tags:       datatypes.JSONSlice[string](req.Tags),
		IsActive:   true,
		CreatedBy:  creatorID,
	}

	if err := s.repo.BankQuestion().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create bank question: %w", err)
	}

	s.logger.InfoContext(ctx, "Bank question created successfully", "question_id", question.ID)
	return question, nil
}

func (s *questionBankService) Update(ctx context.Context, id uint, req *UpdateBankQuestionRequest, userID string) (*models.BankQuestion, error) {
	s.logger.InfoContext(ctx, "Updating bank question",
		"question_id", id,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var question *models.BankQuestion
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		question, err = s.repo.BankQuestion().GetByID(ctx, tx, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrBankQuestionNotFound
			}
			return fmt.Errorf("failed to get bank question: %w", err)
		}

		if req.Subject != nil {
			question.Subject = *req.Subject
		}
		if req.Difficulty != nil {
			question.Difficulty = *req.Difficulty
		}
		if req.Tags != nil {
			question.Tags = datatypes.JSONSlice[string](req.Tags)
		}
		if req.IsActive != nil {
			question.IsActive = *req.IsActive
		}

		content := applyContentUpdate(question.Content.Data(), req)
		content.Type = question.Type
		if err := content.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		question.Content = datatypes.NewJSONType(content)

		if err := s.repo.BankQuestion().Update(ctx, tx, question); err != nil {
			return fmt.Errorf("failed to update bank question: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateQuestionCache(ctx, s.repo.Cache(), id)
	s.logger.InfoContext(ctx, "Bank question updated successfully", "question_id", id)
	return question, nil
}

// Deactivate hides a question from future draws. Sessions that already embed
// it keep their copy.
func (s *questionBankService) Deactivate(ctx context.Context, id uint, userID string) error {
	s.logger.InfoContext(ctx, "Deactivating bank question",
		"question_id", id,
		"user_id", userID)

	question, err := s.repo.BankQuestion().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrBankQuestionNotFound
		}
		return fmt.Errorf("failed to get bank question: %w", err)
	}
	if !question.IsActive {
		return nil
	}

	question.IsActive = false
	if err := s.repo.BankQuestion().Update(ctx, nil, question); err != nil {
		return fmt.Errorf("failed to deactivate bank question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, s.repo.Cache(), id)
	s.logger.InfoContext(ctx, "Bank question deactivated successfully", "question_id", id)
	return nil
}

func (s *questionBankService) GetByID(ctx context.Context, id uint) (*models.BankQuestion, error) {
	question, err := s.repo.BankQuestion().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrBankQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get bank question: %w", err)
	}
	return question, nil
}

func (s *questionBankService) List(ctx context.Context, filters repositories.BankQuestionFilters) (*BankQuestionListResponse, error) {
	questions, total, err := s.repo.BankQuestion().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank questions: %w", err)
	}

	page, size, _ := pageInfo(filters.Limit, filters.Offset, total)
	return &BankQuestionListResponse{
		Questions: questions,
		Total:     total,
		Page:      page,
		Size:      size,
	}, nil
}

// ===== DRAWING =====

func (s *questionBankService) Draw(ctx context.Context, subject *models.Subject, questionType models.QuestionType, difficulty models.DifficultyLevel, count int) ([]models.Question, bool, error) {
	if count <= 0 {
		return nil, false, nil
	}

	var drawn []*models.BankQuestion
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		drawn, err = s.repo.BankQuestion().GetRandom(ctx, tx, repositories.RandomQuestionFilters{
			Subject:    subject,
			Type:       questionType,
			Difficulty: &difficulty,
			Count:      count,
		})
		if err != nil {
			return fmt.Errorf("failed to draw bank questions: %w", err)
		}

		ids := make([]uint, 0, len(drawn))
		for _, q := range drawn {
			ids = append(ids, q.ID)
		}
		return s.repo.BankQuestion().IncrementUsage(ctx, tx, ids)
	})
	if err != nil {
		return nil, false, err
	}

	questions := make([]models.Question, 0, count)
	for _, q := range drawn {
		questions = append(questions, q.Question())
	}

	missing := count - len(questions)
	if missing == 0 || s.source == nil {
		return questions, false, nil
	}

	topic := string(models.SubjectGeneral)
	if subject != nil {
		topic = string(*subject)
	}

	s.logger.InfoContext(ctx, "Question bank short, topping up from question source",
		"drawn", len(drawn),
		"missing", missing,
		"type", questionType)

	batch := s.source.Fetch(ctx, questionsource.Request{
		Topic:      topic,
		Type:       questionType,
		Difficulty: difficulty,
		Count:      missing,
	})
	questions = append(questions, batch.Questions...)
	return questions, batch.FromFallback, nil
}

// ===== CONTENT HELPERS =====

func buildQuestionContent(questionType models.QuestionType, prompt string, points int, explanation string,
	options []string, correct, template string, cases []validator.TestCaseRequest, constraints string) models.Question {
	q := models.Question{
		Type:        questionType,
		Prompt:      prompt,
		Points:      points,
		Explanation: explanation,
	}
	switch questionType {
	case models.QuestionMCQ:
		q.MCQ = &models.MCQContent{
			Options:       append([]string(nil), options...),
			CorrectAnswer: correct,
		}
	case models.QuestionCoding:
		q.Coding = &models.CodingContent{
			CodeTemplate: template,
			TestCases:    toTestCases(cases),
			Constraints:  constraints,
		}
	}
	return q
}

// applyContentUpdate works on copies of the variant content so a rejected
// update leaves the loaded question untouched
func applyContentUpdate(q models.Question, req *UpdateBankQuestionRequest) models.Question {
	if req.Prompt != nil {
		q.Prompt = *req.Prompt
	}
	if req.Points != nil {
		q.Points = *req.Points
	}
	if req.Explanation != nil {
		q.Explanation = *req.Explanation
	}

	if q.MCQ != nil {
		mcq := *q.MCQ
		q.MCQ = &mcq
		if req.Options != nil {
			q.MCQ.Options = append([]string(nil), req.Options...)
		}
		if req.CorrectAnswer != nil {
			q.MCQ.CorrectAnswer = *req.CorrectAnswer
		}
	}
	if q.Coding != nil {
		coding := *q.Coding
		q.Coding = &coding
		if req.CodeTemplate != nil {
			q.Coding.CodeTemplate = *req.CodeTemplate
		}
		if req.TestCases != nil {
			q.Coding.TestCases = toTestCases(req.TestCases)
		}
		if req.Constraints != nil {
			q.Coding.Constraints = *req.Constraints
		}
	}
	return q
}

func toTestCases(cases []validator.TestCaseRequest) []models.TestCase {
	result := make([]models.TestCase, 0, len(cases))
	for _, tc := range cases {
		result = append(result, models.TestCase{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			Hidden:         tc.Hidden,
		})
	}
	return result
}
