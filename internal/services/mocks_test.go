package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/leave-assessment-service/internal/cache"
	"github.com/SAP-F-2025/leave-assessment-service/internal/evaluator"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/questionsource"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockRepository is an in-memory Repository. Stored records are copied on
// the way in and out so services only see what they persisted.
type MockRepository struct {
	mu sync.Mutex

	sessions  map[uint]*models.TestSession
	leaves    map[uint]*models.LeaveRequest
	questions map[uint]*models.BankQuestion
	users     map[string]*models.User
	nextID    uint

	cacheManager *cache.CacheManager
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		sessions:     make(map[uint]*models.TestSession),
		leaves:       make(map[uint]*models.LeaveRequest),
		questions:    make(map[uint]*models.BankQuestion),
		users:        make(map[string]*models.User),
		cacheManager: cache.NewCacheManager(nil),
	}
}

func (m *MockRepository) TestSession() repositories.TestSessionRepository {
	return &mockSessionRepo{m}
}
func (m *MockRepository) LeaveRequest() repositories.LeaveRequestRepository {
	return &mockLeaveRepo{m}
}
func (m *MockRepository) BankQuestion() repositories.BankQuestionRepository {
	return &mockBankRepo{m}
}
func (m *MockRepository) User() repositories.UserRepository { return &mockUserRepo{m} }
func (m *MockRepository) Cache() *cache.CacheManager        { return m.cacheManager }
func (m *MockRepository) Ping(ctx context.Context) error    { return nil }
func (m *MockRepository) Close() error                      { return nil }
func (m *MockRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (m *MockRepository) id() uint {
	m.nextID++
	return m.nextID
}

// session returns the stored copy for assertions
func (m *MockRepository) session(id uint) *models.TestSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return copySession(s)
	}
	return nil
}

func (m *MockRepository) leave(id uint) *models.LeaveRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leaves[id]; ok {
		return m.withRounds(l)
	}
	return nil
}

func (m *MockRepository) putSession(s *models.TestSession) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
	}
	m.sessions[s.ID] = copySession(s)
	return s.ID
}

func (m *MockRepository) putLeave(l *models.LeaveRequest) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == 0 {
		l.ID = m.id()
	}
	stored := *l
	stored.Rounds = nil
	m.leaves[l.ID] = &stored
	return l.ID
}

func (m *MockRepository) withRounds(l *models.LeaveRequest) *models.LeaveRequest {
	out := *l
	out.Rounds = nil
	for _, s := range m.sessions {
		if s.LeaveRequestID != nil && *s.LeaveRequestID == l.ID {
			out.Rounds = append(out.Rounds, *copySession(s))
		}
	}
	sort.Slice(out.Rounds, func(i, j int) bool { return out.Rounds[i].RoundNumber < out.Rounds[j].RoundNumber })
	return &out
}

func copySession(s *models.TestSession) *models.TestSession {
	out := *s
	out.Questions = append(s.Questions[:0:0], s.Questions...)
	out.SuspiciousLogs = append(s.SuspiciousLogs[:0:0], s.SuspiciousLogs...)
	return &out
}

// ===== TEST SESSIONS =====

type mockSessionRepo struct{ m *MockRepository }

func (r *mockSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *models.TestSession) error {
	r.m.putSession(session)
	return nil
}

func (r *mockSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestSession, error) {
	if s := r.m.session(id); s != nil {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSessionRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestSession, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *mockSessionRepo) Update(ctx context.Context, tx *gorm.DB, session *models.TestSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sessions[session.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.sessions[session.ID] = copySession(session)
	return nil
}

func (r *mockSessionRepo) ListByLeave(ctx context.Context, tx *gorm.DB, leaveID uint) ([]*models.TestSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.TestSession
	for _, s := range r.m.sessions {
		if s.LeaveRequestID != nil && *s.LeaveRequestID == leaveID {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *mockSessionRepo) GetByLeaveAndRound(ctx context.Context, tx *gorm.DB, leaveID uint, round int) (*models.TestSession, error) {
	rounds, _ := r.ListByLeave(ctx, tx, leaveID)
	for _, s := range rounds {
		if s.RoundNumber == round {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSessionRepo) FindActiveForLeave(ctx context.Context, tx *gorm.DB, leaveID uint, userID string) (*models.TestSession, error) {
	rounds, _ := r.ListByLeave(ctx, tx, leaveID)
	for _, s := range rounds {
		if !s.Status.IsTerminal() && s.IsOwnedBy(userID) {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSessionRepo) RecordAntiCheat(ctx context.Context, tx *gorm.DB, id uint, kind models.AntiCheatType, entry string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch kind {
	case models.AntiCheatTabSwitch:
		s.TabSwitches++
	case models.AntiCheatCopyAttempt:
		s.CopyAttempts++
	}
	if entry != "" {
		s.SuspiciousLogs = append(s.SuspiciousLogs, entry)
	}
	return nil
}

// ===== LEAVE REQUESTS =====

type mockLeaveRepo struct{ m *MockRepository }

func (r *mockLeaveRepo) Create(ctx context.Context, tx *gorm.DB, leave *models.LeaveRequest) error {
	if leave.EndDate.Before(leave.StartDate) {
		return models.ErrLeaveDateRange
	}
	leave.CreatedAt = time.Now()
	leave.UpdatedAt = leave.CreatedAt
	r.m.putLeave(leave)
	return nil
}

func (r *mockLeaveRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.LeaveRequest, error) {
	if l := r.m.leave(id); l != nil {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockLeaveRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.LeaveRequest, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *mockLeaveRepo) Update(ctx context.Context, tx *gorm.DB, leave *models.LeaveRequest) error {
	r.m.mu.Lock()
	_, ok := r.m.leaves[leave.ID]
	r.m.mu.Unlock()
	if !ok {
		return gorm.ErrRecordNotFound
	}
	leave.UpdatedAt = time.Now()
	r.m.putLeave(leave)
	return nil
}

func (r *mockLeaveRepo) HasOverlap(ctx context.Context, tx *gorm.DB, studentID string, start, end time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, l := range r.m.leaves {
		if l.StudentID == studentID && l.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockLeaveRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.LeaveFilters) ([]*models.LeaveRequest, int64, error) {
	filters.StudentID = &studentID
	return r.List(ctx, tx, filters)
}

func (r *mockLeaveRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.LeaveFilters) ([]*models.LeaveRequest, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.LeaveRequest
	for _, l := range r.m.leaves {
		if filters.StudentID != nil && l.StudentID != *filters.StudentID {
			continue
		}
		if filters.Status != nil && l.Status != *filters.Status {
			continue
		}
		out = append(out, r.m.withRounds(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockLeaveRepo) CountByMonth(ctx context.Context, tx *gorm.DB) ([]repositories.MonthlyCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	counts := map[int]int64{}
	for _, l := range r.m.leaves {
		counts[int(l.CreatedAt.Month())]++
	}
	var out []repositories.MonthlyCount
	for month := 1; month <= 12; month++ {
		if counts[month] > 0 {
			out = append(out, repositories.MonthlyCount{Month: month, Count: counts[month]})
		}
	}
	return out, nil
}

func (r *mockLeaveRepo) CountByStudentAndStatus(ctx context.Context, tx *gorm.DB) ([]repositories.StudentStatusCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	type key struct {
		student string
		status  models.LeaveStatus
	}
	counts := map[key]int64{}
	for _, l := range r.m.leaves {
		counts[key{l.StudentID, l.Status}]++
	}
	var out []repositories.StudentStatusCount
	for k, n := range counts {
		out = append(out, repositories.StudentStatusCount{StudentID: k.student, Status: k.status, Count: n})
	}
	return out, nil
}

// ===== BANK QUESTIONS =====

type mockBankRepo struct{ m *MockRepository }

func (r *mockBankRepo) Create(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	question.ID = r.m.id()
	stored := *question
	r.m.questions[question.ID] = &stored
	return nil
}

func (r *mockBankRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q, ok := r.m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *q
	return &out, nil
}

func (r *mockBankRepo) Update(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.questions[question.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *question
	r.m.questions[question.ID] = &stored
	return nil
}

func (r *mockBankRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.BankQuestionFilters) ([]*models.BankQuestion, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.BankQuestion
	for _, q := range r.m.questions {
		if filters.IsActive != nil && q.IsActive != *filters.IsActive {
			continue
		}
		if filters.Type != nil && q.Type != *filters.Type {
			continue
		}
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *mockBankRepo) GetRandom(ctx context.Context, tx *gorm.DB, filters repositories.RandomQuestionFilters) ([]*models.BankQuestion, error) {
	all, _, _ := r.List(ctx, tx, repositories.BankQuestionFilters{Type: &filters.Type})
	var out []*models.BankQuestion
	for _, q := range all {
		if !q.IsActive {
			continue
		}
		if filters.Subject != nil && q.Subject != *filters.Subject {
			continue
		}
		out = append(out, q)
		if len(out) == filters.Count {
			break
		}
	}
	return out, nil
}

func (r *mockBankRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, id := range ids {
		if q, ok := r.m.questions[id]; ok {
			q.UsageCount++
		}
	}
	return nil
}

// ===== USERS =====

type mockUserRepo struct{ m *MockRepository }

func (r *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (r *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := r.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Role == role, nil
}

// ===== COLLABORATORS =====

// MockQuestionSource serves fixed questions per type
type MockQuestionSource struct {
	mu          sync.Mutex
	mcq         []models.Question
	coding      []models.Question
	fallbackFor map[models.QuestionType]bool
	requests    []questionsource.Request
}

func (s *MockQuestionSource) Fetch(ctx context.Context, req questionsource.Request) questionsource.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	pool := s.mcq
	if req.Type == models.QuestionCoding {
		pool = s.coding
	}
	n := min(req.Count, len(pool))
	batch := questionsource.Batch{Questions: append([]models.Question(nil), pool[:n]...)}
	if s.fallbackFor[req.Type] {
		batch.FromFallback = true
		batch.Reason = questionsource.ReasonGenerator
	}
	return batch
}

// MockEvaluator returns a canned result per submitted source text
type MockEvaluator struct {
	mu      sync.Mutex
	results map[string]evaluator.Result
	calls   int
}

func (e *MockEvaluator) Evaluate(ctx context.Context, code string, cases []models.TestCase) evaluator.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.results[code]
}

func (e *MockEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ===== FIXTURES =====

func mcqQuestions(n, points int) []models.Question {
	out := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Question{
			Type:   models.QuestionMCQ,
			Prompt: "Pick A",
			Points: points,
			MCQ: &models.MCQContent{
				Options:       []string{"A", "B", "C", "D"},
				CorrectAnswer: "A",
			},
		})
	}
	return out
}

func codingQuestions(n, points int) []models.Question {
	out := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Question{
			Type:   models.QuestionCoding,
			Prompt: "Echo the input",
			Points: points,
			Coding: &models.CodingContent{
				CodeTemplate: "package main",
				TestCases: []models.TestCase{
					{Input: "1", ExpectedOutput: "1"},
					{Input: "2", ExpectedOutput: "2", Hidden: true},
				},
			},
		})
	}
	return out
}
