package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ===== IDENTITY =====

// fakeParser accepts "<role>:<id>" tokens
type fakeParser struct{}

func (fakeParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	role, id, ok := strings.Cut(token, ":")
	if !ok {
		return nil, errors.New("malformed token")
	}
	claims := &casdoorsdk.Claims{}
	claims.User.Id = id
	claims.User.Name = id
	claims.User.IsAdmin = role == "admin"
	return claims, nil
}

type fakeUserRepo struct {
	users map[string]*models.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := r.users[id]
	return ok && u.Role == role, nil
}

// ===== SERVICES =====

// Embedded interfaces panic on methods a test did not expect to be called

type fakeLeaveService struct {
	services.LeaveService
	created   *services.CreateLeaveRequest
	createErr error
	current   *services.TestSessionResponse
	export    []byte
	filters   repositories.LeaveFilters
}

func (s *fakeLeaveService) Create(ctx context.Context, studentID string, req *services.CreateLeaveRequest) (*services.LeaveResponse, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = req
	return &services.LeaveResponse{ID: 1, StudentID: studentID, Status: models.LeaveTesting}, nil
}

func (s *fakeLeaveService) GetCurrentSession(ctx context.Context, leaveID uint, studentID string) (*services.TestSessionResponse, error) {
	if s.current == nil {
		return nil, services.ErrSessionNotFound
	}
	return s.current, nil
}

func (s *fakeLeaveService) List(ctx context.Context, filters repositories.LeaveFilters) (*services.LeaveListResponse, error) {
	s.filters = filters
	return &services.LeaveListResponse{}, nil
}

func (s *fakeLeaveService) Export(ctx context.Context, filters repositories.LeaveFilters) ([]byte, error) {
	s.filters = filters
	return s.export, nil
}

func (s *fakeLeaveService) MonthlyStats(ctx context.Context) ([]services.MonthlyLeaveStat, error) {
	return []services.MonthlyLeaveStat{{Month: "Jan", Count: 2}}, nil
}

func (s *fakeLeaveService) DepartmentStats(ctx context.Context) ([]services.DepartmentLeaveStat, error) {
	return []services.DepartmentLeaveStat{{Department: "Physics", Approved: 1, Total: 1}}, nil
}

type fakeTestSessionService struct {
	services.TestSessionService
	answers   []services.AnswerPayload
	answerErr error
	submitted *services.SubmitTestRequest
	reported  []models.AntiCheatType
}

func (s *fakeTestSessionService) RecordAnswer(ctx context.Context, sessionID uint, questionID string, userID string, payload services.AnswerPayload) error {
	if s.answerErr != nil {
		return s.answerErr
	}
	s.answers = append(s.answers, payload)
	return nil
}

func (s *fakeTestSessionService) Submit(ctx context.Context, sessionID uint, userID string, req *services.SubmitTestRequest) (*services.SubmitResult, error) {
	s.submitted = req
	return &services.SubmitResult{SessionID: sessionID, Status: models.SessionCompleted, Score: 7, TotalPoints: 10, Percentage: 70}, nil
}

func (s *fakeTestSessionService) ReportAntiCheat(ctx context.Context, sessionID uint, userID string, kind models.AntiCheatType, details string) error {
	s.reported = append(s.reported, kind)
	return nil
}

type fakeQuestionBankService struct {
	services.QuestionBankService
}

type fakeServiceManager struct {
	services.ServiceManager
	leave       *fakeLeaveService
	testSession *fakeTestSessionService
	bank        *fakeQuestionBankService
	healthErr   error
}

func (m *fakeServiceManager) Leave() services.LeaveService               { return m.leave }
func (m *fakeServiceManager) TestSession() services.TestSessionService   { return m.testSession }
func (m *fakeServiceManager) QuestionBank() services.QuestionBankService { return m.bank }
func (m *fakeServiceManager) HealthCheck(ctx context.Context) error      { return m.healthErr }

// ===== ROUTER =====

type routerFixture struct {
	router  *gin.Engine
	manager *fakeServiceManager
}

func newRouterFixture() *routerFixture {
	users := &fakeUserRepo{users: map[string]*models.User{
		"student-1": {ID: "student-1", FullName: "Student One", Role: models.RoleStudent, IsActive: true},
		"admin-1":   {ID: "admin-1", FullName: "Admin One", Role: models.RoleAdmin, IsActive: true},
	}}
	manager := &fakeServiceManager{
		leave:       &fakeLeaveService{},
		testSession: &fakeTestSessionService{},
		bank:        &fakeQuestionBankService{},
	}

	logger := newTestLogger()
	auth := newCasdoorAuthMiddleware(fakeParser{}, users, logger)
	hm := newHandlerManager(manager, validator.New(), logger, auth, users, false)

	router := gin.New()
	SetupMiddleware(router, logger)
	hm.SetupRoutes(router)
	return &routerFixture{router: router, manager: manager}
}

func (f *routerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return newRecorder(f, req)
}

func newRecorder(f *routerFixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

const (
	studentToken = "student:student-1"
	adminToken   = "admin:admin-1"
)
