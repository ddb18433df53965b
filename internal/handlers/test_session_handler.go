package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

type TestSessionHandler struct {
	BaseHandler
	service   services.TestSessionService
	validator *validator.Validator
}

func NewTestSessionHandler(service services.TestSessionService, validator *validator.Validator, logger utils.Logger, exposeDetails bool) *TestSessionHandler {
	return &TestSessionHandler{
		BaseHandler: NewBaseHandler(logger, exposeDetails),
		service:     service,
		validator:   validator,
	}
}

// CreateAdHocTest creates a practice test outside any leave request
// @Summary Create a practice test
// @Tags tests
// @Accept json
// @Produce json
// @Param request body services.AdHocSessionRequest true "Practice test request"
// @Success 201 {object} services.TestSessionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 422 {object} ErrorResponse "No questions available"
// @Router /tests/ai/create [post]
func (h *TestSessionHandler) CreateAdHocTest(c *gin.Context) {
	var req services.AdHocSessionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating practice test", "user_id", userID, "topic", req.Topic, "type", req.Type)

	response, err := h.service.CreateAdHoc(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetTest retrieves a test session
// @Summary Get a test session
// @Description Students see their own sessions without answers; admins see everything
// @Tags tests
// @Produce json
// @Param id path int true "Test session ID"
// @Success 200 {object} services.TestSessionResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /tests/{id} [get]
func (h *TestSessionHandler) GetTest(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id", "test session")
	if !ok {
		return
	}

	userID, role, ok := h.currentUser(c)
	if !ok {
		return
	}

	response, err := h.service.Get(c.Request.Context(), sessionID, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// StartTest starts or resumes a test session
// @Summary Start a test session
// @Tags tests
// @Produce json
// @Param id path int true "Test session ID"
// @Success 200 {object} services.TestSessionResponse
// @Failure 409 {object} ErrorResponse "Previous round incomplete or session finished"
// @Failure 410 {object} ErrorResponse "Time expired"
// @Router /tests/{id}/start [post]
func (h *TestSessionHandler) StartTest(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id", "test session")
	if !ok {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting test session", "session_id", sessionID, "user_id", userID)

	response, err := h.service.Start(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SaveMCQAnswer stores the selected option for one question
// @Summary Save an MCQ answer
// @Tags tests
// @Accept json
// @Produce json
// @Param id path int true "Test session ID"
// @Param questionId path string true "Question ID"
// @Param request body validator.MCQAnswerRequest true "Answer"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 410 {object} ErrorResponse "Time expired"
// @Router /tests/{id}/mcq/{questionId} [put]
func (h *TestSessionHandler) SaveMCQAnswer(c *gin.Context) {
	var req validator.MCQAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.saveAnswer(c, services.AnswerPayload{Kind: models.QuestionMCQ, Answer: req.Answer})
}

// SaveCodingAnswer stores the source text for one question
// @Summary Save a coding answer
// @Tags tests
// @Accept json
// @Produce json
// @Param id path int true "Test session ID"
// @Param questionId path string true "Question ID"
// @Param request body validator.CodingAnswerRequest true "Answer"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 410 {object} ErrorResponse "Time expired"
// @Router /tests/{id}/coding/{questionId} [put]
func (h *TestSessionHandler) SaveCodingAnswer(c *gin.Context) {
	var req validator.CodingAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.saveAnswer(c, services.AnswerPayload{Kind: models.QuestionCoding, Code: req.Code})
}

// SubmitTest finishes a test session and scores it
// @Summary Submit a test session
// @Tags tests
// @Accept json
// @Produce json
// @Param id path int true "Test session ID"
// @Param request body services.SubmitTestRequest false "Final answers and anti-cheat snapshot"
// @Success 200 {object} services.SubmitResult
// @Failure 409 {object} ErrorResponse "Session not in progress"
// @Router /tests/{id}/submit [post]
func (h *TestSessionHandler) SubmitTest(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id", "test session")
	if !ok {
		return
	}

	var req services.SubmitTestRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting test session", "session_id", sessionID, "user_id", userID)

	result, err := h.service.Submit(c.Request.Context(), sessionID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReportAntiCheat records a suspicious client event
// @Summary Report an anti-cheat event
// @Tags tests
// @Accept json
// @Produce json
// @Param id path int true "Test session ID"
// @Param request body validator.AntiCheatReportRequest true "Event"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse "Bad request"
// @Router /tests/{id}/anti-cheat [post]
func (h *TestSessionHandler) ReportAntiCheat(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id", "test session")
	if !ok {
		return
	}

	var req validator.AntiCheatReportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.service.ReportAntiCheat(c.Request.Context(), sessionID, userID, req.Type, req.Details); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event recorded"})
}

// AbandonTest ends an in-progress session, scoring what was saved so far
// @Summary Abandon a test session
// @Tags tests
// @Produce json
// @Param id path int true "Test session ID"
// @Success 200 {object} services.TestSessionResponse
// @Failure 409 {object} ErrorResponse "Session not in progress"
// @Router /tests/{id}/abandon [post]
func (h *TestSessionHandler) AbandonTest(c *gin.Context) {
	sessionID, ok := h.parseID(c, "id", "test session")
	if !ok {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Abandoning test session", "session_id", sessionID, "user_id", userID)

	response, err := h.service.Abandon(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *TestSessionHandler) saveAnswer(c *gin.Context, payload services.AnswerPayload) {
	sessionID, ok := h.parseID(c, "id", "test session")
	if !ok {
		return
	}

	questionID := c.Param("questionId")
	if questionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Question ID is required",
		})
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.service.RecordAnswer(c.Request.Context(), sessionID, questionID, userID, payload); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Answer saved",
		"question_id": questionID,
	})
}
