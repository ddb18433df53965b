package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
)

type QuestionBankHandler struct {
	BaseHandler
	service services.QuestionBankService
}

func NewQuestionBankHandler(service services.QuestionBankService, logger utils.Logger, exposeDetails bool) *QuestionBankHandler {
	return &QuestionBankHandler{
		BaseHandler: NewBaseHandler(logger, exposeDetails),
		service:     service,
	}
}

// ===== CORE CRUD ENDPOINTS =====

// CreateQuestion adds a question to the bank
// @Summary Create a bank question
// @Tags questions
// @Accept json
// @Produce json
// @Param request body services.CreateBankQuestionRequest true "Question"
// @Success 201 {object} models.BankQuestion
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /questions [post]
func (h *QuestionBankHandler) CreateQuestion(c *gin.Context) {
	var req services.CreateBankQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	response, err := h.service.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetQuestion retrieves a bank question by ID
// @Summary Get a bank question
// @Tags questions
// @Produce json
// @Param id path int true "Question ID"
// @Success 200 {object} models.BankQuestion
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /questions/{id} [get]
func (h *QuestionBankHandler) GetQuestion(c *gin.Context) {
	id, ok := h.parseID(c, "id", "question")
	if !ok {
		return
	}

	response, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateQuestion applies a partial update to a bank question
// @Summary Update a bank question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Param request body services.UpdateBankQuestionRequest true "Changes"
// @Success 200 {object} models.BankQuestion
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /questions/{id} [put]
func (h *QuestionBankHandler) UpdateQuestion(c *gin.Context) {
	id, ok := h.parseID(c, "id", "question")
	if !ok {
		return
	}

	var req services.UpdateBankQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	response, err := h.service.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DeleteQuestion deactivates a bank question. Existing sessions keep their copy.
// @Summary Deactivate a bank question
// @Tags questions
// @Param id path int true "Question ID"
// @Success 204 "No content"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /questions/{id} [delete]
func (h *QuestionBankHandler) DeleteQuestion(c *gin.Context) {
	id, ok := h.parseID(c, "id", "question")
	if !ok {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListQuestions lists bank questions
// @Summary List bank questions
// @Tags questions
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param type query string false "Filter by type (mcq, coding)"
// @Param difficulty query string false "Filter by difficulty"
// @Param is_active query bool false "Filter by active flag"
// @Param tags query string false "Comma separated tags"
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} services.BankQuestionListResponse
// @Router /questions [get]
func (h *QuestionBankHandler) ListQuestions(c *gin.Context) {
	response, err := h.service.List(c.Request.Context(), h.parseQuestionFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *QuestionBankHandler) parseQuestionFilters(c *gin.Context) repositories.BankQuestionFilters {
	limit, offset := h.parsePagination(c)
	filters := repositories.BankQuestionFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	if subject := c.Query("subject"); subject != "" {
		s := models.Subject(subject)
		filters.Subject = &s
	}
	if questionType := c.Query("type"); questionType != "" {
		t := models.QuestionType(questionType)
		filters.Type = &t
	}
	if difficulty := c.Query("difficulty"); difficulty != "" {
		d := models.DifficultyLevel(difficulty)
		filters.Difficulty = &d
	}

	if isActive := c.Query("is_active"); isActive != "" {
		if isActive == "true" {
			filters.IsActive = &[]bool{true}[0]
		} else if isActive == "false" {
			filters.IsActive = &[]bool{false}[0]
		}
	}

	if createdBy := c.Query("created_by"); createdBy != "" {
		filters.CreatedBy = &createdBy
	}
	if tags := c.Query("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filters.Tags = append(filters.Tags, tag)
			}
		}
	}

	if sortBy := c.Query("sort_by"); sortBy != "" {
		validSortFields := map[string]bool{
			"created_at":  true,
			"updated_at":  true,
			"usage_count": true,
		}
		if validSortFields[sortBy] {
			filters.SortBy = sortBy
		}
	}
	if sortOrder := c.Query("sort_order"); sortOrder == "asc" || sortOrder == "desc" {
		filters.SortOrder = sortOrder
	}

	return filters
}
