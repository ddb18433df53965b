package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type LeaveHandler struct {
	BaseHandler
	service services.LeaveService
}

func NewLeaveHandler(service services.LeaveService, logger utils.Logger, exposeDetails bool) *LeaveHandler {
	return &LeaveHandler{
		BaseHandler: NewBaseHandler(logger, exposeDetails),
		service:     service,
	}
}

// CreateLeave applies for leave and provisions both test rounds
// @Summary Apply for leave
// @Description Create a leave request; an MCQ round and a coding round are generated for it
// @Tags leaves
// @Accept json
// @Produce json
// @Param request body services.CreateLeaveRequest true "Leave request"
// @Success 201 {object} services.LeaveResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 409 {object} ErrorResponse "Overlapping leave request"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /leaves/new [post]
func (h *LeaveHandler) CreateLeave(c *gin.Context) {
	var req services.CreateLeaveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating leave request", "student_id", userID, "leave_type", req.LeaveType)

	response, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListMyLeaves lists the caller's leave requests, newest first
// @Summary List my leave requests
// @Tags leaves
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} services.LeaveListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /leaves/my-requests [get]
func (h *LeaveHandler) ListMyLeaves(c *gin.Context) {
	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	filters, err := h.parseLeaveFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid filters",
			Details: err.Error(),
		})
		return
	}

	response, err := h.service.ListMine(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetCurrentTest returns the round the student should take next.
// A round already in progress is ended and scored instead of resumed.
// @Summary Get the current test round of a leave request
// @Tags leaves
// @Produce json
// @Param id path int true "Leave request ID"
// @Success 200 {object} services.TestSessionResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "No pending round"
// @Router /leaves/{id}/current-test [get]
func (h *LeaveHandler) GetCurrentTest(c *gin.Context) {
	leaveID, ok := h.parseID(c, "id", "leave request")
	if !ok {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	response, err := h.service.GetCurrentSession(c.Request.Context(), leaveID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetLeave retrieves a leave request with its round summaries
// @Summary Get a leave request
// @Tags leaves
// @Produce json
// @Param id path int true "Leave request ID"
// @Success 200 {object} services.LeaveResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /leaves/{id} [get]
func (h *LeaveHandler) GetLeave(c *gin.Context) {
	leaveID, ok := h.parseID(c, "id", "leave request")
	if !ok {
		return
	}

	userID, role, ok := h.currentUser(c)
	if !ok {
		return
	}

	response, err := h.service.GetByID(c.Request.Context(), leaveID, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== ADMIN ENDPOINTS =====

// ListLeaves lists all leave requests
// @Summary List leave requests
// @Tags leaves
// @Produce json
// @Param status query string false "Filter by status"
// @Param student_id query string false "Filter by student"
// @Param leave_type query string false "Filter by leave type"
// @Param date_from query string false "Start date lower bound (YYYY-MM-DD)"
// @Param date_to query string false "End date upper bound (YYYY-MM-DD)"
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} services.LeaveListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /leaves [get]
func (h *LeaveHandler) ListLeaves(c *gin.Context) {
	filters, err := h.parseLeaveFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid filters",
			Details: err.Error(),
		})
		return
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filters.StudentID = &studentID
	}

	response, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ExportLeaves downloads the filtered leave requests as a spreadsheet
// @Summary Export leave requests
// @Tags leaves
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param status query string false "Filter by status"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /leaves/export [get]
func (h *LeaveHandler) ExportLeaves(c *gin.Context) {
	filters, err := h.parseLeaveFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid filters",
			Details: err.Error(),
		})
		return
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filters.StudentID = &studentID
	}

	h.LogRequest(c, "Exporting leave requests")

	data, err := h.service.Export(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("leave-requests-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ReviewLeave records an admin decision on a leave request
// @Summary Review a leave request
// @Tags leaves
// @Accept json
// @Produce json
// @Param id path int true "Leave request ID"
// @Param request body services.ReviewLeaveRequest true "Review"
// @Success 200 {object} services.LeaveResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /leaves/{id}/review [put]
func (h *LeaveHandler) ReviewLeave(c *gin.Context) {
	leaveID, ok := h.parseID(c, "id", "leave request")
	if !ok {
		return
	}

	var req services.ReviewLeaveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	userID, _, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Reviewing leave request", "leave_id", leaveID, "reviewer_id", userID, "status", req.Status)

	response, err := h.service.Review(c.Request.Context(), leaveID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// MonthlyStats counts leave requests per calendar month
// @Summary Monthly leave statistics
// @Tags leaves
// @Produce json
// @Success 200 {object} map[string][]services.MonthlyLeaveStat
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /leaves/stats/monthly [get]
func (h *LeaveHandler) MonthlyStats(c *gin.Context) {
	stats, err := h.service.MonthlyStats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// DepartmentStats breaks leave outcomes down by student department
// @Summary Leave statistics per department
// @Tags leaves
// @Produce json
// @Success 200 {object} map[string][]services.DepartmentLeaveStat
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /leaves/stats/departments [get]
func (h *LeaveHandler) DepartmentStats(c *gin.Context) {
	stats, err := h.service.DepartmentStats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// ===== HELPER METHODS =====

func (h *LeaveHandler) parseLeaveFilters(c *gin.Context) (repositories.LeaveFilters, error) {
	limit, offset := h.parsePagination(c)
	filters := repositories.LeaveFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if status := c.Query("status"); status != "" {
		s := models.LeaveStatus(status)
		filters.Status = &s
	}
	if leaveType := c.Query("leave_type"); leaveType != "" {
		t := models.LeaveType(leaveType)
		filters.LeaveType = &t
	}
	if from := c.Query("date_from"); from != "" {
		t, err := time.Parse(models.DateLayout, from)
		if err != nil {
			return filters, fmt.Errorf("date_from: %w", err)
		}
		filters.DateFrom = &t
	}
	if to := c.Query("date_to"); to != "" {
		t, err := time.Parse(models.DateLayout, to)
		if err != nil {
			return filters, fmt.Errorf("date_to: %w", err)
		}
		filters.DateTo = &t
	}

	return filters, nil
}
