package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// BaseHandler carries what every handler needs for logging and error replies
type BaseHandler struct {
	logger        utils.Logger
	exposeDetails bool
}

// NewBaseHandler builds a BaseHandler. exposeDetails adds raw error text to
// 500 replies and is meant for development only.
func NewBaseHandler(logger utils.Logger, exposeDetails bool) BaseHandler {
	return BaseHandler{logger: logger, exposeDetails: exposeDetails}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string) {
	utils.GetLogger(c, h.logger).Error(msg,
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path)
}

// currentUser reads the identity set by the auth middleware and replies 401
// when it is missing
func (h *BaseHandler) currentUser(c *gin.Context) (string, models.UserRole, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", "", false
	}

	role, _ := c.Get("user_role")
	userRole, _ := role.(models.UserRole)
	return userID.(string), userRole, true
}

func (h *BaseHandler) parseID(c *gin.Context, param, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + label + " ID",
		})
		return 0, false
	}
	return uint(id), true
}

// parsePagination turns page/limit query params into limit/offset
func (h *BaseHandler) parsePagination(c *gin.Context) (int, int) {
	page := 1
	limit := 20

	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	return limit, (page - 1) * limit
}

func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs services.ValidationErrors
	var ruleErr *services.BusinessRuleError
	var stateErr *services.StateError

	// Order matters: specific sentinels wrap the generic ones checked later
	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid input",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Test session not found",
		})
	case errors.Is(err, services.ErrLeaveNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Leave request not found",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrBankQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Bank question not found",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrSequenceViolation):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Complete previous round first",
		})
	case errors.Is(err, services.ErrLeaveOverlap):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "You have already applied for leave in this date range.",
		})
	case errors.Is(err, services.ErrSessionExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Test time expired",
		})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: stateErr.Err.Error(),
			Details: gin.H{"status": stateErr.Current, "action": stateErr.Action},
		})
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Conflict",
			Details: err.Error(),
		})
	case errors.As(err, &ruleErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: ruleErr.Message,
			Details: ruleErr.Context,
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		response := ErrorResponse{Message: "Internal server error"}
		if h.exposeDetails {
			response.Details = err.Error()
		}
		c.JSON(http.StatusInternalServerError, response)
	}
}
