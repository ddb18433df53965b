package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger, exposeDetails bool) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger, exposeDetails),
		userRepo:    userRepo,
	}
}

// GetMe returns the authenticated user's profile
// @Summary Get current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, role, ok := h.currentUser(c)
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		// The token was valid, so fall back to what the middleware decoded
		if ctxUser, ctxErr := GetUserFromContext(c); ctxErr == nil {
			c.JSON(http.StatusOK, ctxUser)
			return
		}
		h.LogError(c, err, "Failed to get user")
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
		return
	}

	// Role comes from the token, the directory record may not carry it
	profile := *user
	if profile.Role == "" {
		profile.Role = role
	}

	c.JSON(http.StatusOK, profile)
}
