package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/leave-assessment-service/internal/config"
	"github.com/SAP-F-2025/leave-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/leave-assessment-service/internal/models"
	"github.com/SAP-F-2025/leave-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/leave-assessment-service/internal/services"
	"github.com/SAP-F-2025/leave-assessment-service/internal/utils"
	"github.com/SAP-F-2025/leave-assessment-service/internal/validator"
)

const (
	apiRequestsPerSecond = 20
	apiBurst             = 40
)

type HandlerManager struct {
	leaveHandler        *LeaveHandler
	testSessionHandler  *TestSessionHandler
	questionBankHandler *QuestionBankHandler
	userHandler         *UserHandler
	authMiddleware      *CasdoorAuthMiddleware
	serviceManager      services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
	exposeDetails bool,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo, logger)
	return newHandlerManager(serviceManager, validator, logger, authMiddleware, userRepo, exposeDetails)
}

func newHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	userRepo repositories.UserRepository,
	exposeDetails bool,
) *HandlerManager {
	return &HandlerManager{
		leaveHandler:        NewLeaveHandler(serviceManager.Leave(), logger, exposeDetails),
		testSessionHandler:  NewTestSessionHandler(serviceManager.TestSession(), validator, logger, exposeDetails),
		questionBankHandler: NewQuestionBankHandler(serviceManager.QuestionBank(), logger, exposeDetails),
		userHandler:         NewUserHandler(userRepo, logger, exposeDetails),
		authMiddleware:      authMiddleware,
		serviceManager:      serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	student := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)
	admin := hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	v1.Use(RateLimitMiddleware(apiRequestsPerSecond, apiBurst))
	{
		leaves := v1.Group("/leaves")
		{
			leaves.POST("/new", student, hm.leaveHandler.CreateLeave)
			leaves.GET("/my-requests", student, hm.leaveHandler.ListMyLeaves)
			leaves.GET("/:id/current-test", student, hm.leaveHandler.GetCurrentTest)

			leaves.GET("", admin, hm.leaveHandler.ListLeaves)
			leaves.GET("/export", admin, hm.leaveHandler.ExportLeaves)
			leaves.GET("/stats/monthly", admin, hm.leaveHandler.MonthlyStats)
			leaves.GET("/stats/departments", admin, hm.leaveHandler.DepartmentStats)
			leaves.PUT("/:id/review", admin, hm.leaveHandler.ReviewLeave)

			leaves.GET("/:id", hm.leaveHandler.GetLeave)
		}

		tests := v1.Group("/tests")
		{
			tests.POST("/ai/create", student, hm.testSessionHandler.CreateAdHocTest)
			tests.GET("/:id", hm.testSessionHandler.GetTest)
			tests.POST("/:id/start", student, hm.testSessionHandler.StartTest)
			tests.PUT("/:id/mcq/:questionId", student, hm.testSessionHandler.SaveMCQAnswer)
			tests.PUT("/:id/coding/:questionId", student, hm.testSessionHandler.SaveCodingAnswer)
			tests.POST("/:id/submit", student, hm.testSessionHandler.SubmitTest)
			tests.POST("/:id/anti-cheat", student, hm.testSessionHandler.ReportAntiCheat)
			tests.POST("/:id/abandon", student, hm.testSessionHandler.AbandonTest)
		}

		questions := v1.Group("/questions")
		questions.Use(admin)
		{
			questions.POST("", hm.questionBankHandler.CreateQuestion)
			questions.GET("", hm.questionBankHandler.ListQuestions)
			questions.GET("/:id", hm.questionBankHandler.GetQuestion)
			questions.PUT("/:id", hm.questionBankHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionBankHandler.DeleteQuestion)
		}

		v1.GET("/users/me", hm.userHandler.GetMe)
	}

	router.GET("/health", hm.healthCheck)
	router.GET("/metrics", metrics.PrometheusHandler())
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "leave-assessment-service",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "leave-assessment-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
