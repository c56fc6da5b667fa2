package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/config"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
	"github.com/quizforge/quiz-service/internal/validator"
)

type HandlerManager struct {
	serviceManager services.ServiceManager

	quizHandler      *QuizHandler
	questionHandler  *QuestionHandler
	folderHandler    *FolderHandler
	studentHandler   *StudentHandler
	attemptHandler   *AttemptHandler
	gradingHandler   *GradingHandler
	dashboardHandler *DashboardHandler
	userHandler      *UserHandler
	authMiddleware   *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		serviceManager:   serviceManager,
		quizHandler:      NewQuizHandler(serviceManager.Quiz(), serviceManager.Export(), validator, logger),
		questionHandler:  NewQuestionHandler(serviceManager.Question(), validator, logger),
		folderHandler:    NewFolderHandler(serviceManager.Folder(), validator, logger),
		studentHandler:   NewStudentHandler(serviceManager.Student(), validator, logger),
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler:   NewGradingHandler(serviceManager.Grading(), validator, logger),
		dashboardHandler: NewDashboardHandler(serviceManager.Dashboard(), logger),
		userHandler:      NewUserHandler(userRepo, logger),
		authMiddleware:   NewCasdoorAuthMiddleware(casdoorConfig, userRepo),
	}
}

// SetupRoutes mounts the API. The take flow is public (the link token is
// the credential); everything else requires a teacher or admin token.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	// Public take flow.
	take := v1.Group("/take")
	{
		take.GET("/:token", hm.attemptHandler.ResolveLink)
		take.PUT("/:token/answers", hm.attemptHandler.SaveAnswer)
		take.POST("/:token/warnings", hm.attemptHandler.ReportWarning)
		take.POST("/:token/submit", hm.attemptHandler.SubmitAttempt)
		take.GET("/:token/result", hm.attemptHandler.GetTakeResult)
	}

	// Teacher API. Every signed-in user is at least a teacher, so the
	// role check is a second line of defense rather than a filter.
	authed := v1.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())
	authed.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
	{
		quizzes := authed.Group("/quizzes")
		{
			quizzes.POST("", hm.quizHandler.CreateQuiz)
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/bookmarked", hm.quizHandler.ListBookmarkedQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.GET("/:id/details", hm.quizHandler.GetQuizWithDetails)
			quizzes.PUT("/:id", hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", hm.quizHandler.DeleteQuiz)
			quizzes.PUT("/:id/status", hm.quizHandler.UpdateQuizStatus)
			quizzes.PUT("/:id/settings", hm.quizHandler.UpdateQuizSettings)
			quizzes.POST("/:id/duplicate", hm.quizHandler.DuplicateQuiz)
			quizzes.POST("/:id/bookmark", hm.quizHandler.ToggleBookmark)
			quizzes.PUT("/:id/folder", hm.folderHandler.MoveQuiz)
			quizzes.GET("/:id/export", hm.quizHandler.ExportQuizResults)
			quizzes.GET("/:id/stats", hm.dashboardHandler.GetQuizStats)
			quizzes.GET("/:id/grading", hm.gradingHandler.GetGradingOverview)

			// Questions live inside their quiz.
			quizzes.POST("/:id/questions", hm.questionHandler.AddQuestion)
			quizzes.POST("/:id/questions/batch", hm.questionHandler.AddQuestionsBatch)
			quizzes.GET("/:id/questions", hm.questionHandler.ListQuestions)
			quizzes.PUT("/:id/questions/reorder", hm.questionHandler.ReorderQuestions)
			quizzes.PUT("/:id/questions/:question_id", hm.questionHandler.UpdateQuestion)
			quizzes.DELETE("/:id/questions/:question_id", hm.questionHandler.RemoveQuestion)

			// Attempt links.
			quizzes.POST("/:id/links", hm.attemptHandler.IssueLinks)
			quizzes.GET("/:id/links", hm.attemptHandler.ListLinks)
			quizzes.GET("/:id/attempt-stats", hm.attemptHandler.GetAttemptStats)
		}

		authed.DELETE("/links/:id", hm.attemptHandler.RevokeLink)

		folders := authed.Group("/folders")
		{
			folders.POST("", hm.folderHandler.CreateFolder)
			folders.GET("", hm.folderHandler.ListFolders)
			folders.GET("/:id", hm.folderHandler.GetFolder)
			folders.PUT("/:id", hm.folderHandler.UpdateFolder)
			folders.DELETE("/:id", hm.folderHandler.DeleteFolder)
			folders.GET("/:id/quizzes", hm.folderHandler.ListFolderQuizzes)
		}

		students := authed.Group("/students")
		{
			students.POST("", hm.studentHandler.CreateStudent)
			students.GET("", hm.studentHandler.ListStudents)
			students.POST("/import", hm.studentHandler.ImportStudents)
			students.GET("/groups", hm.studentHandler.ListGroups)
			students.GET("/:id", hm.studentHandler.GetStudent)
			students.PUT("/:id", hm.studentHandler.UpdateStudent)
			students.DELETE("/:id", hm.studentHandler.DeleteStudent)
		}

		attempts := authed.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetAttemptResult)
			attempts.POST("/:id/regrade", hm.gradingHandler.RegradeAttempt)
		}

		grading := authed.Group("/grading")
		{
			grading.POST("/answers/:id", hm.gradingHandler.GradeAnswer)
			grading.GET("/metrics", hm.gradingHandler.GetGradingMetrics)
			grading.POST("/metrics/reset", hm.gradingHandler.ResetGradingMetrics)
		}

		authed.GET("/dashboard", hm.dashboardHandler.GetSummary)

		users := authed.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetMe)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "quiz-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "quiz-service",
		})
	})
}
