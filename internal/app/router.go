package app

import (
	"course_platform_backend/internal/config"
	"course_platform_backend/internal/middleware"
	"course_platform_backend/internal/model"
	"course_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学员接口
		a.registerLearnerRoutes(authGroup, c)

		// 教师接口
		a.registerInstructorRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.GET("/courses/:courseId/contents", c.catalog.GetCourseOutline)
	}
}

func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	// 目录与门禁
	rg.GET("/contents/:contentId", c.catalog.GetContent)
	rg.GET("/contents/:contentId/unlocked", c.progress.GetContentUnlocked)
	rg.POST("/contents/:contentId/complete", c.progress.MarkComplete)

	// 课程进度
	rg.GET("/courses/:courseId/progress", c.progress.GetCourseProgress)

	// 测验答题
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)
	rg.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	rg.GET("/quizzes/:id/attempts", c.quiz.ListAttempts)
	rg.GET("/attempts/:attemptId", c.quiz.GetAttempt)
	rg.PUT("/attempts/:attemptId/answers", c.quiz.SaveAnswers)
	rg.POST("/attempts/:attemptId/submit", c.quiz.SubmitAttempt)

	// 作业
	rg.GET("/assignments/:id", c.assignment.GetAssignment)
	rg.PUT("/assignments/:id/draft", c.assignment.SaveDraft)
	rg.POST("/assignments/:id/files", c.assignment.UploadFile)
	rg.GET("/assignments/:id/submissions", c.assignment.ListMine)
	rg.POST("/submissions/:submissionId/submit", c.assignment.Submit)

	// 视频进度
	rg.PUT("/videos/:contentId/position", c.video.UpdatePosition)
	rg.GET("/videos/:contentId/resume", c.video.Resume)
}

func (a *App) registerInstructorRoutes(rg *gin.RouterGroup, c *controllers) {
	instructor := rg.Group("/instructor")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	{
		instructor.GET("/assignments/:id/pending", c.assignment.ListPendingGrading)
		instructor.POST("/submissions/:submissionId/grade", c.assignment.Grade)
	}
}
