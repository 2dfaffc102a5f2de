package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/handler"
	"github.com/stemsi/oralexam/internal/middleware"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
)

// mediaMaxAge is one year; media keys are never rewritten.
const mediaMaxAge = 31536000

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	WS       *handler.WSHandler
	Question *handler.QuestionHandler
	Media    *handler.MediaHandler
	Attempt  *handler.AttemptHandler
	Setting  *handler.SettingHandler
	Monitor  *handler.MonitorHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	loginLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Audio-Duration"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Question prompts, referenced by audio_path / image_path.
	router.GET("/media/*key", middleware.CacheControl(mediaMaxAge), handlers.Media.ServeMedia)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", loginLimiter.Middleware(), handlers.Auth.AdminLogin)

		adminAuth := auth.Group("/admin")
		adminAuth.Use(middleware.RequireAdminJWT(authService), middleware.CheckAdminSession(authService))
		{
			adminAuth.GET("/me", handlers.Auth.GetAdminProfile)
			adminAuth.POST("/logout", handlers.Auth.AdminLogout)
		}
	}

	// ─── 2. Exam Group (Public start, attempt token afterwards) ────────
	examAPI := router.Group("/api/v1/exam")
	examAPI.Use(middleware.NoStore())
	{
		examAPI.POST("/attempts", handlers.Exam.StartAttempt)

		attempt := examAPI.Group("/attempts/:id")
		attempt.Use(middleware.RequireAttemptJWT(authService, "id"))
		{
			attempt.GET("", handlers.Exam.GetState)
			attempt.DELETE("", handlers.Exam.ResetAttempt)
			attempt.POST("/advance", handlers.Exam.Advance)
			attempt.POST("/finish", handlers.Exam.FinishAttempt)
			attempt.POST("/responses", handlers.Exam.RecordResponse)
			attempt.POST("/recording/start", handlers.Exam.StartRecording)
			attempt.POST("/recording/stop", handlers.Exam.StopRecording)
			attempt.POST("/timer/start", handlers.Exam.StartTimer)
			attempt.POST("/timer/stop", handlers.Exam.StopTimer)
		}
	}

	// ─── 3. WebSocket Group (attempt token in ?token=) ─────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exam/attempts/:id/stream",
			middleware.RequireAttemptJWT(authService, "id"),
			handlers.WS.ExamStream,
		)
	}

	// ─── 4. Admin Group (JWT + live login) ─────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAdminJWT(authService),
		middleware.CheckAdminSession(authService),
	)
	{
		adminAPI.POST("/media/upload", handlers.Media.UploadMedia)

		adminAPI.GET("/questions", handlers.Question.ListQuestions)
		adminAPI.POST("/questions", handlers.Question.AddQuestion)
		adminAPI.GET("/questions/:id", handlers.Question.GetQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Question.DeleteQuestion)

		adminAPI.GET("/attempts", handlers.Attempt.ListAttempts)
		adminAPI.DELETE("/attempts/:id", handlers.Attempt.DeleteAttempt)

		adminAPI.GET("/recordings", handlers.Attempt.ListRecordings)
		adminAPI.GET("/responses/:id", handlers.Attempt.GetRecording)
		adminAPI.GET("/responses/:id/audio", handlers.Attempt.StreamAudio)
		adminAPI.DELETE("/responses/:id", handlers.Attempt.DeleteResponse)
		adminAPI.PUT("/responses/:id/rating", handlers.Attempt.RateResponse)

		// Live sessions
		adminAPI.GET("/sessions", handlers.Monitor.ListSessions)
		adminAPI.GET("/sessions/stream", handlers.Monitor.MonitorSSE)
		adminAPI.GET("/sessions/:id", handlers.Monitor.GetSession)
		adminAPI.DELETE("/sessions/:id", handlers.Monitor.ResetSession)

		adminAPI.GET("/system", handlers.System.SystemStats)
		adminAPI.GET("/system/stats", handlers.System.SystemStatsSSE)

		settingsGroup := adminAPI.Group("/settings")
		{
			settingsGroup.GET("/notify-chats", handlers.Setting.GetNotifyChats)
			settingsGroup.PUT("/notify-chats", handlers.Setting.UpdateNotifyChats)
		}
	}

	return router
}
