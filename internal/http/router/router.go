package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hsse-backend/internal/config"
	"github.com/ignatzorin/hsse-backend/internal/http/handlers"
	"github.com/ignatzorin/hsse-backend/internal/http/middleware"
	"github.com/ignatzorin/hsse-backend/internal/metrics"
	"github.com/ignatzorin/hsse-backend/internal/models"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// Handlers набор HTTP обработчиков приложения.
// Files заполняется только для локального хранилища.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Reports       *handlers.ReportHandler
	PublicReports *handlers.PublicReportHandler
	Chatbot       *handlers.ChatbotHandler
	Escalations   *handlers.EscalationHandler
	Notifications *handlers.NotificationHandler
	Hazards       *handlers.HazardHandler
	Plans         *handlers.PlanHandler
	Trainings     *handlers.TrainingHandler
	Users         *handlers.UserHandler
	Organizations *handlers.OrganizationHandler
	Scraper       *handlers.ScraperHandler
	Health        *handlers.HealthHandler
	WS            *handlers.WSHandler
	Files         *handlers.FileHandler
}

func SetupRouter(cfg *config.Config, tokenManager *service.TokenManager, h Handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if h.Files != nil {
		r.GET("/files/*key", h.Files.Serve)
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware("auth", 5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/me", h.Auth.Me)
	}

	// Анонимная форма
	public := api.Group("/public")
	public.Use(middleware.RateLimitMiddleware("public", cfg.PublicRateLimit, cfg.RateLimitPeriod))
	{
		public.POST("/reports", h.PublicReports.Create)
	}

	// WhatsApp бот и сборщик материалов
	chatbot := api.Group("/chatbot")
	chatbot.Use(
		middleware.RateLimitMiddleware("chatbot", cfg.RateLimitLimit, cfg.RateLimitPeriod),
		middleware.APIKeyMiddleware("chatbot", cfg.Integrations.ChatbotAPIKey),
	)
	{
		chatbot.POST("/reports", h.Chatbot.SubmitReport)
		chatbot.POST("/reports/:id/media", middleware.UUIDValidator("id"), h.Chatbot.UploadMedia)
		chatbot.GET("/reports/:id/status", middleware.UUIDValidator("id"), h.Chatbot.Status)
		chatbot.POST("/ai-scrapers", h.Chatbot.IngestScraped)
	}

	// Внешний диспетчер email/SMS
	dispatcher := api.Group("/dispatcher")
	dispatcher.Use(middleware.APIKeyMiddleware("dispatcher", cfg.Integrations.DispatcherAPIKey))
	{
		dispatcher.PUT("/notifications/:id/status", middleware.UUIDValidator("id"), h.Notifications.RecordDelivery)
	}

	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleSupervisor)
	admins := middleware.RequireRoles(models.RoleAdmin)

	reports := protected.Group("/reports")
	{
		reports.GET("", h.Reports.List)
		reports.POST("", h.Reports.Create)
		reports.GET("/stats", h.Reports.Stats)
		reports.GET("/export", h.Reports.Export)
		reports.GET("/:id", middleware.UUIDValidator("id"), h.Reports.Get)
		reports.PUT("/:id", middleware.UUIDValidator("id"), h.Reports.Update)
		reports.DELETE("/:id", middleware.UUIDValidator("id"), staff, h.Reports.Delete)
		reports.PATCH("/:id/status", middleware.UUIDValidator("id"), h.Reports.UpdateStatus)
		reports.POST("/:id/escalation-required", middleware.UUIDValidator("id"), h.Reports.MarkRequired)
		reports.POST("/:id/attachments", middleware.UUIDValidator("id"), h.Reports.AddAttachments)
		reports.DELETE("/:id/attachments/:uploadId", middleware.UUIDValidator("id", "uploadId"), h.Reports.RemoveAttachment)
		reports.GET("/:id/attachments/:uploadId/url", middleware.UUIDValidator("id", "uploadId"), h.Reports.AttachmentURL)
		reports.GET("/:id/escalations", middleware.UUIDValidator("id"), h.Escalations.ListForReport)
		reports.POST("/:id/escalations", middleware.UUIDValidator("id"), staff, h.Escalations.Escalate)
	}

	escalations := protected.Group("/escalations")
	escalations.Use(middleware.UUIDValidator("id"))
	{
		escalations.GET("/:id", h.Escalations.Get)
		escalations.POST("/:id/resolve", staff, h.Escalations.Resolve)
		escalations.POST("/:id/assign", staff, h.Escalations.Reassign)
		escalations.POST("/:id/updates", h.Escalations.AddUpdate)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notifications.ListNotifications)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.PUT("/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
	}

	hazards := protected.Group("/hazards")
	{
		hazards.GET("", h.Hazards.List)
		hazards.POST("", h.Hazards.Create)
		hazards.GET("/:id", middleware.UUIDValidator("id"), h.Hazards.Get)
		hazards.PUT("/:id", middleware.UUIDValidator("id"), h.Hazards.Update)
		hazards.DELETE("/:id", middleware.UUIDValidator("id"), h.Hazards.Delete)
	}

	plans := protected.Group("/emergency-plans")
	{
		plans.GET("", h.Plans.List)
		plans.POST("", h.Plans.Create)
		plans.GET("/:id", middleware.UUIDValidator("id"), h.Plans.Get)
		plans.PUT("/:id", middleware.UUIDValidator("id"), h.Plans.Update)
		plans.POST("/:id/reviewed", middleware.UUIDValidator("id"), h.Plans.MarkReviewed)
		plans.DELETE("/:id", middleware.UUIDValidator("id"), h.Plans.Delete)
	}

	trainings := protected.Group("/trainings")
	{
		trainings.GET("", h.Trainings.List)
		trainings.GET("/statistics", h.Trainings.Statistics)
		trainings.GET("/:id", middleware.UUIDValidator("id"), h.Trainings.Get)
		trainings.POST("", admins, h.Trainings.Create)
		trainings.POST("/bulk", admins, h.Trainings.Bulk)
		trainings.PUT("/:id", middleware.UUIDValidator("id"), admins, h.Trainings.Update)
		trainings.DELETE("/:id", middleware.UUIDValidator("id"), admins, h.Trainings.Delete)
		trainings.POST("/:id/enrollments", middleware.UUIDValidator("id"), staff, h.Trainings.Enroll)
		trainings.PUT("/:id/enrollments/:userId", middleware.UUIDValidator("id", "userId"), staff, h.Trainings.UpdateEnrollmentStatus)
		trainings.DELETE("/:id/enrollments/:userId", middleware.UUIDValidator("id", "userId"), staff, h.Trainings.Unenroll)
	}

	admin := protected.Group("/admin")
	admin.Use(admins)
	{
		admin.GET("/users", h.Users.List)
		admin.POST("/users", h.Users.Create)
		admin.POST("/users/bulk", h.Users.Bulk)
		admin.GET("/users/:id", middleware.UUIDValidator("id"), h.Users.Get)
		admin.PUT("/users/:id", middleware.UUIDValidator("id"), h.Users.Update)
		admin.DELETE("/users/:id", middleware.UUIDValidator("id"), h.Users.Delete)
		admin.POST("/users/:id/toggle-active", middleware.UUIDValidator("id"), h.Users.ToggleActive)

		admin.GET("/organizations", h.Organizations.List)
		admin.POST("/organizations", h.Organizations.Create)
		admin.GET("/organizations/:id", middleware.UUIDValidator("id"), h.Organizations.Get)
		admin.PUT("/organizations/:id", middleware.UUIDValidator("id"), h.Organizations.Update)

		admin.GET("/ai-scrapers", h.Scraper.List)
	}

	return r
}
