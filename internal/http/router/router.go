package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/tradehub-backend/internal/config"
	"github.com/ignatzorin/tradehub-backend/internal/http/handlers"
	"github.com/ignatzorin/tradehub-backend/internal/http/middleware"
	"github.com/ignatzorin/tradehub-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	feeHandler *handlers.FeeHandler,
	escrowHandler *handlers.EscrowHandler,
	trustHandler *handlers.TrustHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	verifier *service.TokenVerifier,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.GET("/ws", wsHandler.Handle)

	// Превью комиссий открыто для страниц оформления заказа, лимит по IP.
	public := api.Group("/")
	public.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		public.GET("/fees/rates", feeHandler.Rates)
		public.POST("/fees/preview", feeHandler.Preview)
		public.GET("/fx/estimate", feeHandler.EstimateFX)
	}

	// Лимит ставится после авторизации, чтобы считать запросы по компании.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(verifier))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		protected.GET("/orders/:id/escrow", middleware.UUIDValidator("id"), escrowHandler.Get)
		protected.POST("/orders/:id/escrow/events", middleware.UUIDValidator("id"), escrowHandler.AppendEvents)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(service.RoleAdmin))
	{
		admin.GET("/companies/:id/trust", middleware.UUIDValidator("id"), trustHandler.GetCompany)
		admin.POST("/trust/batch", trustHandler.Batch)
		admin.POST("/trust/score", trustHandler.ScoreProfile)
	}

	return r
}
