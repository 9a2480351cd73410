package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/smallbiznis/valora-admin/internal/config"
	"github.com/smallbiznis/valora-admin/internal/domain"
	"github.com/smallbiznis/valora-admin/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/valora-admin/internal/http/middleware"
	"github.com/smallbiznis/valora-admin/internal/middleware"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, adminHandler *handler.AdminHandler, auth *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	superadmin := httpmiddleware.RequireRole(domain.RoleSuperAdmin)
	selfOrSuperadmin := httpmiddleware.SelfOrSuperadmin("id")

	admin := r.Group("/admin")
	{
		admin.POST("/signin", adminHandler.SignIn)
		admin.POST("/confirm-signin", adminHandler.ConfirmSignIn)
		admin.POST("/token", adminHandler.RefreshToken)
		admin.POST("/signout", adminHandler.SignOut)

		admin.POST("", auth.ValidateJWT, superadmin, adminHandler.Create)
		admin.GET("", auth.ValidateJWT, superadmin, adminHandler.List)
		admin.GET("/:id", auth.ValidateJWT, selfOrSuperadmin, adminHandler.GetByID)
		admin.PATCH("/status/:id", auth.ValidateJWT, superadmin, adminHandler.UpdateStatus)
		admin.PATCH("/:id", auth.ValidateJWT, selfOrSuperadmin, adminHandler.Update)
		admin.DELETE("/:id", auth.ValidateJWT, superadmin, adminHandler.Delete)
	}

	return r
}
