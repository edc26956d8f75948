package server

import (
	"time"

	httpHandler "brokerage-gateway/interfaces/http"
	"brokerage-gateway/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	OAuth   httpHandler.IOAuthHandler
	Account httpHandler.IAccountHandler
	Health  httpHandler.IHealthHandler
}

func InitiateRouter(handlers Handlers, secretKey string, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", handlers.Health.Healthz)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	oauth := api.Group("/oauth")
	{
		oauth.POST("/authorize", handlers.OAuth.Authorize)
		oauth.POST("/callback", handlers.OAuth.Callback)
		oauth.POST("/renew", handlers.OAuth.Renew)
		oauth.POST("/revoke", handlers.OAuth.Revoke)
		oauth.GET("/status", handlers.OAuth.Status)
	}

	api.GET("/accounts", handlers.Account.ListAccounts)
	api.GET("/accounts/:accountIdKey/balance", handlers.Account.GetBalance)
	api.POST("/brokerage/dispatch", handlers.Account.Dispatch)

	return router
}
