package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"lexmatch.backend/internal/interfaces/http/handlers"
	"lexmatch.backend/internal/interfaces/http/middleware"
)

const (
	serviceName    = "lexmatch-backend"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	contractHandler *handlers.ContractHandler
	webhookHandler  *handlers.ESignWebhookHandler
	authMiddleware  gin.HandlerFunc
	webhookAuth     gin.HandlerFunc
}

// applyCORSMiddleware answers cross-origin requests from allowedOrigins only.
// Other origins get no CORS headers and the browser blocks the response.
func applyCORSMiddleware(r *gin.Engine, allowedOrigins []string) {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if origin != "" {
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine, h http.Handler) {
	r.GET("/metrics", gin.WrapH(h))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		contracts := v1.Group("/contracts")
		contracts.Use(d.authMiddleware)
		{
			contracts.POST("", middleware.IdempotencyMiddleware(), d.contractHandler.CreateContract)
			contracts.GET("", d.contractHandler.ListContracts)
			contracts.GET("/:id", d.contractHandler.GetContract)
			contracts.POST("/:id/sign", d.contractHandler.SignContract)
			contracts.POST("/:id/cancel", d.contractHandler.CancelContract)
			contracts.POST("/:id/envelope", d.contractHandler.AttachEnvelope)
			contracts.POST("/:id/sync", d.contractHandler.SyncContract)
			contracts.GET("/:id/document", d.contractHandler.GetDocument)
			contracts.GET("/:id/signed-document", d.contractHandler.DownloadSignedDocument)
			contracts.GET("/:id/history", d.contractHandler.GetHistory)
		}

		internal := v1.Group("/internal")
		internal.Use(d.authMiddleware, middleware.RequireAdmin())
		{
			internal.POST("/contracts/:id/close", d.contractHandler.CloseContract)
		}

		webhooks := v1.Group("/webhooks")
		webhooks.Use(d.webhookAuth)
		{
			webhooks.POST("/esign", d.webhookHandler.HandleEnvelopeEvent)
		}
	}
}
