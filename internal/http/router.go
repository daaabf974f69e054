package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/config"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/http/handlers"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/http/middleware"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/mailer"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/modules/payments"
)

func NewRouter(cfg config.Config, logger *slog.Logger, db *gorm.DB, gw payments.Gateway) *gin.Engine {
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	// ErrorHandler sits outside Recovery so a recovered panic still renders
	// through the same JSON path.
	r.Use(middleware.ErrorHandler(logger, cfg.IsDev()))
	r.Use(middleware.Recovery(logger))

	corsCfg := cors.DefaultConfig()
	if cfg.ClientURL == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.ClientURL}
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, middleware.HeaderIdempotencyKey)
	r.Use(cors.New(corsCfg))

	orderSvc := payments.NewOrderService(db, gw)
	verifySvc := payments.NewVerifyService(db, gw)
	captureSvc := payments.NewCaptureService(db, gw)
	refundSvc := payments.NewRefundService(db, gw)
	webhookSvc := payments.NewWebhookService(db)
	webhookSvc.SetLogger(logger)
	if cfg.SMTP.Enabled() {
		webhookSvc.SetMailer(mailer.NewSMTPMailer(cfg.SMTP), cfg.SMTP.From, cfg.SMTP.FromName)
	}

	ph := handlers.NewPaymentsHandler(logger, orderSvc, verifySvc, captureSvc, refundSvc)
	wh := handlers.NewWebhookHandler(logger, gw, webhookSvc)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the SrijanMithila API Server!",
			"status":  "Running",
			"env":     cfg.Env,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pay := r.Group("/payments")

	// Webhook stays outside the idempotency gate; its dedupe is event-id
	// based and the signature covers the raw body.
	pay.POST("/webhook", wh.Handle)

	pay.GET("/health", ph.Health)
	pay.GET("/:rpOrderId", ph.Detail)

	idem := pay.Group("", middleware.IdempotencyKey(cfg.IdemKeySecret))
	idem.POST("/order", ph.CreateOrder)
	idem.POST("/verify", ph.VerifyCheckout)
	idem.POST("/capture", ph.CapturePayment)
	idem.POST("/refund", ph.Refund)

	return r
}
