package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"incident-monitor/alertapi/database"
	"incident-monitor/alertapi/handlers"
	"incident-monitor/alertapi/rabbitmq"
	ws "incident-monitor/alertapi/websocket"
	"incident-monitor/config"
	"incident-monitor/metrics"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.EnsureTables(context.Background()); err != nil {
		log.Fatal("Failed to ensure tables:", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRouting)
		if err != nil {
			log.Printf("RabbitMQ unavailable, alert fan-out disabled: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	h := handlers.New(db, hub, publisher)
	router := setupRouter(h)

	srv := &http.Server{
		Addr:    ":" + cfg.AlertAPIPort,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting alert service on port %s", cfg.AlertAPIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func setupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware; the push endpoint negotiates its own
	// transport and is excluded.
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/alerts/", h.CreateAlert)
	router.GET("/alerts/", h.ListAlerts)
	router.GET("/ws", h.ServeWS)
	router.POST("/aws/upload/file", h.UploadFile)
	router.GET("/aws/upload/file", h.GetFileURL)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
