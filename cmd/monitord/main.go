package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"

	"incident-monitor/config"
	"incident-monitor/metrics"
	"incident-monitor/models"
	"incident-monitor/monitor/alerts"
	"incident-monitor/monitor/api"
	"incident-monitor/monitor/detection"
	"incident-monitor/monitor/feed"
	"incident-monitor/monitor/ingest"
	"incident-monitor/monitor/report"
	"incident-monitor/monitor/uploader"
)

// defaultCameras is the inventory shown on the home surface until a camera
// registry service exists.
var defaultCameras = []models.Camera{
	{ID: 1, Name: "CAM-01", Status: "online"},
	{ID: 2, Name: "CAM-02", Status: "online"},
	{ID: 3, Name: "CAM-03", Status: "online"},
	{ID: 4, Name: "CAM-04", Status: "offline"},
}

func main() {
	// Load configuration
	cfg := config.Load()

	log.Info("Starting the monitor daemon...")

	metrics.Register()

	f := feed.New()

	supervisor := ingest.NewSupervisor(cfg.WSBaseURL, f, cfg.ReconnectMin, cfg.ReconnectMax)
	supervisor.Start()

	orch := report.New(
		alerts.NewClient(cfg.APIBaseURL, cfg.RequestTimeout),
		detection.NewClient(cfg.DetectBaseURL, cfg.DetectTimeout),
		uploader.NewClient(cfg.APIBaseURL, cfg.RequestTimeout),
	)
	orch.OnTransition = func(s report.State) {
		log.WithField("state", string(s)).Debug("Report submission transition")
	}

	router := api.Router(api.NewHandlers(f, orch, defaultCameras))

	srv := &http.Server{
		Addr:    ":" + cfg.MonitorPort,
		Handler: router,
	}

	go func() {
		log.Infof("Monitor daemon listening on port %s", cfg.MonitorPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down monitor daemon...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	supervisor.Stop()
	log.Info("Monitor daemon stopped")
}
