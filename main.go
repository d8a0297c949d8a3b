package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ssuji15/kennel/internal/allocator"
	"github.com/ssuji15/kennel/internal/calendar"
	"github.com/ssuji15/kennel/internal/catalog"
	"github.com/ssuji15/kennel/internal/config"
	"github.com/ssuji15/kennel/internal/identity"
	"github.com/ssuji15/kennel/internal/inspector"
	"github.com/ssuji15/kennel/internal/launcher"
	"github.com/ssuji15/kennel/internal/reaper"
	"github.com/ssuji15/kennel/internal/runtime/docker"
	"github.com/ssuji15/kennel/internal/service/logger"
	"github.com/ssuji15/kennel/internal/tracing"
	"github.com/ssuji15/kennel/internal/web"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger.Init(cfg.SERVICE_NAME)

	if cfg.TRACE_URL != "" {
		shutdown, err := tracing.InitTracer(ctx, cfg.SERVICE_NAME, cfg.TRACE_URL)
		if err != nil {
			log.Fatalf("error initialising trace: %v", err)
		}
		defer shutdown()
	}

	gpuCfg, err := config.GetGPUConfig()
	if err != nil {
		log.Fatalf("gpu config error: %v", err)
	}
	catCfg, err := config.GetCatalogConfig()
	if err != nil {
		log.Fatalf("catalog config error: %v", err)
	}
	calCfg, err := config.GetCalendarConfig()
	if err != nil {
		log.Fatalf("calendar config error: %v", err)
	}
	reapCfg, err := config.GetReaperConfig()
	if err != nil {
		log.Fatalf("reaper config error: %v", err)
	}

	cat := catalog.Builtin()
	if catCfg.CATALOG_PATH != "" {
		cat, err = catalog.Load(catCfg.CATALOG_PATH)
		if err != nil {
			log.Fatalf("catalog error: %v", err)
		}
	}

	rt, err := docker.NewDockerRuntime()
	if err != nil {
		log.Fatalf("runtime initialization error: %v", err)
	}

	insp := inspector.New(rt, cat, cfg.BASE_URL)
	gpus := allocator.NewDeviceAllocator(gpuCfg.DEVICES, rt)
	ports := allocator.NewPortAllocator()
	svc := launcher.NewService(rt, cat, identity.OSResolver{}, gpus, ports, insp)

	cal := calendar.NewHTTPCalendar(calCfg.URL, time.Duration(calCfg.TIMEOUT_SECONDS)*time.Second)
	rp := reaper.New(rt, insp, cat, cal, time.Duration(reapCfg.WINDOW_SECONDS)*time.Second)

	go rp.Run(ctx, time.Duration(reapCfg.INTERVAL_SECONDS)*time.Second)

	server := web.NewServer(svc, rp)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           otelhttp.NewHandler(server.Router(), "http"),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      65 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Println("HTTP server started on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("trying to shutdown server gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped gracefully")
}
