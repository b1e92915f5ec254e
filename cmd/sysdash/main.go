package main

import (
	"context"
	"flag"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ui "sysdash/app/frontend"
	"sysdash/internal/config"
	"sysdash/internal/handlers"
	"sysdash/internal/metrics"
	"sysdash/internal/middleware"
	"sysdash/internal/models"
	"sysdash/internal/render"
	"sysdash/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type App struct {
	sampler     *metrics.Sampler
	wsHub       *middleware.Hub
	rateLimiter *middleware.RateLimiter
	handlers    *handlers.DashboardHandlers
	logger      *utils.Logger
}

var app *App

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config failed to load: %v", err)
	}

	logger := utils.NewLogger(cfg.LogFile)
	defer logger.Close()

	// Mirror gin's access log into the application log file.
	if f := logger.File(); f != nil {
		gin.DefaultWriter = io.MultiWriter(os.Stdout, f)
	}

	source := metrics.NewHostSource()

	// Static host info is read once; failure here is the one fatal
	// condition, everything after it degrades per tick instead.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	info, err := source.StaticInfo(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Cannot query host info: %v", err)
	}

	store := metrics.NewStore(cfg.HistoryLength, models.MetricNames...)
	renderer := render.NewRenderer(info)
	hub := middleware.NewHub(logger)

	sampler := metrics.NewSampler(source, store, renderer, hub, metrics.RealClock(), logger, cfg.UpdateIntervalSeconds)
	sampler.SetCPUWindow(cfg.CPUWindow())

	app = &App{
		sampler:     sampler,
		wsHub:       hub,
		rateLimiter: middleware.NewRateLimiter(rate.Every(time.Minute/100), 10),
		handlers:    handlers.NewDashboardHandlers(hub, sampler, info),
		logger:      logger,
	}

	go app.wsHub.Run()
	app.sampler.Start()

	r := setupRouter()

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(cfg.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting server on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop sampling first so no frame is published mid-shutdown
	app.sampler.Stop()
	app.rateLimiter.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Rate limiting - 100 requests per minute per IP
	r.Use(app.rateLimiter.Middleware())

	// Embedded frontend
	tmpl := template.Must(template.ParseFS(ui.Assets, "templates/*"))
	r.SetHTMLTemplate(tmpl)
	staticFS, err := fs.Sub(ui.Assets, "static")
	if err != nil {
		log.Fatalf("Embedded static assets missing: %v", err)
	}
	r.StaticFS("/static", http.FS(staticFS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/", app.handlers.Dashboard)

	api := r.Group("/api")
	{
		api.GET("/frame", app.handlers.APIFrame)
		api.GET("/staticinfo", app.handlers.APIStaticInfo)
		api.GET("/config", app.handlers.APIConfigGET)
		api.PUT("/config", app.handlers.APIConfigPUT)
	}

	// WebSocket endpoint
	r.GET("/ws", app.wsHub.HandleWebSocket())

	return r
}
