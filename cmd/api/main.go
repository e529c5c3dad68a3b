package main

import (
	"context"
	"image"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrcheckin/internal/annotate"
	"qrcheckin/internal/config"
	"qrcheckin/internal/device"
	"qrcheckin/internal/geo"
	"qrcheckin/internal/history"
	"qrcheckin/internal/httpmiddleware"
	"qrcheckin/internal/kv"
	"qrcheckin/internal/qr"
	"qrcheckin/internal/queue"
	"qrcheckin/internal/recorder"
	"qrcheckin/internal/workflow"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	var (
		store   kv.Store
		kvRedis *kv.Redis
	)
	switch cfg.StoreBackend {
	case "redis":
		kvRedis = kv.NewRedis(cfg.RedisAddr, "checkin:")
		store = kvRedis
	case "memory":
		store = kv.NewMemory()
	default:
		fileStore, err := kv.NewFile(cfg.StorePath)
		if err != nil {
			return err
		}
		store = fileStore
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		if kvRedis == nil {
			kvRedis = kv.NewRedis(cfg.RedisAddr, "checkin:")
		}
		q = queue.NewRedisQueue(kvRedis.Client, "checkin:annotations")
	} else {
		q = queue.NewInMemory(64)
	}

	devices := device.NewProvider(store)
	records := history.NewStore(store)
	annotator := annotate.New(cfg.AnnotatorURL, cfg.AnnotatorSkip)

	var rec recorder.Recorder
	if cfg.RecorderURL != "" {
		rec = recorder.NewHTTP(cfg.RecorderURL)
		log.Println("recorder configured:", cfg.RecorderURL)
	} else {
		rec = recorder.NewStub(cfg.RecorderDelay)
		log.Println("recorder stub active (RECORDER_URL not set)")
	}

	ctrl := workflow.NewController(workflow.Deps{
		Device:   devices,
		Locator:  geo.NewClient(cfg.LocationURL, cfg.LocationTimeout),
		Recorder: rec,
		History:  records,
		Queue:    q,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Init(ctx); err != nil {
		log.Printf("warning: history load failed: %v", err)
	}

	// With the in-memory queue the annotation worker must live in this
	// process; with Redis a separate worker binary consumes instead.
	if cfg.QueueBackend != "redis" {
		worker := workflow.NewAnnotationWorker(records, annotator, q)
		worker.OnUpdate = ctrl.RefreshAnnotation
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Printf("annotation worker stopped: %v", err)
			}
		}()
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		storeHealthy := true
		if kvRedis != nil {
			storeHealthy = kvRedis.Healthy(c.Request.Context())
		}
		status := http.StatusOK
		if !storeHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "store": storeHealthy})
	})

	r.GET("/v1/device", func(c *gin.Context) {
		id, err := devices.Identifier(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "device identifier unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"device_id": id})
	})

	r.POST("/v1/role", func(c *gin.Context) {
		var req struct {
			Role string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role := workflow.Role(req.Role)
		if role != workflow.RoleStudent && role != workflow.RoleTeacher {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student or teacher"})
			return
		}
		ctrl.SwitchRole(role)
		c.JSON(http.StatusOK, gin.H{"role": req.Role})
	})

	r.POST("/v1/scans/start", func(c *gin.Context) {
		ctrl.StartScan(ctx, nil)
		c.JSON(http.StatusOK, ctrl.Status())
	})

	r.POST("/v1/scans/cancel", func(c *gin.Context) {
		ctrl.CancelScan()
		c.JSON(http.StatusOK, ctrl.Status())
	})

	// Scan submission — accepts decoded text as JSON or a camera frame as
	// multipart, decoded server-side.
	r.POST("/v1/scans", func(c *gin.Context) {
		contentType := c.ContentType()
		var text string

		switch {
		case strings.Contains(contentType, "multipart/form-data"):
			file, _, ferr := c.Request.FormFile("frame")
			if ferr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "frame field required"})
				return
			}
			defer file.Close()
			img, _, ferr := image.Decode(file)
			if ferr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable frame image"})
				return
			}
			decoded, derr := qr.DecodeImage(img)
			if derr != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no QR code found in frame"})
				return
			}
			text = decoded

		default:
			var body struct {
				Text string `json:"text" binding:"required"`
			}
			if berr := c.ShouldBindJSON(&body); berr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"text\": \"<decoded QR text>\"}"})
				return
			}
			text = body.Text
		}

		status := ctrl.HandleScan(c.Request.Context(), text)
		c.JSON(http.StatusOK, status)
	})

	r.GET("/v1/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Status())
	})

	r.GET("/v1/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"records": ctrl.History()})
	})

	r.POST("/v1/qrcodes", func(c *gin.Context) {
		var req struct {
			SessionID string `json:"session_id" binding:"required"`
			EventType string `json:"event_type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		png, err := ctrl.GenerateQR(req.SessionID, qr.EventType(req.EventType))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	r.StaticFile("/", "web/index.html")

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
