package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance/internal/apperror"
	"attendance/internal/approval"
	"attendance/internal/auth"
	"attendance/internal/config"
	"attendance/internal/httpmiddleware"
	"attendance/internal/ledger"
	"attendance/internal/metrics"
	"attendance/internal/queue"
	"attendance/internal/store"
	"attendance/internal/users"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.SeedDemo {
		if err := store.SeedDemo(ctx, db.Client); err != nil {
			log.Printf("warning: demo seed failed: %v", err)
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:digests")
	}

	userRepo := users.NewRepository(db.Client)
	authn := users.NewAuthenticator(userRepo)
	ledgerRepo := ledger.NewRepository(db.Client)
	ledgerSvc := ledger.NewService(ledgerRepo, userRepo)
	approvalSvc := approval.NewService(ledgerRepo, userRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	v1 := r.Group("/v1")

	v1.POST("/auth/register", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
			Role     string `json:"role" binding:"required"`
			Branch   string `json:"branch"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := authn.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role, req.Branch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": u.ID, "email": u.Email, "role": u.Role})
	})

	v1.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := authn.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			// Login failures answer 401, not the 403 the generic mapping uses.
			if errors.Is(err, apperror.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			writeError(c, err)
			return
		}
		token, exp, err := auth.Issue(*u, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"expires_at":   exp.Unix(),
			"role":         u.Role,
			"branch":       u.Branch,
		})
	})

	protected := v1.Group("", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	organiser := protected.Group("", auth.RequireRole(users.RoleOrganiser))
	staff := protected.Group("", auth.RequireRole(users.RoleOrganiser, users.RoleHOD))
	hod := protected.Group("", auth.RequireRole(users.RoleHOD))

	// Roster lookup used by the scanner UI. An unknown roll is a 200 with
	// null name/branch so the organiser can fall back to manual entry.
	organiser.GET("/students/:roll", func(c *gin.Context) {
		st, err := ledgerSvc.LookupStudent(c.Request.Context(), c.Param("roll"))
		if err != nil {
			writeError(c, err)
			return
		}
		if st == nil {
			c.JSON(http.StatusOK, gin.H{"roll": c.Param("roll"), "name": nil, "branch": nil})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	organiser.POST("/events", func(c *gin.Context) {
		var req struct {
			Title       string    `json:"title" binding:"required"`
			Description string    `json:"description"`
			Location    string    `json:"location"`
			When        time.Time `json:"when" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		evt, err := ledgerSvc.CreateEvent(c.Request.Context(), req.Title, req.Description, req.Location, req.When, auth.FromContext(c).UserID())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, evt)
	})

	staff.GET("/events", func(c *gin.Context) {
		events, err := ledgerSvc.ListEvents(c.Request.Context(), auth.FromContext(c).User())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	organiser.POST("/events/:id/scans", func(c *gin.Context) {
		eventID, err := pathID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}
		var req struct {
			Roll string `json:"roll" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, counts, err := ledgerSvc.RecordScan(c.Request.Context(), eventID, req.Roll, auth.FromContext(c).UserID())
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.ScansRecorded.Inc()
		c.JSON(http.StatusCreated, gin.H{
			"attendance_id": rec.ID,
			"scanned_at":    rec.ScannedAt,
			"status":        rec.Status,
			"counts":        counts,
		})
	})

	staff.GET("/events/:id/attendance", func(c *gin.Context) {
		eventID, err := pathID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}
		rows, err := ledgerSvc.ListForEvent(c.Request.Context(), eventID, auth.FromContext(c).User(), ledger.SortKey(c.Query("sort")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendance": rows})
	})

	hod.POST("/attendance/:id/status", func(c *gin.Context) {
		attendanceID, err := pathID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attendance id"})
			return
		}
		var req struct {
			Action string `json:"action" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := ledger.Status(req.Action)
		if err := approvalSvc.SetStatus(c.Request.Context(), attendanceID, status, auth.FromContext(c).UserID()); err != nil {
			writeError(c, err)
			return
		}
		metrics.StatusChanges.WithLabelValues(string(status)).Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	hod.POST("/attendance/status", func(c *gin.Context) {
		var req struct {
			IDs    []int64 `json:"ids" binding:"required"`
			Action string  `json:"action" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := ledger.Status(req.Action)
		updated, err := approvalSvc.SetStatusBulk(c.Request.Context(), req.IDs, status, auth.FromContext(c).UserID())
		if err != nil {
			// Partial failure: the applied updates stay applied, so report them.
			if len(updated) > 0 {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "updated_ids": updated})
				return
			}
			writeError(c, err)
			return
		}
		for range updated {
			metrics.StatusChanges.WithLabelValues(string(status)).Inc()
		}
		c.JSON(http.StatusOK, gin.H{"updated_ids": updated})
	})

	// Manual digest trigger; the worker picks the job up from the queue.
	hod.POST("/digests/run", func(c *gin.Context) {
		var req struct {
			Slot string `json:"slot" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeDigest, Body: []byte(req.Slot)}); err != nil {
			log.Printf("queue publish failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "digest trigger failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"slot": req.Slot})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// writeError maps domain errors onto HTTP statuses without leaking
// storage internals to callers.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(status, gin.H{"error": appErr.Message})
		return
	}
	log.Printf("unhandled error: %v", err)
	c.JSON(status, gin.H{"error": "internal error"})
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

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
