package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/auth"
	"checkin/internal/checkin"
	"checkin/internal/config"
	"checkin/internal/feed"
	"checkin/internal/httpmiddleware"
	"checkin/internal/member"
	"checkin/internal/metrics"
	"checkin/internal/qrpayload"
	"checkin/internal/queue"
	"checkin/internal/session"
	"checkin/internal/store"
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
	var db *store.DB
	if cfg.StoreBackend == "postgres" {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
	}

	var redisClient *store.Redis
	if cfg.FeedBackend == "redis" || cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
	}

	var registry session.Registry
	var attStore checkin.AttendanceStore
	var members member.Directory
	if cfg.StoreBackend == "postgres" {
		registry = session.NewPostgresRegistry(db.Client)
		attStore = checkin.NewPostgresStore(db.Client)
		members = member.NewPostgresDirectory(db.Client)
	} else {
		registry = session.NewMemoryRegistry()
		attStore = checkin.NewMemoryStore()
		members = member.NewMemoryDirectory()
	}

	var broadcaster feed.Broadcaster
	if cfg.FeedBackend == "redis" {
		broadcaster = feed.NewRedisBroadcaster(redisClient.Client, "checkin:feed")
	} else {
		broadcaster = feed.NewMemoryBroadcaster()
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "checkin:admitted")
	}

	admitter := checkin.NewAdmitter(registry, attStore, members, broadcaster, cfg.GracePeriod)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := cfg.StoreBackend != "postgres" || db.Healthy(c.Request.Context())
		redisHealthy := redisClient == nil || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	// Token issuing for member devices and kiosks. Identity verification
	// happens in the congregation portal; this endpoint trusts the gateway.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			MemberID    string `json:"member_id" binding:"required"`
			DisplayName string `json:"display_name"`
			ScopeID     string `json:"scope_id"`
			Role        string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role := req.Role
		switch role {
		case "":
			role = auth.RoleMember
		case auth.RoleMember, auth.RoleFacilitator, auth.RoleKiosk:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}

		if role == auth.RoleMember {
			err := members.Upsert(c.Request.Context(), member.Member{
				ID:          req.MemberID,
				DisplayName: req.DisplayName,
				ScopeID:     req.ScopeID,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		token, err := auth.Issue(req.MemberID, role, req.DisplayName, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.MemberAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	facilitator := authGroup.Group("", auth.RequireRole(auth.RoleFacilitator))

	facilitator.POST("/sessions", func(c *gin.Context) {
		var req struct {
			ServiceName string `json:"service_name" binding:"required"`
			ScopeID     string `json:"scope_id" binding:"required"`
			OpensAt     string `json:"opens_at"`
			Duration    string `json:"duration"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		opensAt := time.Now().UTC()
		if req.OpensAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.OpensAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "opens_at must be RFC3339"})
				return
			}
			opensAt = parsed
		}
		duration := cfg.SessionDuration
		if req.Duration != "" {
			parsed, err := time.ParseDuration(req.Duration)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a Go duration, e.g. 2h"})
				return
			}
			duration = parsed
		}

		sess, err := registry.Create(c.Request.Context(), req.ServiceName, req.ScopeID, opensAt, duration)
		if err != nil {
			if err == session.ErrInvalidDuration {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		payload, err := qrpayload.Encode(sess.Payload())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payload encode failed"})
			return
		}

		metrics.SessionsCreated.Inc()
		c.JSON(http.StatusCreated, gin.H{"session": sess, "qr_payload": string(payload)})
	})

	authGroup.GET("/sessions/:id", func(c *gin.Context) {
		sess, err := registry.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			if err == session.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		now := time.Now().UTC()
		c.JSON(http.StatusOK, gin.H{
			"session":           sess,
			"valid":             sess.ValidAt(now),
			"remaining_seconds": int(sess.Remaining(now).Seconds()),
		})
	})

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims := auth.FromContext(c)
		now := time.Now().UTC()

		src := checkin.SourceScan
		if claims.Role == auth.RoleKiosk {
			src = checkin.SourceKiosk
		}
		result, err := admitter.AdmitFrom(c.Request.Context(), []byte(req.Payload), claims.Subject, now, src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in failed, please retry"})
			return
		}
		writeAdmissionResult(c, result, q)
	})

	facilitator.POST("/sessions/:id/records", func(c *gin.Context) {
		var req struct {
			MemberID string `json:"member_id" binding:"required"`
			Status   string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := checkin.Status(req.Status)
		switch status {
		case "":
			status = checkin.StatusPresent
		case checkin.StatusPresent, checkin.StatusLate, checkin.StatusAbsent, checkin.StatusExcused:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}

		result, err := admitter.RecordManual(c.Request.Context(), c.Param("id"), req.MemberID, status, time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeAdmissionResult(c, result, q)
	})

	authGroup.GET("/members/:id", func(c *gin.Context) {
		m, err := members.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if err == member.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"member": m})
	})

	authGroup.GET("/sessions/:id/attendance", func(c *gin.Context) {
		records, err := attStore.ListForSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	authGroup.GET("/sessions/:id/stats", func(c *gin.Context) {
		counts, err := attStore.CountByStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"counts": counts})
	})

	// Live feed over SSE. There is no replay: dashboards load
	// /sessions/:id/attendance once, then tail this stream.
	authGroup.GET("/sessions/:id/feed", func(c *gin.Context) {
		id := c.Param("id")
		if _, err := registry.Lookup(c.Request.Context(), id); err != nil {
			if err == session.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		events, cancel, err := broadcaster.Subscribe(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "feed unavailable"})
			return
		}
		defer cancel()

		metrics.FeedSubscribers.Inc()
		defer metrics.FeedSubscribers.Dec()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent("checkin", ev)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // feed streams stay open until the subscriber leaves
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

// writeAdmissionResult maps a tagged admission outcome to an HTTP response.
// Every rejection reason gets its own message; a duplicate is informational
// and includes the original check-in time.
func writeAdmissionResult(c *gin.Context, result checkin.Result, q queue.Queue) {
	if result.Admitted {
		metrics.Admitted.WithLabelValues(string(result.Record.Status)).Inc()
		if body, err := json.Marshal(result.Record); err == nil {
			if err := q.Publish(c.Request.Context(), queue.Message{Type: "checkin", Body: body}); err != nil {
				log.Printf("queue publish failed: %v", err)
			}
		}
		c.JSON(http.StatusCreated, gin.H{"record": result.Record})
		return
	}

	metrics.Rejected.WithLabelValues(string(result.Reason)).Inc()
	body := gin.H{"reason": result.Reason, "message": result.Reason.Message()}
	status := http.StatusBadRequest
	switch result.Reason {
	case checkin.ReasonUnknownSession:
		status = http.StatusNotFound
	case checkin.ReasonUnauthenticatedScan:
		status = http.StatusUnauthorized
	case checkin.ReasonSessionExpired, checkin.ReasonSessionNotYetOpen:
		status = http.StatusConflict
		if result.Session != nil {
			body["opens_at"] = result.Session.OpensAt
			body["expires_at"] = result.Session.ExpiresAt
		}
	case checkin.ReasonDuplicateCheckIn:
		status = http.StatusConflict
		if result.Existing != nil {
			body["checked_in_at"] = result.Existing.CheckInAt
			body["status"] = result.Existing.Status
		}
	}
	c.JSON(status, body)
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
