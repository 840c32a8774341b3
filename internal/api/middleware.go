package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/utils"
)

type ctxKey string

const requestIDKey ctxKey = "requestID"

// AuthMiddleware creates a Gin middleware for JWT authentication
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, tokenString, found := strings.Cut(authHeader, " ")
		tokenString = strings.TrimSpace(tokenString)
		if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid authorization header"})
			return
		}

		claims, err := utils.ParseJWT(deps.JWTSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": utils.ErrInvalidToken.Error()})
			return
		}

		revoked, err := deps.Revocations.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			zap.L().Error("revocation lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			return
		}

		if deps.StrictSessions {
			var active bool
			err := database.DB.GetContext(c.Request.Context(), &active,
				`SELECT is_active FROM user_sessions WHERE id=$1 AND user_id=$2 AND token_id=$3`,
				claims.SessionID, claims.UserID, claims.ID)
			if err != nil || !active {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session is no longer active"})
				return
			}
		}

		c.Set("claims", claims)
		c.Set("userID", claims.UserID)
		c.Set("token", tokenString)
		c.Next()
	}
}

// currentClaims returns the claims AuthMiddleware stored on c.
func currentClaims(c *gin.Context) *utils.Claims {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}

// RequestIDMiddleware ensures every request has an X-Request-ID. If absent, generate one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" || len(rid) > 128 {
			rid = uuid.New().String()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Set("requestID", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// BodyLimitMiddleware caps request bodies at limit bytes.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// bindJSON decodes the body into dst, writing 413 or 400 on failure.
func bindJSON(c *gin.Context, dst any, badRequest string) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": badRequest})
	return false
}

// Simple in-memory IP rate limiter (fixed window)
type clientWindow struct {
	count       int
	windowStart time.Time
}

type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientWindow
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *ipLimiter) allow(ip string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}
	cw, ok := l.clients[ip]
	if !ok {
		l.clients[ip] = &clientWindow{count: 1, windowStart: now}
		return true, 0
	}
	if now.Sub(cw.windowStart) >= l.window {
		cw.count = 1
		cw.windowStart = now
		return true, 0
	}
	if cw.count < l.limit {
		cw.count++
		return true, 0
	}
	return false, l.window - now.Sub(cw.windowStart)
}

// sweep drops clients whose window has ended; l.mu must be held.
func (l *ipLimiter) sweep(now time.Time) {
	for ip, cw := range l.clients {
		if now.Sub(cw.windowStart) >= l.window {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if net.ParseIP(ip) == nil {
		return "unknown"
	}
	return ip
}

func rejectRateLimited(c *gin.Context, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", fmt.Sprintf("%d", secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(limitPerMinute int) gin.HandlerFunc {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	limiter := newIPLimiter(limitPerMinute, time.Minute)
	return func(c *gin.Context) {
		ok, retryAfter := limiter.allow(clientIP(c))
		if !ok {
			rejectRateLimited(c, retryAfter)
			return
		}
		c.Next()
	}
}

// RedisRateLimitMiddleware counts requests in per-minute Redis keys so the
// limit holds across instances. When Redis errors the in-memory limiter
// takes over for that request.
func RedisRateLimitMiddleware(rc *redis.Client, limitPerMinute int) gin.HandlerFunc {
	if rc == nil {
		return RateLimitMiddleware(limitPerMinute)
	}
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	fallback := RateLimitMiddleware(limitPerMinute)
	return func(c *gin.Context) {
		ip := clientIP(c)
		now := time.Now().UTC()
		key := fmt.Sprintf("rl:login:%s:%s", ip, now.Format("200601021504"))
		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()

		n, err := rc.Incr(ctx, key).Result()
		if err != nil {
			zap.L().Debug("redis rate limit unavailable", zap.Error(err))
			fallback(c)
			return
		}
		if n == 1 {
			_ = rc.Expire(ctx, key, 61*time.Second).Err()
		}
		if int(n) > limitPerMinute {
			rejectRateLimited(c, time.Minute-time.Duration(now.Second())*time.Second)
			return
		}
		c.Next()
	}
}
