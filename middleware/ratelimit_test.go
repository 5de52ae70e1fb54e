package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"agentic-rag-platform/internal/config"
)

func rateLimitRouter(rdb *redis.Client, cfg *config.Config, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("role", role) })
	router.Use(RoleBasedRateLimit(rdb, cfg))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func TestRoleBasedRateLimitAdminMultiplier(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis-backed rate limit test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	// httptest requests carry the fixed RemoteAddr 192.0.2.1.
	ctx := context.Background()
	for _, role := range []string{"member", "admin"} {
		rdb.Del(ctx, "ratelimit:"+role+":192.0.2.1:/ping")
	}

	cfg := &config.Config{RateLimitReqs: 2, RateLimitWindow: 60}

	// Members hit the base limit on the third request.
	member := rateLimitRouter(rdb, cfg, "member")
	for i := 1; i <= 3; i++ {
		w := httptest.NewRecorder()
		member.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		want := http.StatusOK
		if i == 3 {
			want = http.StatusTooManyRequests
		}
		if w.Code != want {
			t.Fatalf("member request %d: status = %d, want %d", i, w.Code, want)
		}
	}

	// Admins get a 10x ceiling, so the same burst stays under it.
	admin := rateLimitRouter(rdb, cfg, "admin")
	for i := 1; i <= 3; i++ {
		w := httptest.NewRecorder()
		admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("admin request %d: status = %d, want 200", i, w.Code)
		}
	}
}
