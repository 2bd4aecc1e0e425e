package gate

import (
	"net/http"
	"strings"

	"plugin-pipeline/config"

	"github.com/gin-gonic/gin"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requester-Id"
	maxAge       = "86400"
)

// desktopOrigins are the custom-scheme origins the desktop client presents.
var desktopOrigins = []string{
	"tauri://localhost",
	"https://tauri.localhost",
}

// localOrigins are accepted only in development mode.
var localOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
}

// AllowedOrigins assembles the CORS allow-list: configured production
// origins, the desktop client's scheme origins, and localhost origins when
// running in development.
func AllowedOrigins(cfg *config.AppConfig) []string {
	origins := make([]string, 0, len(cfg.CORS.Origins)+len(desktopOrigins)+len(localOrigins))
	origins = append(origins, cfg.CORS.Origins...)
	origins = append(origins, desktopOrigins...)
	if cfg.IsDevelopment() {
		origins = append(origins, localOrigins...)
	}

	return origins
}

// CORS negotiates cross-origin access against the allow-list. Preflights from
// allowed origins get 204 with the full allow headers, preflights from others
// get 403 with an empty body. Non-preflight requests from disallowed origins
// proceed without CORS headers; requests without an Origin always pass.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()

			return
		}

		if c.Request.Method == http.MethodOptions {
			if !allowed[origin] {
				c.AbortWithStatus(http.StatusForbidden)

				return
			}

			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)

			return
		}

		if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}

		c.Next()
	}
}
