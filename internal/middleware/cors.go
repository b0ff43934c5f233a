package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"conduit/internal/cors"
	"conduit/internal/logger"
	"conduit/internal/metrics"
)

// CORS response and request headers.
const (
	headerOrigin           = "Origin"
	headerVary             = "Vary"
	headerAllowOrigin      = "Access-Control-Allow-Origin"
	headerAllowCredentials = "Access-Control-Allow-Credentials"
	headerAllowMethods     = "Access-Control-Allow-Methods"
	headerAllowHeaders     = "Access-Control-Allow-Headers"
	headerMaxAge           = "Access-Control-Max-Age"
	headerExposeHeaders    = "Access-Control-Expose-Headers"
	headerRequestMethod    = "Access-Control-Request-Method"
	headerRequestHeaders   = "Access-Control-Request-Headers"
)

// PolicySource resolves the CORS policy of a listener. *config.Config and
// *config.Store implement it.
type PolicySource interface {
	CORSPolicy(listener string) (cors.Policy, error)
}

// CORS enforces the listener's CORS policy. Preflight requests are answered
// here with 204 or 403. In wildcard mode Access-Control-Allow-Origin is "*"
// and credentials are never allowed.
func CORS(listener string, src PolicySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := resolvePolicy(c, listener, src)
		if policy.Mode() == cors.ModeDisabled {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add(headerVary, headerOrigin)

		origin := c.GetHeader(headerOrigin)
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader(headerRequestMethod) != ""
		if preflight {
			h.Add(headerVary, headerRequestMethod)
			h.Add(headerVary, headerRequestHeaders)
		}

		if origin == "" {
			c.Next()
			return
		}

		if !policy.AllowsOrigin(origin) {
			if preflight {
				metrics.CORSPreflightsTotal.WithLabelValues(listener, "rejected").Inc()
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if policy.Mode() == cors.ModeWildcard {
			h.Set(headerAllowOrigin, cors.Wildcard)
		} else {
			h.Set(headerAllowOrigin, origin)
		}
		if policy.AllowCredentials() {
			h.Set(headerAllowCredentials, "true")
		}

		if !preflight {
			h.Set(headerExposeHeaders, RequestIDHeader)
			c.Next()
			return
		}

		if !policy.AllowsMethod(c.GetHeader(headerRequestMethod)) ||
			!policy.AllowsHeaders(splitHeaderList(c.GetHeader(headerRequestHeaders))) {
			h.Del(headerAllowOrigin)
			h.Del(headerAllowCredentials)
			metrics.CORSPreflightsTotal.WithLabelValues(listener, "rejected").Inc()
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		h.Set(headerAllowMethods, strings.Join(policy.Methods(), ", "))
		if headers := policy.Headers(); len(headers) > 0 {
			h.Set(headerAllowHeaders, strings.Join(headers, ", "))
		}
		if maxAge := policy.MaxAge(); maxAge > 0 {
			h.Set(headerMaxAge, strconv.Itoa(maxAge))
		}

		metrics.CORSPreflightsTotal.WithLabelValues(listener, "allowed").Inc()
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func resolvePolicy(c *gin.Context, listener string, src PolicySource) cors.Policy {
	if cfg, ok := CurrentConfig(c); ok {
		src = cfg
	}
	policy, err := src.CORSPolicy(listener)
	if err != nil {
		logger.Warn("No CORS policy for listener, CORS disabled",
			slog.String("listener", listener),
			slog.String("error", err.Error()))
		return cors.Policy{}
	}
	return policy
}

func splitHeaderList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
