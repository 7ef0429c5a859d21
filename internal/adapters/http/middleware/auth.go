package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotesync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotesync/internal/platform/config"
)

const (
	// ContextKeyClaims is the gin context key for storing extracted claims.
	ContextKeyClaims = "claims"

	defaultSubjectHeader = "X-User-ID"
	defaultRolesHeader   = "X-User-Roles"
)

// Claims are the caller identity forwarded by the gateway in headers.
type Claims struct {
	Subject string
	Roles   []string
}

// HasRole checks if the caller has the specified role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAnyRole checks if the caller has any of the specified roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, c.HasRole)
}

// ExtractClaims reads claims from the request headers named in cfg.
func ExtractClaims(c *gin.Context, cfg *config.AuthConfig) *Claims {
	subjectHeader := defaultSubjectHeader
	rolesHeader := defaultRolesHeader

	if cfg != nil {
		if cfg.SubjectHeader != "" {
			subjectHeader = cfg.SubjectHeader
		}

		if cfg.RolesHeader != "" {
			rolesHeader = cfg.RolesHeader
		}
	}

	claims := &Claims{
		Subject: c.GetHeader(subjectHeader),
	}

	if roles := c.GetHeader(rolesHeader); roles != "" {
		claims.Roles = parseCommaSeparated(roles)
	}

	return claims
}

// GetClaims retrieves claims stored by an auth middleware, nil if absent.
func GetClaims(c *gin.Context) *Claims {
	if v, ok := c.Get(ContextKeyClaims); ok {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}

	return nil
}

// rule returns a rejection message, or "" to let the request through.
type rule func(*Claims) string

func authenticated(cl *Claims) string {
	if cl.Subject == "" {
		return "authentication required"
	}

	return ""
}

func hasRole(role string) rule {
	return func(cl *Claims) string {
		if !cl.HasRole(role) {
			return "insufficient permissions: role " + role + " required"
		}

		return ""
	}
}

// guard builds middleware enforcing rules in order. Claims already stored
// by an earlier guard in the chain are reused.
func guard(cfg *config.AuthConfig, rules ...rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			claims = ExtractClaims(c, cfg)
			c.Set(ContextKeyClaims, claims)
		}

		for _, r := range rules {
			if msg := r(claims); msg != "" {
				abortWithForbidden(c, msg)
				return
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a subject.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	return guard(cfg, authenticated)
}

// RequireRole requires role, without checking the subject.
func RequireRole(cfg *config.AuthConfig, role string) gin.HandlerFunc {
	return guard(cfg, hasRole(role))
}

// RequireAnyRole requires at least one of roles.
func RequireAnyRole(cfg *config.AuthConfig, roles ...string) gin.HandlerFunc {
	return guard(cfg, func(cl *Claims) string {
		if !cl.HasAnyRole(roles...) {
			return "insufficient permissions: one of roles [" + strings.Join(roles, ", ") + "] required"
		}

		return ""
	})
}

// RequireWriter guards mutating quote and sync routes: RequireAuth plus
// auth.write_role when one is configured. With auth disabled it passes
// everything through.
func RequireWriter(cfg *config.AuthConfig) gin.HandlerFunc {
	if cfg == nil || !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	rules := []rule{authenticated}
	if cfg.WriteRole != "" {
		rules = append(rules, hasRole(cfg.WriteRole))
	}

	return guard(cfg, rules...)
}

func abortWithForbidden(c *gin.Context, message string) {
	errResp := dto.NewErrorResponse(dto.ErrorCodeForbidden, message)

	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		errResp.TraceID = span.SpanContext().TraceID().String()
	}

	c.AbortWithStatusJSON(http.StatusForbidden, errResp)
}

func parseCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")

	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
