package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dcastano/store-api/configs"
)

const claimsKey = "auth_claims"

const RoleAdmin = "admin"

// Claims is the typed view of the bearer token the rest of the service sees.
// Handlers never touch raw JWT claims.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

func (c Claims) IsAdmin() bool { return c.Role == RoleAdmin }

type Authz struct {
	cfg configs.Config
}

func NewAuthz(cfg configs.Config) *Authz {
	return &Authz{cfg: cfg}
}

// Optional parses a bearer token when one is present and stores typed claims
// in the context. A missing token is fine (guest checkout); a present but
// invalid one is rejected.
func (a *Authz) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.Next()
			return
		}
		claims, ok := a.parse(auth)
		if !ok {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Require rejects requests without a valid token carrying the given role.
// An empty role means any authenticated caller.
func (a *Authz) Require(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}
		claims, ok := a.parse(auth)
		if !ok {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}
		if role != "" && claims.Role != role {
			forbidden(c, "insufficient_scope", "missing required role")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func (a *Authz) parse(header string) (Claims, bool) {
	raw := strings.TrimPrefix(header, "Bearer ")
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.cfg.Security.JWTSecret), nil
	}, jwt.WithLeeway(30*time.Second)) // small clock skew

	if err != nil || !token.Valid {
		return Claims{}, false
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, false
	}
	if mc["iss"] != a.cfg.Security.Issuer || mc["aud"] != a.cfg.Security.Audience {
		return Claims{}, false
	}

	out := Claims{}
	if s, ok := mc["sub"].(string); ok {
		out.UserID = s
	}
	if s, ok := mc["email"].(string); ok {
		out.Email = s
	}
	if s, ok := mc["role"].(string); ok {
		out.Role = s
	}
	return out, true
}

// ClaimsFrom returns the typed claims set by Optional/Require, if any.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
