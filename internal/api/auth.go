package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "userID"

// requireAuth resolves the caller from an HS256 bearer token whose subject is
// the user id. Without a configured secret every request runs as DevUserID.
func (s *Server) requireAuth() gin.HandlerFunc {
	secret := []byte(s.opts.JWTSecret)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			if s.opts.DevUserID == "" {
				writeError(c, http.StatusUnauthorized, "authentication is not configured")
				return
			}
			c.Set(userIDKey, s.opts.DevUserID)
			c.Next()
			return
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid {
			s.log.Debug("rejected token", "error", err)
			writeError(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		if claims.Subject == "" || strings.Contains(claims.Subject, "/") {
			writeError(c, http.StatusUnauthorized, "token has no valid subject")
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
