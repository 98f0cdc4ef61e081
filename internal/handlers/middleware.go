package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// tokenParam names the cookie and query parameter that may carry the JWT on
// channel upgrades, where browsers cannot set an Authorization header.
const tokenParam = "token"

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	token, ok := bearerToken(header)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	// store in Gin context
	c.Set("userId", userId)
	c.Next()
}

// resolveUserID returns the identity carried by the request, or nil.
// Sources in order: Authorization header, token cookie, token query parameter.
func (h *Handler) resolveUserID(c *gin.Context) *int {
	var token string
	if header := c.GetHeader("Authorization"); header != "" {
		token, _ = bearerToken(header)
	}
	if token == "" {
		if v, err := c.Cookie(tokenParam); err == nil {
			token = v
		}
	}
	if token == "" {
		token = c.Query(tokenParam)
	}
	if token == "" {
		return nil
	}

	userID, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Infow("ws_token_rejected", "err", err)
		}
		return nil
	}
	return &userID
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func currentUserID(c *gin.Context) int {
	return c.GetInt("userId")
}
