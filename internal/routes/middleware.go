package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"movie-watchlist/backend/internal/services"
)

// AuthMiddleware はBearerトークンを検証し、ユーザー情報をコンテキストに設定するミドルウェアです。
// ヘッダー欠落は401、署名不正・期限切れは403で区別します。
func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Access Denied: No token provided"})
			c.Abort()
			return
		}
		tokenString := authHeader[len("Bearer "):]

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"message": "Invalid or Expired Token"})
			c.Abort()
			return
		}

		c.Set("user_id", int(claims.UserID))
		c.Set("username", claims.Username)
		c.Next()
	}
}
