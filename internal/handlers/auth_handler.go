package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"movie-watchlist/backend/internal/models"
	"movie-watchlist/backend/internal/repositories"
	"movie-watchlist/backend/internal/services"
)

// AuthHandler は認証関連のハンドラーを管理します。
type AuthHandler struct {
	authService *services.AuthService
	jwtService  *services.JWTService
}

// NewAuthHandler は新しいAuthHandlerを作成します。
func NewAuthHandler(authService *services.AuthService, jwtService *services.JWTService) *AuthHandler {
	return &AuthHandler{authService: authService, jwtService: jwtService}
}

// SignupHandler はユーザー登録を処理します。
func (h *AuthHandler) SignupHandler(c *gin.Context) {
	var req models.UserSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required!"})
		return
	}

	if _, err := h.authService.SignupUser(req); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email already registered."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error during signup."})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Signup successful!"})
}

// LoginHandler はユーザーログインを処理します。
// メール不在とパスワード不一致は同一のレスポンスを返します。
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var req models.UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request payload"})
		return
	}

	user, err := h.authService.AuthenticateUser(req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error."})
		return
	}

	token, err := h.jwtService.GenerateToken(uint(user.ID), user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username, "token": token})
}

// ProfileHandler は認証済みユーザーのプロフィールを返します。
func (h *AuthHandler) ProfileHandler(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Username not found in context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Welcome %s, this is your profile!", username)})
}

// ForgotPasswordHandler はパスワードリセットリクエストを処理します。
func (h *AuthHandler) ForgotPasswordHandler(c *gin.Context) {
	var req models.UserForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		return
	}

	if err := h.authService.ForgotPassword(req.Email); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent to your email"})
}

// ResetPasswordHandler はトークン付きのパスワードリセットを処理します。
func (h *AuthHandler) ResetPasswordHandler(c *gin.Context) {
	var req models.UserResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password is required"})
		return
	}

	token := c.Param("token")

	if err := h.authService.ResetPassword(token, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}
