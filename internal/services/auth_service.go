package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"movie-watchlist/backend/internal/models"
	"movie-watchlist/backend/internal/repositories"
)

// ErrInvalidCredentials はログイン失敗時のエラーです。
// メール不在とパスワード不一致を区別しません（アカウント列挙対策）。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidResetToken はリセットトークンが存在しないか期限切れの場合のエラーです。
var ErrInvalidResetToken = errors.New("invalid or expired token")

// AuthService は認証関連のビジネスロジックを扱います。
type AuthService struct {
	userRepo       *repositories.UserRepository
	resetTokenRepo repositories.ResetTokenRepository
	mailer         Mailer
}

// NewAuthService は新しいAuthServiceを作成します。
func NewAuthService(userRepo *repositories.UserRepository, resetTokenRepo repositories.ResetTokenRepository, mailer Mailer) *AuthService {
	return &AuthService{userRepo: userRepo, resetTokenRepo: resetTokenRepo, mailer: mailer}
}

// SignupUser はユーザーを登録します。セッションは発行しません。
func (s *AuthService) SignupUser(req models.UserSignupRequest) (*models.User, error) {
	hashedPassword, err := repositories.HashPassword(req.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}

	createdUser, err := s.userRepo.Create(newUser)
	if err != nil {
		return nil, err
	}
	return createdUser, nil
}

// AuthenticateUser はユーザーを認証し、成功したらユーザーを返します。
func (s *AuthService) AuthenticateUser(req models.UserLoginRequest) (*models.User, error) {
	foundUser, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := repositories.VerifyPassword(foundUser.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	foundUser.PasswordHash = "" // レスポンスにハッシュを含めない
	return foundUser, nil
}

// ForgotPassword はリセットトークンを発行し、リセットURLをメールで送信します。
// 同じメールアドレスの既存トークンは新規発行時に無効化されます。
func (s *AuthService) ForgotPassword(email string) error {
	// 1. ユーザーが存在するか確認
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return err
	}

	// 2. パスワードリセット用のトークンを生成
	token, err := generateResetToken()
	if err != nil {
		log.Printf("Failed to generate reset token: %v", err)
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	// 3. 古いトークンを削除して保存（有効期限1時間）
	resetToken := &models.PasswordResetToken{
		Token:     token,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}
	if err := s.resetTokenRepo.Replace(resetToken); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	// 4. フロントのリセットURLにトークンをセット
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}
	resetURL := fmt.Sprintf("%s/reset-password/%s", frontendURL, token)

	// 5. メール送信。失敗は呼び出し元へ伝える
	if err := s.mailer.SendResetEmail(user.Email, resetURL); err != nil {
		log.Printf("Failed to send reset email: %v", err)
		return err
	}

	return nil
}

// generateResetToken はパスワードリセット用のランダムトークンを生成します。
func generateResetToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// ResetPassword はトークンを使ってパスワードをリセットします。
// トークンはワンタイムで、成功時に削除されます。
func (s *AuthService) ResetPassword(token, newPassword string) error {
	// 1. トークンを検証
	resetToken, err := s.resetTokenRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, repositories.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	// 2. 有効期限を確認。expires_at ちょうどの時刻は無効
	if !time.Now().Before(resetToken.ExpiresAt) {
		return ErrInvalidResetToken
	}

	// 3. 新しいパスワードをハッシュ化
	hashedPassword, err := repositories.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// 4. トークンに紐づくメールアドレスでユーザーのパスワードを更新
	if err := s.userRepo.UpdatePasswordByEmail(resetToken.Email, hashedPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// 5. 使用済みトークンを削除
	if err := s.resetTokenRepo.Delete(resetToken.Token); err != nil {
		log.Printf("Failed to delete used reset token: %v", err)
		// パスワード自体は更新済みのため続行
	}

	return nil
}
