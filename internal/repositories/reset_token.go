package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"movie-watchlist/backend/internal/models"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

// ResetTokenRepository はパスワードリセットトークンの永続化を行います。
type ResetTokenRepository interface {
	Replace(token *models.PasswordResetToken) error
	FindByToken(token string) (*models.PasswordResetToken, error)
	Delete(token string) error
}

type MySQLResetTokenRepo struct {
	DB *sql.DB
}

func NewMySQLResetTokenRepo(db *sql.DB) *MySQLResetTokenRepo {
	return &MySQLResetTokenRepo{DB: db}
}

// Replace は同じメールアドレスの既存トークンを削除してから新しいトークンを挿入します。
// 1メールアドレスにつき有効なトークンは常に1件だけになります。
func (r *MySQLResetTokenRepo) Replace(t *models.PasswordResetToken) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM password_reset_tokens WHERE email = ?", t.Email); err != nil {
		log.Printf("Failed to delete old reset tokens: %v", err)
		return fmt.Errorf("could not delete old reset tokens: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO password_reset_tokens (token, email, expires_at) VALUES (?, ?, ?)",
		t.Token, t.Email, t.ExpiresAt,
	); err != nil {
		log.Printf("Failed to insert reset token: %v", err)
		return fmt.Errorf("could not insert reset token: %w", err)
	}

	return tx.Commit()
}

// FindByToken はトークン文字列でリセットトークンを検索します。
func (r *MySQLResetTokenRepo) FindByToken(token string) (*models.PasswordResetToken, error) {
	query := "SELECT token, email, expires_at FROM password_reset_tokens WHERE token = ?"

	var pr models.PasswordResetToken
	err := r.DB.QueryRow(query, token).Scan(&pr.Token, &pr.Email, &pr.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		log.Printf("Failed to query reset token: %v", err)
		return nil, fmt.Errorf("could not query reset token: %w", err)
	}

	return &pr, nil
}

// Delete は使用済み（または無効化対象の）トークンを削除します。
func (r *MySQLResetTokenRepo) Delete(token string) error {
	_, err := r.DB.Exec("DELETE FROM password_reset_tokens WHERE token = ?", token)
	if err != nil {
		log.Printf("Failed to delete reset token: %v", err)
		return fmt.Errorf("could not delete reset token: %w", err)
	}
	return nil
}
