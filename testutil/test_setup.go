package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"movie-watchlist/backend/internal/models"
	"movie-watchlist/backend/internal/repositories"
	"movie-watchlist/backend/internal/routes"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
)

// FakeMailer はテスト用のMailer実装です。送信内容を記録し、Failで失敗を再現できます。
type FakeMailer struct {
	mu   sync.Mutex
	Fail bool
	Sent []SentMail
}

type SentMail struct {
	To       string
	ResetURL string
}

func (m *FakeMailer) SendResetEmail(to, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("smtp unavailable")
	}
	m.Sent = append(m.Sent, SentMail{To: to, ResetURL: resetURL})
	return nil
}

// LastSent は最後に送信されたメールを返します。
func (m *FakeMailer) LastSent() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}

// SetupTestDB はテスト用のデータベース接続を確立し、テーブルを作成し、テストデータを投入します。
func SetupTestDB(t *testing.T) (*sql.DB, *gin.Engine, *FakeMailer) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Printf("Warning: Could not load .env file for tests: %v", err)
	}
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-secret-key")
	}

	dbUser := os.Getenv("TEST_DB_USER")
	dbPass := os.Getenv("TEST_DB_PASS")
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbName := os.Getenv("TEST_DB_NAME")

	// In Docker container, use "db" as hostname instead of 127.0.0.1
	if dbHost == "127.0.0.1" {
		dbHost = "db"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	// 既存のテーブルを空にする (テストのたびにクリーンな状態にするため)
	// Foreign Key Constraint があるため一時的に無効化
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS=0;"); err != nil {
		log.Printf("Failed to disable foreign key checks: %v", err)
	}
	for _, table := range []string{"movies", "password_reset_tokens", "users"} {
		if _, err := db.Exec("TRUNCATE TABLE " + table); err != nil {
			log.Printf("Failed to truncate %s table (it might not exist yet): %v", table, err)
		}
	}
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS=1;"); err != nil {
		log.Printf("Failed to enable foreign key checks: %v", err)
	}

	// ユーザーテーブルの作成
	createUserTableSQL := `
    	CREATE TABLE IF NOT EXISTS users (
    		id INT AUTO_INCREMENT PRIMARY KEY,
    		username VARCHAR(255) NOT NULL,
    		email VARCHAR(255) NOT NULL UNIQUE,
    		password_hash VARCHAR(255) NOT NULL,
    		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
    	);`
	if _, err := db.Exec(createUserTableSQL); err != nil {
		t.Fatalf("Failed to create users table: %v", err)
	}

	// 映画テーブルの作成
	createMovieTableSQL := `
    	CREATE TABLE IF NOT EXISTS movies (
    		id INT AUTO_INCREMENT PRIMARY KEY,
    		user_id INT NOT NULL,
    		title VARCHAR(255) NOT NULL,
    		genre VARCHAR(255) NOT NULL,
    		release_year INT NOT NULL,
    		rating INT NULL,
    		status ENUM('Watched', 'Watching', 'Plan to Watch') NOT NULL,
    		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    	);`
	if _, err := db.Exec(createMovieTableSQL); err != nil {
		t.Fatalf("Failed to create movies table: %v", err)
	}

	// リセットトークンテーブルの作成
	createResetTokenTableSQL := `
    	CREATE TABLE IF NOT EXISTS password_reset_tokens (
    		token VARCHAR(64) PRIMARY KEY,
    		email VARCHAR(255) NOT NULL,
    		expires_at DATETIME NOT NULL
    	);`
	if _, err := db.Exec(createResetTokenTableSQL); err != nil {
		t.Fatalf("Failed to create password_reset_tokens table: %v", err)
	}

	// テストユーザーの挿入
	userRepo := repositories.NewUserRepository(db)
	CreateTestUser(t, userRepo, "normal_user", "normal_user@example.com", "password123")
	CreateTestUser(t, userRepo, "second_user", "second_user@example.com", "password456")

	log.Println("Successfully set up test database!")

	gin.SetMode(gin.TestMode)
	mailer := &FakeMailer{}
	router := routes.SetupRouter(db, mailer)

	return db, router, mailer
}

// CreateTestUser はテスト用ユーザーを作成し、データベースに保存します。
func CreateTestUser(t *testing.T, userRepo *repositories.UserRepository, username, email, password string) *models.User {
	hashedPassword, err := repositories.HashPassword(password)
	require.NoError(t, err)

	newUser := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	createdUser, err := userRepo.Create(&newUser)
	require.NoError(t, err)
	require.NotNil(t, createdUser)
	require.NotEqual(t, 0, createdUser.ID)
	return createdUser
}

// CreateTestMovie はテスト用の映画をAPI経由で作成し、データベースに保存します。
func CreateTestMovie(t *testing.T, router *gin.Engine, token, title, genre string, releaseYear int, rating *int, status string) *models.Movie {
	moviePayload := map[string]interface{}{
		"title":        title,
		"genre":        genre,
		"release_year": releaseYear,
		"status":       status,
	}
	if rating != nil {
		moviePayload["rating"] = *rating
	}
	body, _ := json.Marshal(moviePayload)

	req, _ := http.NewRequest(http.MethodPost, "/movies", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, "映画の作成に失敗しました: %s", resp.Body.String())

	var createdMovie models.Movie
	err := json.Unmarshal(resp.Body.Bytes(), &createdMovie)
	require.NoError(t, err)
	return &createdMovie
}

// LoginAndGetToken はログインしてBearerトークンを取得します。
func LoginAndGetToken(t *testing.T, router *gin.Engine, email, password string) (string, error) {
	loginPayload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, _ := json.Marshal(loginPayload)

	req, _ := http.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.Code, resp.Body.String())
	}

	var loginRes map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &loginRes); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}

	token, ok := loginRes["token"].(string)
	if !ok {
		return "", errors.New("token not found or not a string in login response")
	}
	return token, nil
}

// IntPtr はテストで評価値を渡すためのヘルパーです。
func IntPtr(v int) *int {
	return &v
}
